package modules

import "testing"

func TestStringAndExtended(t *testing.T) {
	for _, m := range All {
		if m.String() == "unknown" {
			t.Errorf("module %d has no short name", m)
		}
		if m.Extended() == "Unknown Module" {
			t.Errorf("module %d has no extended name", m)
		}
	}
}

func TestWorkersExcludesSupervisor(t *testing.T) {
	for _, m := range Workers() {
		if m == Supervisor {
			t.Fatal("Workers() must not include Supervisor")
		}
	}
	if len(Workers()) != len(All)-1 {
		t.Fatalf("Workers() length = %d, want %d", len(Workers()), len(All)-1)
	}
}

func TestChannelNames(t *testing.T) {
	if Storage.InboundChannelName() != "hems_mq_storage" {
		t.Errorf("unexpected inbound name: %s", Storage.InboundChannelName())
	}
	if Storage.ResponseChannelName() != "hems_mq_res_storage" {
		t.Errorf("unexpected response name: %s", Storage.ResponseChannelName())
	}
}

func TestInvalidModule(t *testing.T) {
	var m ModuleId = 99
	if m.Valid() {
		t.Fatal("expected invalid module to report Valid() == false")
	}
}
