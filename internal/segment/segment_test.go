package segment

import "testing"

func TestWriteReadDestroy(t *testing.T) {
	s := NewStore()
	name := NewName()

	if err := s.Write(name, []byte("pong")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.Read(name)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "pong" {
		t.Fatalf("Read = %q, want %q", got, "pong")
	}

	if err := s.Destroy(name); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if _, err := s.Read(name); err == nil {
		t.Fatal("Read after Destroy should fail")
	}
}

func TestEmptyPayload(t *testing.T) {
	s := NewStore()
	name := NewName()

	if err := s.Write(name, nil); err != nil {
		t.Fatalf("Write empty: %v", err)
	}
	got, err := s.Read(name)
	if err != nil {
		t.Fatalf("Read empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Read empty = %v, want empty", got)
	}
	_ = s.Destroy(name)
}

func TestNewNameLength(t *testing.T) {
	n := NewName()
	if len(n) != 23 {
		t.Fatalf("NewName length = %d, want 23", len(n))
	}
}

func TestUnlinkAll(t *testing.T) {
	s := NewStore()
	a, b := NewName(), NewName()
	_ = s.Write(a, []byte("x"))
	_ = s.Write(b, []byte("y"))

	if err := s.UnlinkAll(); err != nil {
		t.Fatalf("UnlinkAll: %v", err)
	}
	if _, err := s.Read(a); err == nil {
		t.Fatal("segment a should be gone after UnlinkAll")
	}
	if _, err := s.Read(b); err == nil {
		t.Fatal("segment b should be gone after UnlinkAll")
	}
}
