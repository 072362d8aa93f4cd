// Package modules identifies the fixed set of HEMS processes and derives
// the channel names used to address them on the messaging fabric.
package modules

// ModuleId identifies one of the seven cooperating HEMS processes.
type ModuleId int

const (
	Supervisor ModuleId = iota
	Storage
	Collection
	Inference
	Automation
	Training
	UI
)

// All enumerates every ModuleId, in a stable order, excluding none.
var All = []ModuleId{Supervisor, Storage, Collection, Inference, Automation, Training, UI}

// Workers enumerates every ModuleId except the Supervisor.
func Workers() []ModuleId {
	out := make([]ModuleId, 0, len(All)-1)
	for _, m := range All {
		if m != Supervisor {
			out = append(out, m)
		}
	}
	return out
}

var names = map[ModuleId]string{
	Supervisor: "supervisor",
	Storage:    "storage",
	Collection: "collection",
	Inference:  "inference",
	Automation: "automation",
	Training:   "training",
	UI:         "ui",
}

var extended = map[ModuleId]string{
	Supervisor: "HEMS Launcher",
	Storage:    "Data Storage Module",
	Collection: "Measurement Collection Module",
	Inference:  "Knowledge Inference Module",
	Automation: "Automation and Recommendation Module",
	Training:   "Model Training Module",
	UI:         "User Interface Module",
}

// String returns the stable short name of the module, used to derive
// channel names.
func (m ModuleId) String() string {
	if s, ok := names[m]; ok {
		return s
	}
	return "unknown"
}

// Extended returns a longer human-readable label for the module, e.g.
// "Data Storage Module". The local logger's source column uses String,
// not Extended.
func (m ModuleId) Extended() string {
	if s, ok := extended[m]; ok {
		return s
	}
	return "Unknown Module"
}

// Valid reports whether m is one of the seven known modules.
func (m ModuleId) Valid() bool {
	_, ok := names[m]
	return ok
}

// InboundChannelName returns the name of the module's inbound (request and
// command) queue.
func (m ModuleId) InboundChannelName() string {
	return "hems_mq_" + m.String()
}

// ResponseChannelName returns the name of the module's response queue.
func (m ModuleId) ResponseChannelName() string {
	return "hems_mq_res_" + m.String()
}
