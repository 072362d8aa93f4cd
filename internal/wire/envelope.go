// Package wire defines the fixed-shape Envelope posted on the fabric's
// message queues and the codec used to serialize user payloads that
// travel separately, in shared-memory segments.
package wire

import (
	"fmt"

	"github.com/adrianghc/hems/internal/modules"
)

// Kind is the broad type of an Envelope.
type Kind int

const (
	Command Kind = iota
	Request
	Response
)

func (k Kind) String() string {
	switch k {
	case Command:
		return "command"
	case Request:
		return "request"
	case Response:
		return "response"
	default:
		return "unknown"
	}
}

// Reserved subtypes. All are negative; non-negative subtypes are free for
// module-specific use.
const (
	EndListenLoop int32 = -1 - iota
	SettingsInit
	SettingsCheck
	SettingsCommit
	JoinRecvCmd
)

// NSeg bounds the length of a segment name, including any trailing
// padding; names themselves are NSeg-1 ASCII characters.
const NSeg = 24

// Envelope is the sole payload of the underlying message queue. The user
// payload itself, if any, travels in the named shared segment.
type Envelope struct {
	Kind          Kind
	ID            uint32
	Sender        modules.ModuleId
	SubtypeOrCode int32
	SegmentName   string
	PayloadLen    int
}

// Priority maps reserved control subtypes to their scheduling priority
// in [0, 10]; all other subtypes (commands, requests, responses) use the
// default priority of 0.
func (e Envelope) Priority() int {
	if e.Kind == Response {
		return 0
	}
	switch e.SubtypeOrCode {
	case EndListenLoop:
		return 10
	case SettingsCommit:
		return 7
	case SettingsCheck:
		return 5
	default:
		return 0
	}
}

// IsTerminator reports whether e is the sentinel envelope (id == 0) that
// terminates a response-listen loop.
func (e Envelope) IsTerminator() bool {
	return e.ID == 0
}

func (e Envelope) String() string {
	return fmt.Sprintf("Envelope{kind=%s id=%d sender=%s subtype/code=%d segment=%q len=%d}",
		e.Kind, e.ID, e.Sender, e.SubtypeOrCode, e.SegmentName, e.PayloadLen)
}
