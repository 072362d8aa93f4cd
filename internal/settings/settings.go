// Package settings defines the opaque Settings value exchanged by the
// fabric's two-phase configuration protocol, plus the digest helper used
// to compare a commit against the last checked proposal.
package settings

// Settings is an opaque, gob-encodable configuration value. The fabric
// never interprets its fields; each worker supplies its own validation
// semantics in its SETTINGS_CHECK handler.
type Settings struct {
	// Version is a monotonically increasing generation counter, bumped
	// by whichever module proposes a new value; it lets handlers and
	// logs distinguish settings values that otherwise compare equal by
	// content.
	Version uint64
	// Values holds the actual configuration as opaque key/value pairs;
	// this fabric does not interpret them, only compares and carries
	// them.
	Values map[string]string
}

// Equal reports whether two Settings values are identical.
func (s Settings) Equal(o Settings) bool {
	if s.Version != o.Version || len(s.Values) != len(o.Values) {
		return false
	}
	for k, v := range s.Values {
		if ov, ok := o.Values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// String projects Settings for logging.
func (s Settings) String() string {
	return "settings{version=" + itoa(s.Version) + " fields=" + itoa(uint64(len(s.Values))) + "}"
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
