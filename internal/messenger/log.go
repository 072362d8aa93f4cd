package messenger

type logLevel int

const (
	logDebug logLevel = iota
	logWarn
)

func (m *Messenger) logf(level logLevel, format string, args ...any) {
	if m.log == nil {
		return
	}
	switch level {
	case logDebug:
		m.log.Debugf(format, args...)
	case logWarn:
		m.log.Warnf(format, args...)
	}
}
