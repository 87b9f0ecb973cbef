// Package diag implements structured, 4-character-tagged diagnostic
// logging (spec §6's "logger that receives structured events tagged by a
// 4-character identifier", supplemented by _examples/original_source's
// startle/log.c short-tag convention). It wraps the standard library's
// log.Logger rather than pulling in a structured-logging framework: no
// repo in the corpus reaches for zap/zerolog/logrus at its core, and the
// teacher logs with plain log.Fatalf/log.Printf at call sites
// (cmd/sentra/main.go) — see DESIGN.md for why this one ambient concern
// stays on the standard library.
package diag

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Logger satisfies reduce.Logger without importing package reduce, the
// same inversion reduce.Logger itself documents.
type Logger struct {
	out   *log.Logger
	level Level
}

// Level gates which events reach the underlying writer.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERRO"
	default:
		return "INFO"
	}
}

// New builds a Logger writing to w at the given minimum level. Passing a
// nil w defaults to os.Stderr via log's own default writer.
func New(w io.Writer, level Level) *Logger {
	flags := log.Ldate | log.Ltime
	if w == nil {
		return &Logger{out: log.New(log.Writer(), "", flags), level: level}
	}
	return &Logger{out: log.New(w, "", flags), level: level}
}

// Event logs tag (truncated/padded to 4 characters, per spec §6) with an
// alternating key/value tail, at LevelInfo. It is the method
// reduce.Logger requires.
func (l *Logger) Event(tag string, kv ...any) {
	l.log(LevelInfo, tag, kv...)
}

// Debugf, Warnf, and Errorf log at their respective levels with a plain
// printf-style message instead of a key/value tail, for call sites
// outside the reducer core (CLI, config, entrystore, ioport) that have a
// human sentence to report rather than a structured event.
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

func (l *Logger) log(level Level, tag string, kv ...any) {
	if level < l.level {
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %-4s", level, fourChar(tag)))
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", kv[i], kv[i+1])
	}
	if len(kv)%2 == 1 {
		fmt.Fprintf(&sb, " %v", kv[len(kv)-1])
	}
	l.out.Print(sb.String())
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	l.out.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}

func fourChar(tag string) string {
	if len(tag) >= 4 {
		return tag[:4]
	}
	return tag
}
