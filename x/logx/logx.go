// Package logx gives each emulated component a named, level-filtered logger
// on top of the platinasystems syslog-style logger.
package logx

import (
	"fmt"
	"io"
	"sync"

	"github.com/platinasystems/log"
)

type Level int

const (
	Noisy Level = iota
	Debug
	Info
	Warning
	Error
)

var levelNames = [...]string{"noisy", "debug", "info", "warning", "error"}

// priorities maps a Level onto the priority names understood by log.Print.
var priorities = [...]string{"debug", "debug", "info", "warn", "err"}

func (l Level) String() string {
	if l < Noisy || l > Error {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel accepts the names printed by Level.String.
func ParseLevel(s string) (Level, bool) {
	for i, n := range levelNames {
		if n == s {
			return Level(i), true
		}
	}
	return Info, false
}

// DefaultLevel applies to loggers created after it is changed.
var DefaultLevel = Info

var (
	outMu sync.Mutex
	out   io.Writer
)

// SetOutput sends every emitted line to w instead of the system log. nil
// restores the system log.
func SetOutput(w io.Writer) {
	outMu.Lock()
	out = w
	outMu.Unlock()
}

type Logger struct {
	name string
	min  Level
}

func New(name string) *Logger { return &Logger{name: name, min: DefaultLevel} }

func (l *Logger) Name() string { return l.name }

func (l *Logger) Level() Level { return l.min }

func (l *Logger) SetLevel(lv Level) { l.min = lv }

// Enabled reports whether lv would be emitted. Callers use it to skip
// building expensive arguments.
func (l *Logger) Enabled(lv Level) bool { return l != nil && lv >= l.min }

func (l *Logger) Log(lv Level, format string, args ...any) {
	if !l.Enabled(lv) {
		return
	}
	msg := fmt.Sprintf(format, args...)

	outMu.Lock()
	w := out
	outMu.Unlock()
	if w != nil {
		fmt.Fprintf(w, "%-7s [%s] %s\n", lv, l.name, msg)
		return
	}
	log.Print(priorities[lv], "[", l.name, "] ", msg)
}

func (l *Logger) Noisy(format string, args ...any)   { l.Log(Noisy, format, args...) }
func (l *Logger) Debug(format string, args ...any)   { l.Log(Debug, format, args...) }
func (l *Logger) Info(format string, args ...any)    { l.Log(Info, format, args...) }
func (l *Logger) Warning(format string, args ...any) { l.Log(Warning, format, args...) }
func (l *Logger) Error(format string, args ...any)   { l.Log(Error, format, args...) }
