package logger

import (
	"fmt"
	"os"
)

// LoggerInstance is one log sink. Messages use a "[Pkg][Op] text" prefix
// followed by key/value pairs.
type LoggerInstance interface {
	Log(message string, keyvals ...any)
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

// Logger fans every call out to its sinks.
type Logger struct {
	instances []LoggerInstance
}

var singleton *Logger

// Init installs the sinks used by the package-level functions. Before Init
// those functions drop their input, so library tests stay silent.
func Init(instances ...LoggerInstance) {
	singleton = &Logger{
		instances: instances,
	}
}

func dispatch(emit func(LoggerInstance)) bool {
	l := singleton
	if l == nil || len(l.instances) == 0 {
		return false
	}
	for _, instance := range l.instances {
		emit(instance)
	}
	return true
}

func Log(message string, keyvals ...any) {
	dispatch(func(i LoggerInstance) { i.Log(message, keyvals...) })
}

func Debug(message string, keyvals ...any) {
	dispatch(func(i LoggerInstance) { i.Debug(message, keyvals...) })
}

func Info(message string, keyvals ...any) {
	dispatch(func(i LoggerInstance) { i.Info(message, keyvals...) })
}

func Warn(message string, keyvals ...any) {
	dispatch(func(i LoggerInstance) { i.Warn(message, keyvals...) })
}

func Error(message string, keyvals ...any) {
	dispatch(func(i LoggerInstance) { i.Error(message, keyvals...) })
}

// Fatal logs and exits with status 1. Without sinks the message goes to
// stderr before exiting.
func Fatal(message string, keyvals ...any) {
	if dispatch(func(i LoggerInstance) { i.Fatal(message, keyvals...) }) {
		return
	}
	fmt.Fprintln(os.Stderr, append([]any{message}, keyvals...)...)
	os.Exit(1)
}
