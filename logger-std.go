//go:build !tinygo

package stm32f4hal

import (
	"log"
)

// stdLogger is a default logger that uses the standard library log package.
// It is not installed automatically; call SetLogger(NewStdLogger()) to see
// driver lifecycle messages on a host build.
type stdLogger struct{}

// NewStdLogger returns a logger backed by the standard library log package.
func NewStdLogger() Logger { return &stdLogger{} }

func (l *stdLogger) Debug(msg string) {
	log.Print("[DEBUG] " + msg)
}

func (l *stdLogger) Info(msg string) {
	log.Print("[INFO]  " + msg)
}

func (l *stdLogger) Warn(msg string) {
	log.Print("[WARN]  " + msg)
}

func (l *stdLogger) Error(msg string) {
	log.Print("[ERROR] " + msg)
}
