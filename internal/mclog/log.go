// Package mclog provides logging functions for mcprune.
package mclog

import (
	"fmt"
	"os"
	"strings"
)

// Level is the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// minLevel is the minimum level to include in the logging output.
var minLevel = InfoLevel

// SetMinLevelFromString sets the minimum level from a name such as "debug",
// "info", "warn", or "error" (case-insensitive). Unknown names are ignored.
func SetMinLevelFromString(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		minLevel = DebugLevel
	case "info":
		minLevel = InfoLevel
	case "warn", "warning":
		minLevel = WarnLevel
	case "error":
		minLevel = ErrorLevel
	}
}

// write prints a message for the given severity level.
func write(level Level, msg string, args ...interface{}) {
	if minLevel > level {
		return
	}
	fmt.Fprintf(os.Stderr, msg, args...)
	fmt.Fprintln(os.Stderr)
}

// Infof formats an informational log message.
func Infof(msg string, args ...interface{}) {
	write(InfoLevel, msg, args...)
}

// Warnf formats a warning log message.
func Warnf(msg string, args ...interface{}) {
	write(WarnLevel, msg, args...)
}

// Errorf formats an error log message.
func Errorf(msg string, args ...interface{}) {
	write(ErrorLevel, msg, args...)
}
