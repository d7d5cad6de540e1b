// Package logx is the process-wide leveled logger used across the service.
package logx

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	currentLevel atomic.Int32
	std          = log.New(os.Stderr, "", log.LstdFlags)
)

func init() {
	currentLevel.Store(int32(LevelInfo))
}

// SetLevel sets the minimum level that will be emitted
func SetLevel(l Level) {
	currentLevel.Store(int32(l))
}

func enabled(l Level) bool {
	return int32(l) >= currentLevel.Load()
}

func output(l Level, tag, msg string) {
	if !enabled(l) {
		return
	}
	std.Printf("%s %s", tag, msg)
}

func Debug(args ...any) { output(LevelDebug, "DEBUG", fmt.Sprint(args...)) }

func Debugf(format string, args ...any) { output(LevelDebug, "DEBUG", fmt.Sprintf(format, args...)) }

func Info(args ...any) { output(LevelInfo, "INFO", fmt.Sprint(args...)) }

func Infof(format string, args ...any) { output(LevelInfo, "INFO", fmt.Sprintf(format, args...)) }

func Warn(args ...any) { output(LevelWarn, "WARN", fmt.Sprint(args...)) }

func Warnf(format string, args ...any) { output(LevelWarn, "WARN", fmt.Sprintf(format, args...)) }

func Error(args ...any) { output(LevelError, "ERROR", fmt.Sprint(args...)) }

func Errorf(format string, args ...any) { output(LevelError, "ERROR", fmt.Sprintf(format, args...)) }

func Fatalf(format string, args ...any) {
	output(LevelError, "FATAL", fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Fields son pares clave/valor adjuntos a una línea de log
type Fields map[string]any

// Entry permite loguear con campos estructurados
type Entry struct {
	fields Fields
}

// WithFields crea una entrada con campos adjuntos
func WithFields(fields Fields) *Entry {
	return &Entry{fields: fields}
}

func (e *Entry) suffix() string {
	if len(e.fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := " |"
	for _, k := range keys {
		s += fmt.Sprintf(" %s=%v", k, e.fields[k])
	}
	return s
}

func (e *Entry) Debugf(format string, args ...any) {
	output(LevelDebug, "DEBUG", fmt.Sprintf(format, args...)+e.suffix())
}

func (e *Entry) Infof(format string, args ...any) {
	output(LevelInfo, "INFO", fmt.Sprintf(format, args...)+e.suffix())
}

func (e *Entry) Warnf(format string, args ...any) {
	output(LevelWarn, "WARN", fmt.Sprintf(format, args...)+e.suffix())
}

func (e *Entry) Errorf(format string, args ...any) {
	output(LevelError, "ERROR", fmt.Sprintf(format, args...)+e.suffix())
}
