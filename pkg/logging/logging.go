// Package logging defines the leveled logging façade shared by all tasks.
package logging

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// Level is the severity of a log line.
type Level int

// Levels, most severe first.
const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var levelNames = [...]string{"ERROR", "WARN", "INFO", "DEBUG", "TRACE"}

func (l Level) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel parses a level name.
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		return LevelWarn, nil
	}
	for n, levelName := range levelNames {
		if name == levelName {
			return Level(n), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger emits leveled, formatted log lines.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Glog returns a Logger writing to glog.
// Debug lines are emitted at glog verbosity 2.
func Glog() Logger {
	return glogLogger{}
}

// OrGlog returns l, or the glog Logger when l is nil.
func OrGlog(l Logger) Logger {
	if l == nil {
		return glogLogger{}
	}
	return l
}

type glogLogger struct{}

func (glogLogger) Debugf(format string, args ...interface{}) {
	if glog.V(2) {
		glog.InfoDepth(1, fmt.Sprintf(format, args...))
	}
}

func (glogLogger) Infof(format string, args ...interface{}) {
	glog.InfoDepth(1, fmt.Sprintf(format, args...))
}

func (glogLogger) Warningf(format string, args ...interface{}) {
	glog.WarningDepth(1, fmt.Sprintf(format, args...))
}

func (glogLogger) Errorf(format string, args ...interface{}) {
	glog.ErrorDepth(1, fmt.Sprintf(format, args...))
}
