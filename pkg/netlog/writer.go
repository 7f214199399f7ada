package netlog

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/golang/glog"

	"github.com/robotalks/tagrelay/pkg/logging"
)

// Writer is a logging.Logger formatting lines as
// "[LEVEL] (file:line): message\r\n" into a Buffer.
type Writer struct {
	Buffer *Buffer
	// MaxLevel is the most verbose level written to the Buffer.
	MaxLevel logging.Level
	// Mirror also sends every line to glog.
	Mirror bool
}

// NewWriter creates a Writer at info level mirroring to glog.
func NewWriter(buf *Buffer) *Writer {
	return &Writer{Buffer: buf, MaxLevel: logging.LevelInfo, Mirror: true}
}

// Debugf implements logging.Logger.
func (w *Writer) Debugf(format string, args ...interface{}) {
	w.log(logging.LevelDebug, format, args...)
}

// Infof implements logging.Logger.
func (w *Writer) Infof(format string, args ...interface{}) {
	w.log(logging.LevelInfo, format, args...)
}

// Warningf implements logging.Logger.
func (w *Writer) Warningf(format string, args ...interface{}) {
	w.log(logging.LevelWarn, format, args...)
}

// Errorf implements logging.Logger.
func (w *Writer) Errorf(format string, args ...interface{}) {
	w.log(logging.LevelError, format, args...)
}

func (w *Writer) log(level logging.Level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if w.Mirror {
		mirror(level, msg)
	}
	if level > w.MaxLevel || w.Buffer == nil {
		return
	}
	file, line := "???", 0
	if _, path, n, ok := runtime.Caller(2); ok {
		file, line = filepath.Base(path), n
	}
	w.Buffer.TryWrite([]byte(FormatLine(level, file, line, msg)))
}

// FormatLine renders one shipped log line.
func FormatLine(level logging.Level, file string, line int, msg string) string {
	return fmt.Sprintf("[%s] (%s:%d): %s\r\n", level, file, line, msg)
}

// mirror logs at the caller of the Writer method.
func mirror(level logging.Level, msg string) {
	const depth = 3
	switch level {
	case logging.LevelError:
		glog.ErrorDepth(depth, msg)
	case logging.LevelWarn:
		glog.WarningDepth(depth, msg)
	case logging.LevelInfo:
		glog.InfoDepth(depth, msg)
	default:
		if glog.V(2) {
			glog.InfoDepth(depth, msg)
		}
	}
}
