package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	MaxLogDirSize = 10 * 1024 * 1024 // 10MB
	LogFileName   = "psu.log"

	timeFormat = "2006-01-02 15:04:05.000"
)

var (
	log     = newConsoleLogger(os.Stderr)
	logFile *os.File
	logDir  string
	stop    chan struct{}
	mu      sync.Mutex
)

func newConsoleLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timeFormat,
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// L returns the process-wide logger.
func L() *logrus.Logger {
	return log
}

// SetLevel parses and applies a level name such as "debug" or "trace".
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}

// SetOutput redirects console output, e.g. into the shell's readline writer.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Init additionally writes JSON formatted entries to dir/psu.log and keeps
// the directory below MaxLogDirSize.
func Init(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = file
	logDir = dir
	log.AddHook(&fileHook{
		writer:    file,
		formatter: &logrus.JSONFormatter{TimestampFormat: timeFormat},
	})

	checkAndRotate()

	stop = make(chan struct{})
	go periodicSizeCheck(stop)

	log.WithField("dir", dir).Debug("file logging enabled")
	return nil
}

// Close stops file logging. Console logging continues.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if stop != nil {
		close(stop)
		stop = nil
	}
	if logFile != nil {
		log.ReplaceHooks(make(logrus.LevelHooks))
		logFile.Close()
		logFile = nil
	}
}

// Protocol logs raw traffic to or from a supply at trace level.
func Protocol(fields logrus.Fields, direction string, data []byte) {
	log.WithFields(fields).Tracef("%s: %q", direction, data)
}

// fileHook mirrors entries into the log file with its own formatter.
type fileHook struct {
	mu        sync.Mutex
	writer    io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	msg, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.writer.Write(msg)
	return err
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// checkAndRotate must be called with mu held.
func checkAndRotate() {
	size, err := dirSize(logDir)
	if err != nil {
		log.WithError(err).Warn("checking log directory size")
		return
	}
	if size > MaxLogDirSize {
		rotateOldLogs()
	}
}

func dirSize(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var size int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		size += info.Size()
	}
	return size, nil
}

// rotateOldLogs removes archived logs oldest first until the directory fits,
// then truncates the active log if it alone is too large.
func rotateOldLogs() {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		log.WithError(err).Warn("reading log directory")
		return
	}

	type archive struct {
		path string
		mod  time.Time
	}
	var archives []archive
	for _, e := range entries {
		if e.IsDir() || e.Name() == LogFileName {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		archives = append(archives, archive{filepath.Join(logDir, e.Name()), info.ModTime()})
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].mod.Before(archives[j].mod) })

	for _, a := range archives {
		if size, _ := dirSize(logDir); size <= MaxLogDirSize {
			return
		}
		if err := os.Remove(a.path); err != nil {
			log.WithError(err).WithField("file", a.path).Warn("removing old log")
		}
	}

	if size, _ := dirSize(logDir); size > MaxLogDirSize && logFile != nil {
		if err := logFile.Truncate(0); err != nil {
			log.WithError(err).Warn("truncating log file")
		}
	}
}

func periodicSizeCheck(done <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			mu.Lock()
			checkAndRotate()
			mu.Unlock()
		}
	}
}
