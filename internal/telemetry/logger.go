package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	ddlogrus "github.com/DataDog/dd-trace-go/contrib/sirupsen/logrus/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

var (
	logMu      sync.RWMutex
	base       *logrus.Entry
	fileLogger *FileLogger
)

// FileLogger mirrors log entries as JSON lines into a file
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// NewLogger builds a logger from cfg writing to out
func NewLogger(cfg *Config, out io.Writer) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	l.AddHook(&ddlogrus.DDContextLogHook{})

	if cfg.LogFormat == "text" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "@timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	return l.WithFields(logrus.Fields{
		"service.name":    cfg.ServiceName,
		"service.version": cfg.ServiceVersion,
		"environment":     cfg.Environment,
	})
}

// InitLogger installs the global logger. Calling it again replaces the previous one.
func InitLogger(cfg *Config) error {
	entry := NewLogger(cfg, os.Stderr)

	var fl *FileLogger
	if cfg.LogsFilePath != "" {
		var err error
		fl, err = NewFileLogger(cfg.LogsFilePath)
		if err != nil {
			return err
		}
		entry.Logger.AddHook(fl)
	}

	logMu.Lock()
	old := fileLogger
	base, fileLogger = entry, fl
	logMu.Unlock()

	if old != nil {
		return old.Close()
	}
	return nil
}

// NewFileLogger creates a new file logger
func NewFileLogger(filePath string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &FileLogger{
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

// Levels returns the log levels this hook is interested in
func (f *FileLogger) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire is called when a log event is fired
func (f *FileLogger) Fire(entry *logrus.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := make(map[string]interface{}, len(entry.Data)+3)
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}
	data["@timestamp"] = entry.Time.Format("2006-01-02T15:04:05.000Z07:00")
	data["level"] = entry.Level.String()
	data["message"] = entry.Message

	return f.encoder.Encode(data)
}

// Close closes the file logger
func (f *FileLogger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}

// L returns the global logger
func L() *logrus.Entry {
	logMu.RLock()
	defer logMu.RUnlock()

	if base == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return base
}

// WithContext adds trace information to the logger
func WithContext(ctx context.Context) *logrus.Entry {
	entry := L().WithContext(ctx)

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		entry = entry.WithFields(logrus.Fields{
			"trace.id": span.SpanContext().TraceID().String(),
			"span.id":  span.SpanContext().SpanID().String(),
		})
	}

	return entry
}

// WithFields adds fields to the logger
func WithFields(fields logrus.Fields) *logrus.Entry {
	return L().WithFields(fields)
}

// WithError adds an error to the logger
func WithError(err error) *logrus.Entry {
	return L().WithError(err)
}

// CloseLogger closes any open resources
func CloseLogger() error {
	logMu.Lock()
	defer logMu.Unlock()

	if fileLogger != nil {
		err := fileLogger.Close()
		fileLogger = nil
		return err
	}
	return nil
}
