package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// AppName is used for the log directory and file names
const AppName = "gollama-clippy"

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a configuration string into a LogLevel, defaulting to Info
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger wraps slog.Logger with a component-aware API
type Logger struct {
	slogger *slog.Logger
	level   *slog.LevelVar
	file    *os.File
}

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// Config represents logging configuration
type Config struct {
	Level        LogLevel
	EnableFile   bool
	LogDir       string    // Optional: defaults to standard user log directory
	EnableStderr bool      // Disable while the terminal panel owns the screen
	Output       io.Writer // Optional extra writer, used by tests
}

// DefaultConfig returns sensible logging defaults
func DefaultConfig() *Config {
	return &Config{
		Level:        LevelInfo,
		EnableFile:   true,
		LogDir:       DefaultDir(),
		EnableStderr: false,
	}
}

// DefaultDir returns the standard location for user-level logs
func DefaultDir() string {
	home, _ := os.UserHomeDir()

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", AppName)
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, AppName, "logs")
		}
		return filepath.Join(home, "AppData", "Local", AppName, "logs")
	case "linux", "freebsd", "openbsd", "netbsd":
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, AppName, "logs")
		}
		return filepath.Join(home, ".local", "share", AppName, "logs")
	default:
		return filepath.Join(home, "."+AppName, "logs")
	}
}

// Initialize sets up the global logger with the given configuration
func Initialize(config *Config) error {
	logger, err := newLogger(config)
	if err != nil {
		return err
	}

	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()

	return nil
}

func newLogger(config *Config) (*Logger, error) {
	var writers []io.Writer
	var logFile *os.File

	if config.EnableStderr {
		writers = append(writers, os.Stderr)
	}
	if config.Output != nil {
		writers = append(writers, config.Output)
	}

	if config.EnableFile {
		if err := os.MkdirAll(config.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", config.LogDir, err)
		}

		logPath := filepath.Join(config.LogDir, fmt.Sprintf("%s-%s.log", AppName, time.Now().Format("2006-01-02")))

		var err error
		logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file %s: %w", logPath, err)
		}
		writers = append(writers, logFile)
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	multiWriter := io.MultiWriter(writers...)

	level := new(slog.LevelVar)
	level.Set(config.Level.slogLevel())

	handler := slog.NewTextHandler(multiWriter, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if source, ok := a.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return a
		},
	})

	// Route the standard library logger through the same sinks
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	return &Logger{
		slogger: slog.New(handler),
		level:   level,
		file:    logFile,
	}, nil
}

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger == nil {
		logger, err := newLogger(DefaultConfig())
		if err != nil {
			level := new(slog.LevelVar)
			logger = &Logger{
				slogger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
				level:   level,
			}
		}
		globalLogger = logger
	}
	return globalLogger
}

// Close closes the log file if it was opened
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) Debug(msg string, args ...any) { l.slogger.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slogger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slogger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slogger.Error(msg, args...) }

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slogger: l.slogger.With(args...),
		level:   l.level,
		file:    l.file,
	}
}

// WithComponent returns a logger with a component attribute
func (l *Logger) WithComponent(component string) *Logger {
	return l.With("component", component)
}

// Slog exposes the underlying slog.Logger for libraries that accept one
func (l *Logger) Slog() *slog.Logger {
	return l.slogger
}

func Debug(msg string, args ...any) { GetLogger().Debug(msg, args...) }
func Info(msg string, args ...any)  { GetLogger().Info(msg, args...) }
func Warn(msg string, args ...any)  { GetLogger().Warn(msg, args...) }
func Error(msg string, args ...any) { GetLogger().Error(msg, args...) }

// WithComponent returns a logger with a component attribute using the global logger
func WithComponent(component string) *Logger {
	return GetLogger().WithComponent(component)
}

// Reconfigure reinitializes the global logger with a new configuration
func Reconfigure(config *Config) error {
	globalMu.Lock()
	old := globalLogger
	globalMu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			log.Printf("Warning: Failed to close existing logger: %v", err)
		}
	}

	return Initialize(config)
}

// Close closes the global logger
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}
