package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajkula/logwatcher/config"
	"github.com/ajkula/logwatcher/domain/model"
)

type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// represents a single log entry to be processed asynchronously
type LogMessage struct {
	Level LogLevel
	Msg   string
	Args  []any
	Time  time.Time
}

// implements the Logger interface using Go's structured logging (slog)
// with asynchronous processing to avoid blocking hot paths
type SlogAdapter struct {
	logger    *slog.Logger
	config    *config.Config
	levelMu   sync.RWMutex
	logChan   chan LogMessage
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closer    io.Closer
	slogLevel *slog.LevelVar
	dropped   atomic.Uint64
}

// NewSlogAdapter writes to the sink selected by config.Logging.Output
func NewSlogAdapter(cfg *config.Config) model.Logger {
	out, closer := openOutput(cfg)
	return newSlogAdapter(cfg, out, closer)
}

// NewSlogAdapterWithWriter writes to out regardless of config.Logging.Output
func NewSlogAdapterWithWriter(cfg *config.Config, out io.Writer) model.Logger {
	return newSlogAdapter(cfg, out, nil)
}

func newSlogAdapter(cfg *config.Config, out io.Writer, closer io.Closer) *SlogAdapter {
	ctx, cancel := context.WithCancel(context.Background())

	// Create a LevelVar for dynamic level changes
	levelVar := &slog.LevelVar{}
	levelVar.Set(parseSlogLevel(cfg.General.LogLevel))

	// Create handler with dynamic level
	handlerOpts := &slog.HandlerOptions{
		Level: levelVar,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Logging.Format) == "text" {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	channelSize := cfg.Logging.ChannelSize
	if channelSize <= 0 {
		channelSize = 1
	}

	adapter := &SlogAdapter{
		logger:    slog.New(handler),
		config:    cfg,
		logChan:   make(chan LogMessage, channelSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		closer:    closer,
		slogLevel: levelVar,
	}

	go adapter.processLogs()

	return adapter
}

// openOutput resolves the log sink; an unusable file falls back to stderr
func openOutput(cfg *config.Config) (io.Writer, io.Closer) {
	switch strings.ToLower(cfg.Logging.Output) {
	case "stdout":
		return os.Stdout, nil
	case "file":
		if cfg.Logging.FilePath == "" {
			return os.Stderr, nil
		}
		file, err := os.OpenFile(cfg.Logging.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return os.Stderr, nil
		}
		return file, file
	default:
		return os.Stderr, nil
	}
}

// updates both config and slog level dynamically
func (s *SlogAdapter) UpdateLevel(logLvl string) {
	normalizedLevel := strings.ToLower(logLvl)

	s.levelMu.Lock()
	s.config.General.LogLevel = normalizedLevel
	s.config.Logging.Level = strings.ToUpper(normalizedLevel)
	s.levelMu.Unlock()

	s.slogLevel.Set(parseSlogLevel(normalizedLevel))

	s.Info("Logger level updated dynamically", "new_level", normalizedLevel)
}

// hadles messages asynchronously
func (s *SlogAdapter) processLogs() {
	defer close(s.done)

	for {
		select {
		case msg := <-s.logChan:
			s.writeLog(msg)
		case <-s.ctx.Done():
			for len(s.logChan) > 0 {
				msg := <-s.logChan
				s.writeLog(msg)
			}
			return
		}
	}
}

// converts string level to slog.Level
func parseSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// performs the logging operation
func (s *SlogAdapter) writeLog(msg LogMessage) {
	switch msg.Level {
	case LevelError:
		s.logger.Error(msg.Msg, msg.Args...)
	case LevelWarn:
		s.logger.Warn(msg.Msg, msg.Args...)
	case LevelInfo:
		s.logger.Info(msg.Msg, msg.Args...)
	case LevelDebug:
		s.logger.Debug(msg.Msg, msg.Args...)
	}
}

func (s *SlogAdapter) sendLog(level LogLevel, msg string, args ...any) {
	if s.ctx.Err() != nil {
		return
	}

	select {
	case s.logChan <- LogMessage{
		Level: level,
		Msg:   msg,
		Args:  args,
		Time:  time.Now(),
	}:
	default:
		// chan full
		s.dropped.Add(1)
	}
}

// Dropped returns the number of messages discarded because the queue was full
func (s *SlogAdapter) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *SlogAdapter) shouldLog(level LogLevel) bool {
	s.levelMu.RLock()
	currentLevel := strings.ToUpper(s.config.General.LogLevel)
	s.levelMu.RUnlock()

	switch currentLevel {
	case "ERROR":
		return level == LevelError
	case "WARN":
		return level <= LevelWarn
	case "INFO":
		return level <= LevelInfo
	case "DEBUG":
		return level <= LevelDebug
	default:
		return level == LevelError
	}
}

func (s *SlogAdapter) Error(msg string, args ...any) {
	if !s.shouldLog(LevelError) {
		return
	}
	s.sendLog(LevelError, msg, args...)
}

func (s *SlogAdapter) Warn(msg string, args ...any) {
	if !s.shouldLog(LevelWarn) {
		return
	}
	s.sendLog(LevelWarn, msg, args...)
}

func (s *SlogAdapter) Info(msg string, args ...any) {
	if !s.shouldLog(LevelInfo) {
		return
	}
	s.sendLog(LevelInfo, msg, args...)
}

func (s *SlogAdapter) Debug(msg string, args ...any) {
	if !s.shouldLog(LevelDebug) {
		return
	}
	s.sendLog(LevelDebug, msg, args...)
}

// Shutdown flushes queued messages and closes a file sink
func (s *SlogAdapter) Shutdown() {
	s.cancel()
	<-s.done
	if s.closer != nil {
		s.closer.Close()
	}
}
