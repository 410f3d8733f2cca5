package logging

import (
	"io"
	"os"
	"time"

	"github.com/atharvakonge/papertrade/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the application logger. Output goes to stdout unless a log file
// is configured, in which case it is rotated at MaxSize megabytes.
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" && cfg.File != "stdout" {
		maxSize := cfg.MaxSize
		if maxSize == 0 {
			maxSize = 50
		}
		out = &lumberjack.Logger{
			Filename: cfg.File,
			MaxSize:  maxSize, // MB
		}
	}

	logger := &logrus.Logger{
		Out:       out,
		Hooks:     make(logrus.LevelHooks),
		Level:     lvl,
		ExitFunc:  os.Exit,
		Formatter: &logrus.TextFormatter{FullTimestamp: true},
	}
	if cfg.JSON {
		logger.Formatter = &logrus.JSONFormatter{}
	}
	return logger, nil
}

// Component returns an entry tagged with the owning package
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField("component", name)
}

// Discard is a logger for tests
func Discard() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// RequestLogger logs one line per request after the handler chain ran
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}
		if uid, ok := c.Get("user_id"); ok {
			fields["user_id"] = uid
		}
		l := logger.WithFields(fields)

		switch {
		case len(c.Errors) > 0:
			l.WithError(c.Errors.Last()).Error("request failed")
		case c.Writer.Status() >= 500:
			l.Error("request")
		default:
			l.Info("request")
		}
	}
}
