/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/exp/slices"
)

const (
	loggerNameSeparator = "."
	rootLoggerName      = "bnms"
)

// Logger provides logging API
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	IsEnabledFor(level zapcore.Level) bool
	Named(name string) Logger
}

// Config selects the level and the encoding of the root logger.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	// current is the core every logger writes through, swapped by Init.
	current atomic.Pointer[zapcore.Core]
	root    *zap.Logger
)

func init() {
	c := newCore(Config{})
	current.Store(&c)
	root = zap.New(&swapCore{}, zap.AddCaller()).Named(rootLoggerName)
}

// Init replaces the encoder and the level of every logger, including those obtained before Init.
func Init(c Config) {
	core := newCore(c)
	current.Store(&core)
}

// SetLevel changes the level of every logger.
func SetLevel(lvl string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(lvl)); err != nil {
		return
	}
	level.SetLevel(l)
}

func newCore(c Config) zapcore.Core {
	if len(c.Level) != 0 {
		SetLevel(c.Level)
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if strings.EqualFold(c.Format, "json") {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(sink)), level)
}

// swapCore delegates to the core installed by the last Init.
type swapCore struct {
	fields []zapcore.Field
}

func (c *swapCore) Enabled(lvl zapcore.Level) bool { return level.Enabled(lvl) }

func (c *swapCore) With(fields []zapcore.Field) zapcore.Core {
	return &swapCore{fields: append(slices.Clip(c.fields), fields...)}
}

func (c *swapCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *swapCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return (*current.Load()).Write(ent, append(slices.Clip(c.fields), fields...))
}

func (c *swapCore) Sync() error { return (*current.Load()).Sync() }

// MustGetLogger returns a logger named after the given parts, relative to the root logger.
func MustGetLogger(parts ...string) Logger {
	name := loggerName(parts...)
	if len(name) == 0 {
		return &zapLogger{SugaredLogger: root.Sugar()}
	}
	return &zapLogger{SugaredLogger: root.Named(name).Sugar()}
}

type zapLogger struct {
	*zap.SugaredLogger
}

func (l *zapLogger) IsEnabledFor(lvl zapcore.Level) bool {
	return l.Desugar().Core().Enabled(lvl)
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{SugaredLogger: l.SugaredLogger.Named(name)}
}

func isEmptyString(s string) bool { return len(s) == 0 }

func loggerName(parts ...string) string {
	return strings.Join(slices.DeleteFunc(parts, isEmptyString), loggerNameSeparator)
}
