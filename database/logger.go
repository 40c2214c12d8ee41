/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/fluentrepo/utils"
)

// LoggerName is the utils logger name used by the default Logger.
const LoggerName = "DATABASE"

var (
	globalLogger   Logger
	globalLoggerMu sync.RWMutex
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "DEBUG"
	}
}

// Logger is the key/value logger used by this module. Fields alternate
// between keys and values.
type Logger interface {
	SetLevel(LogLevel)
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// InitLogger installs log as the process-wide logger. The first non-nil
// logger wins.
func InitLogger(log Logger) {
	if log == nil {
		return
	}
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	if globalLogger == nil {
		globalLogger = log
	}
}

// GetLogger returns the process-wide logger, creating the default one on
// first use.
func GetLogger() Logger {
	globalLoggerMu.RLock()
	l := globalLogger
	globalLoggerMu.RUnlock()
	if l != nil {
		return l
	}

	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewDefaultLogger(utils.NewLogger(LoggerName))
	}
	return globalLogger
}

// DefaultLogger adapts a logrus logger to Logger.
type DefaultLogger struct {
	logger *logrus.Logger
}

func NewDefaultLogger(l *logrus.Logger) *DefaultLogger {
	return &DefaultLogger{logger: l}
}

func (l *DefaultLogger) Debug(msg string, fields ...interface{}) {
	l.entry(fields).Debug(msg)
}

func (l *DefaultLogger) Info(msg string, fields ...interface{}) {
	l.entry(fields).Info(msg)
}

func (l *DefaultLogger) Warn(msg string, fields ...interface{}) {
	l.entry(fields).Warn(msg)
}

func (l *DefaultLogger) Error(msg string, fields ...interface{}) {
	l.entry(fields).Error(msg)
}

func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.logger.SetLevel(utils.ParseLogLevel(strings.ToLower(level.String())))
}

// entry pairs fields into logrus fields. A trailing key without a value is
// dropped.
func (l *DefaultLogger) entry(fields []interface{}) *logrus.Entry {
	if len(fields) < 2 {
		return logrus.NewEntry(l.logger)
	}
	data := make(logrus.Fields, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		data[fmt.Sprint(fields[i])] = fields[i+1]
	}
	return l.logger.WithFields(data)
}
