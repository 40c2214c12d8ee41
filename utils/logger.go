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

package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

const defaultTimestampFormat = "2006-01-02 15:04:05.000"

var (
	registryMu       sync.RWMutex
	loggerRegistry   = map[string]*logrus.Logger{}
	defaultLevel     = ParseLogLevel(EnvDefaultString("LOG_LEVEL", "debug"))
	consoleLogFormat = EnvDefaultString("CONSOLE_LOG_FORMAT", "text")
	output           io.Writer = os.Stdout
)

// NewLogger returns the logger registered under name, creating it on first
// use. The formatter follows CONSOLE_LOG_FORMAT ("text" or "json").
func NewLogger(name string) *logrus.Logger {
	registryMu.Lock()
	defer registryMu.Unlock()
	if l, ok := loggerRegistry[name]; ok {
		return l
	}
	l := logrus.New()
	l.SetOutput(output)
	l.SetLevel(defaultLevel)
	l.SetReportCaller(true)
	l.SetFormatter(newFormatter(name, consoleLogFormat))
	loggerRegistry[name] = l
	return l
}

func newFormatter(name, format string) logrus.Formatter {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return &JSONLogFormatter{LoggerName: name}
	}
	return &Log4jColorFormatter{LoggerName: name, NameWidth: 10, CallerWidth: 25}
}

// ConfigureConsoleLogFormat switches every registered logger, and loggers
// created later, to the given format.
func ConfigureConsoleLogFormat(format string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	consoleLogFormat = format
	for name, l := range loggerRegistry {
		l.SetFormatter(newFormatter(name, format))
	}
}

// SetOutput redirects every registered logger, and loggers created later.
func SetOutput(w io.Writer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	output = w
	for _, l := range loggerRegistry {
		l.SetOutput(w)
	}
}

func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// SetLoggerLevel sets the level of the named logger. It reports false when
// no logger has that name.
func SetLoggerLevel(name string, level string) bool {
	registryMu.RLock()
	l, ok := loggerRegistry[name]
	registryMu.RUnlock()
	if ok {
		l.SetLevel(ParseLogLevel(level))
	}
	return ok
}

// ConfigureLogLevel sets the level of every logger.
func ConfigureLogLevel(level string) {
	lvl := ParseLogLevel(level)
	registryMu.Lock()
	defer registryMu.Unlock()
	defaultLevel = lvl
	for _, l := range loggerRegistry {
		l.SetLevel(lvl)
	}
}

// Log4jColorFormatter renders
// "time LEVEL pid - [main] name caller : message k=v".
type Log4jColorFormatter struct {
	LoggerName      string
	TimestampFormat string
	NameWidth       int
	CallerWidth     int
	DisableColors   bool
}

var levelColors = map[logrus.Level]*color.Color{
	logrus.TraceLevel: color.New(color.FgBlue),
	logrus.DebugLevel: color.New(color.FgGreen),
	logrus.InfoLevel:  color.New(color.FgGreen),
	logrus.WarnLevel:  color.New(color.FgYellow),
	logrus.ErrorLevel: color.New(color.FgRed),
	logrus.FatalLevel: color.New(color.FgRed, color.Bold),
	logrus.PanicLevel: color.New(color.FgRed, color.Bold),
}

func (f *Log4jColorFormatter) paint(c *color.Color, s string) string {
	if f.DisableColors || c == nil {
		return s
	}
	return c.Sprint(s)
}

func (f *Log4jColorFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	ts := entry.Time.Format(orDefault(f.TimestampFormat, defaultTimestampFormat))
	lvl := fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String()))
	name := fmt.Sprintf("%*s", f.NameWidth, limitRunes(f.LoggerName, f.NameWidth))

	var b strings.Builder
	b.WriteString(ts)
	b.WriteByte(' ')
	b.WriteString(f.paint(levelColors[entry.Level], lvl))
	b.WriteByte(' ')
	b.WriteString(f.paint(color.New(color.FgMagenta), fmt.Sprintf("%-6d - [main]", os.Getpid())))
	b.WriteByte(' ')
	b.WriteString(f.paint(color.New(color.FgCyan), name))
	if entry.Caller != nil {
		caller := compactPath(filepath.ToSlash(entry.Caller.File), entry.Caller.Line, f.CallerWidth)
		b.WriteString(f.paint(color.New(color.Faint), " "+caller))
	}
	b.WriteString(f.paint(color.New(color.Faint), " :"))
	b.WriteByte(' ')
	b.WriteString(entry.Message)
	for _, k := range sortedFieldKeys(entry.Data) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// JSONLogFormatter renders one JSON object per line.
type JSONLogFormatter struct {
	LoggerName      string
	TimestampFormat string
}

type jsonLogRecord struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Model   string         `json:"model"`
	Caller  string         `json:"caller,omitempty"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	rec := jsonLogRecord{
		Time:    entry.Time.Format(orDefault(f.TimestampFormat, defaultTimestampFormat)),
		Level:   entry.Level.String(),
		Model:   f.LoggerName,
		Message: entry.Message,
	}
	if entry.Caller != nil {
		rec.Caller = filepath.Base(entry.Caller.File) + ":" + strconv.Itoa(entry.Caller.Line)
	}
	if len(entry.Data) > 0 {
		rec.Fields = make(map[string]any, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			rec.Fields[k] = v
		}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func sortedFieldKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// compactPath shortens "a/b/c/file.go:12" to at most width runes by
// abbreviating directories to their first letter, then trimming from the
// left.
func compactPath(file string, line, width int) string {
	parts := strings.Split(file, "/")
	if len(parts) > 3 {
		parts = parts[len(parts)-3:]
	}
	out := strings.Join(parts, "/") + ":" + strconv.Itoa(line)
	if width <= 0 || len([]rune(out)) <= width {
		return fmt.Sprintf("%*s", width, out)
	}
	for i := 0; i < len(parts)-1; i++ {
		if r := []rune(parts[i]); len(r) > 1 {
			parts[i] = string(r[0])
		}
	}
	out = strings.Join(parts, ".") + ":" + strconv.Itoa(line)
	if r := []rune(out); len(r) > width {
		out = string(r[len(r)-width:])
	}
	return fmt.Sprintf("%*s", width, out)
}

func limitRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func EnvDefaultString(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}

// Elapsed formats the time since start for log fields.
func Elapsed(start time.Time) string {
	return time.Since(start).Round(time.Microsecond).String()
}
