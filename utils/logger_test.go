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
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerIsRegistered(t *testing.T) {
	a := NewLogger("TEST-REGISTRY")
	b := NewLogger("TEST-REGISTRY")
	assert.Same(t, a, b)
	assert.NotSame(t, a, NewLogger("TEST-OTHER"))

	assert.True(t, SetLoggerLevel("TEST-REGISTRY", "error"))
	assert.Equal(t, logrus.ErrorLevel, a.GetLevel())
	assert.False(t, SetLoggerLevel("TEST-MISSING", "error"))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("WARNING"))
	assert.Equal(t, logrus.TraceLevel, ParseLogLevel(" trace "))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("verbose"))
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		ConfigureConsoleLogFormat("text")
	})
	ConfigureConsoleLogFormat("json")

	l := NewLogger("TEST-JSON")
	l.SetLevel(logrus.InfoLevel)
	l.WithField("error", errors.New("boom")).WithField("rows", 3).Info("deleted")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "TEST-JSON", rec["model"])
	assert.Equal(t, "deleted", rec["message"])
	assert.Contains(t, rec["caller"], "logger_test.go:")
	fields := rec["fields"].(map[string]any)
	assert.Equal(t, "boom", fields["error"])
	assert.EqualValues(t, 3, fields["rows"])
}

func TestLog4jColorFormatter(t *testing.T) {
	f := &Log4jColorFormatter{LoggerName: "REPOSITORY", NameWidth: 6, DisableColors: true}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "slow",
		Data:    logrus.Fields{"b": 2, "a": 1},
	}
	out, err := f.Format(entry)
	require.NoError(t, err)
	line := string(out)
	assert.True(t, strings.HasPrefix(line, "2024-01-02 03:04:05.000 WARNING "))
	assert.Contains(t, line, "REPOSI")
	assert.NotContains(t, line, "REPOSITORY")
	assert.True(t, strings.HasSuffix(line, ": slow a=1 b=2\n"))
}

func TestCompactPath(t *testing.T) {
	assert.Equal(t, "b/c/file.go:7", compactPath("a/b/c/file.go", 7, 0))
	assert.Equal(t, "  c/file.go:7", compactPath("c/file.go", 7, 13))
	assert.Equal(t, "b.c.file.go:7", compactPath("a/bbb/ccc/file.go", 7, 13))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("TEST_ENV_STRING", "x")
	t.Setenv("TEST_ENV_BOOL", "true")
	t.Setenv("TEST_ENV_BAD_BOOL", "maybe")
	assert.Equal(t, "x", EnvDefaultString("TEST_ENV_STRING", "y"))
	assert.Equal(t, "y", EnvDefaultString("TEST_ENV_UNSET", "y"))
	assert.True(t, EnvDefaultBool("TEST_ENV_BOOL", false))
	assert.True(t, EnvDefaultBool("TEST_ENV_BAD_BOOL", true))
	assert.False(t, EnvDefaultBool("TEST_ENV_UNSET", false))
}

func TestElapsed(t *testing.T) {
	assert.NotEmpty(t, Elapsed(time.Now().Add(-time.Millisecond)))
}
