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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var silent atomic.Bool

// SetQueryLogSilent mutes every QueryHook and slow query hook while set.
func SetQueryLogSilent(b bool) {
	silent.Store(b)
}

var operationColors = map[string]*color.Color{
	"SELECT": color.New(color.FgGreen),
	"INSERT": color.New(color.FgBlue),
	"UPDATE": color.New(color.FgYellow),
	"DELETE": color.New(color.FgMagenta),
}

var defaultOperationColor = color.New(color.FgRed)

// QueryHook prints executed queries, colored by operation. Only failed
// queries are printed unless the hook is verbose. The environment variable
// named by envName, when set, overrides both: "0" or "" disables, "2"
// enables verbose output.
type QueryHook struct {
	envName string
	enabled bool
	verbose bool
	writer  io.Writer
}

var _ bun.QueryHook = (*QueryHook)(nil)

// NewQueryHook returns an enabled hook writing to w, or to stdout when w is
// nil.
func NewQueryHook(w io.Writer, verbose bool, envName string) *QueryHook {
	if w == nil {
		w = os.Stdout
	}
	return &QueryHook{envName: envName, enabled: true, verbose: verbose, writer: w}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if silent.Load() {
		return
	}
	enabled, verbose := h.enabled, h.verbose
	if h.envName != "" {
		if env, ok := os.LookupEnv(h.envName); ok {
			enabled = env != "" && env != "0"
			verbose = env == "2"
		}
	}
	if !enabled {
		return
	}
	if !verbose {
		switch {
		case event.Err == nil, errors.Is(event.Err, sql.ErrNoRows), errors.Is(event.Err, sql.ErrTxDone):
			return
		}
	}

	now := time.Now()
	args := []interface{}{
		now.Format("2006-01-02 15:04:05.000"),
		color.New(color.FgCyan).Sprintf("%10s", "[BUN]"),
		fmt.Sprintf("%12s", now.Sub(event.StartTime).Round(time.Microsecond)),
		" ", operationColor(event.Operation()).Sprint(event.Query),
	}
	if event.Err != nil {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args, "\t", color.New(color.BgRed).Sprintf(" %s: %s ", typ, event.Err.Error()))
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

func operationColor(operation string) *color.Color {
	if c, ok := operationColors[operation]; ok {
		return c
	}
	return defaultOperationColor
}

// slowQueryHook logs successful queries slower than threshold.
type slowQueryHook struct {
	threshold time.Duration
	logger    Logger
}

func (h *slowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if event.Err != nil || silent.Load() || h.logger == nil {
		return
	}
	if duration := time.Since(event.StartTime); duration > h.threshold {
		h.logger.Warn("Database slow query detected",
			"duration", duration.Round(time.Microsecond),
			"slow_threshold", h.threshold,
			"query", event.Query,
		)
	}
}
