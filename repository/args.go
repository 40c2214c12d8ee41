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

package repository

import (
	"reflect"
)

func argAt[V any](method string, args []any, i int) (V, error) {
	var zero V
	if i >= len(args) {
		return zero, invalidArgument(method, "missing argument %d", i)
	}
	v, ok := args[i].(V)
	if !ok {
		return zero, invalidArgument(method, "argument %d is %T, want %T", i, args[i], zero)
	}
	return v, nil
}

func optionalArg[V any](method string, args []any, i int, def V) (V, error) {
	if i >= len(args) {
		return def, nil
	}
	return argAt[V](method, args, i)
}

func stringArgs(method string, args []any) ([]string, error) {
	if len(args) == 1 {
		if s, ok := args[0].([]string); ok {
			return s, nil
		}
	}
	out := make([]string, 0, len(args))
	for i := range args {
		s, err := argAt[string](method, args, i)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// directionArg accepts a Direction or a string run through ParseDirection.
// A missing direction is ascending.
func directionArg(method string, args []any, i int) (Direction, error) {
	if i >= len(args) {
		return Ascending, nil
	}
	switch d := args[i].(type) {
	case Direction:
		return d, nil
	case string:
		return ParseDirection(d), nil
	default:
		return Ascending, invalidArgument(method, "argument %d is %T, want Direction or string", i, args[i])
	}
}

func attributesArg(method string, args []any, i int) (Attributes, error) {
	if i >= len(args) {
		return Attributes{}, nil
	}
	switch a := args[i].(type) {
	case Attributes:
		return a, nil
	case map[string]any:
		return a, nil
	case nil:
		return Attributes{}, nil
	default:
		return nil, invalidArgument(method, "argument %d is %T, want Attributes", i, args[i])
	}
}

// normalizeIDs flattens ids, expanding slices and arrays, and drops
// repeated values.
func normalizeIDs(ids ...any) []any {
	seen := make(map[any]struct{}, len(ids))
	out := make([]any, 0, len(ids))
	add := func(id any) {
		if id == nil {
			return
		}
		if !reflect.TypeOf(id).Comparable() {
			out = append(out, id)
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range ids {
		v := reflect.ValueOf(id)
		if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
			if _, isBytes := id.([]byte); !isBytes {
				for i := 0; i < v.Len(); i++ {
					add(v.Index(i).Interface())
				}
				continue
			}
		}
		add(id)
	}
	return out
}
