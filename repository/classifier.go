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

// Kind classifies a method name for the forwarding proxy.
type Kind int

const (
	// GetMethod executes the query and returns a value.
	GetMethod Kind = iota
	// DynamicMethod is a builder passthrough accepted for any handle shape.
	DynamicMethod
	// Probe must be resolved against the capability sources.
	Probe
)

func (k Kind) String() string {
	switch k {
	case GetMethod:
		return "get"
	case DynamicMethod:
		return "dynamic"
	default:
		return "probe"
	}
}

var getMethods = map[string]struct{}{
	"Get":                         {},
	"All":                         {},
	"Pluck":                       {},
	"Find":                        {},
	"FindOrNew":                   {},
	"FindOrFail":                  {},
	"First":                       {},
	"FirstOrNew":                  {},
	"FirstOrCreate":               {},
	"FirstOrFail":                 {},
	"UpdateOrCreate":              {},
	"Update":                      {},
	"Save":                        {},
	"Delete":                      {},
	"Destroy":                     {},
	"Count":                       {},
	"Sum":                         {},
	"Max":                         {},
	"Min":                         {},
	"Avg":                         {},
	"Value":                       {},
	"Exists":                      {},
	"Restore":                     {},
	"ForceDelete":                 {},
	"Trashed":                     {},
	"GetDeletedAtColumn":          {},
	"GetQualifiedDeletedAtColumn": {},
	"IsForceDeleting":             {},
}

var dynamicMethods = map[string]struct{}{
	"WhereNotNull": {},
	"OnlyTrashed":  {},
	"WithTrashed":  {},
}

// Classify reports how the proxy treats name. Names are case-sensitive.
func Classify(name string) Kind {
	if _, ok := getMethods[name]; ok {
		return GetMethod
	}
	if _, ok := dynamicMethods[name]; ok {
		return DynamicMethod
	}
	return Probe
}

// GetMethods returns the terminal method names.
func GetMethods() []string { return keys(getMethods) }

// DynamicMethods returns the always-forwarded chaining method names.
func DynamicMethods() []string { return keys(dynamicMethods) }

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
