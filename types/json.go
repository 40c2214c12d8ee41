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

package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JsonObject is a convenience type for JSON columns mapped to objects.
type JsonObject map[string]interface{}

// JsonArray is a convenience type for JSON columns mapped to arrays.
type JsonArray []JsonObject

func (j JsonObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan accepts []byte or string JSON. NULL scans to an empty object.
func (j *JsonObject) Scan(value interface{}) error {
	if value == nil {
		*j = make(JsonObject)
		return nil
	}
	return scanJSON(value, j)
}

func (j JsonArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan accepts []byte or string JSON. NULL scans to an empty array.
func (j *JsonArray) Scan(value interface{}) error {
	if value == nil {
		*j = make(JsonArray, 0)
		return nil
	}
	return scanJSON(value, j)
}

func scanJSON(value interface{}, dst interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("types: cannot scan %T into %T", value, dst)
	}
}
