// Copyright 2025 Opsmesh Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"github.com/opsmesh/contexture/core"
)

// MarshalEntity serializes an Entity to bytes.
func MarshalEntity(entity *core.Entity) []byte {
	buf := make([]byte, core.EntityMUS.Size(*entity))
	core.EntityMUS.Marshal(*entity, buf)
	return buf
}

// UnmarshalEntity deserializes an Entity from bytes.
func UnmarshalEntity(data []byte) (*core.Entity, error) {
	entity, _, err := core.EntityMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// MarshalConnection serializes a Connection to bytes.
func MarshalConnection(conn *core.Connection) []byte {
	buf := make([]byte, core.ConnectionMUS.Size(*conn))
	core.ConnectionMUS.Marshal(*conn, buf)
	return buf
}

// UnmarshalConnection deserializes a Connection from bytes.
func UnmarshalConnection(data []byte) (*core.Connection, error) {
	conn, _, err := core.ConnectionMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// MarshalWeeklySummary serializes a WeeklySummary to bytes.
func MarshalWeeklySummary(summary *core.WeeklySummary) []byte {
	buf := make([]byte, core.WeeklySummaryMUS.Size(*summary))
	core.WeeklySummaryMUS.Marshal(*summary, buf)
	return buf
}

// UnmarshalWeeklySummary deserializes a WeeklySummary from bytes.
func UnmarshalWeeklySummary(data []byte) (*core.WeeklySummary, error) {
	summary, _, err := core.WeeklySummaryMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
