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


package core

import "errors"

// Domain validation errors
var (
	// ErrMalformedRecord indicates a source record is missing a required field.
	// Malformed records are skipped; the ingestion batch continues.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInvalidEntity indicates an Entity failed validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidSource indicates an unknown source value.
	ErrInvalidSource = errors.New("invalid source")

	// ErrEmptyID indicates the entity ID field is empty.
	ErrEmptyID = errors.New("entity id cannot be empty")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrMissingTimestamp indicates the Timestamp field is unset.
	ErrMissingTimestamp = errors.New("timestamp is required")

	// ErrInvalidConnection indicates a Connection failed validation.
	ErrInvalidConnection = errors.New("invalid connection")

	// ErrSelfConnection indicates a connection's endpoints are the same entity.
	ErrSelfConnection = errors.New("connection endpoints must differ")
)
