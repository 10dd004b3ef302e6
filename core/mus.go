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

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the stored record types. The record set is small and
// stable, so these are written by hand over the mus-go primitives instead of
// being generated.

var (
	EntityMUS        = entityMUS{}
	ConnectionMUS    = connectionMUS{}
	WeeklySummaryMUS = weeklySummaryMUS{}

	vectorMUS  = ord.NewSliceSer[float32](varint.Float32)
	stringsMUS = ord.NewSliceSer[string](ord.String)
)

// timeMUS serializes timestamps as unix microseconds.
type timeMUS struct{}

func (timeMUS) Marshal(t time.Time, bs []byte) int {
	if t.IsZero() {
		return varint.Int64.Marshal(0, bs)
	}
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func (timeMUS) Unmarshal(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	if v == 0 {
		return time.Time{}, n, nil
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func (timeMUS) Size(t time.Time) int {
	if t.IsZero() {
		return varint.Int64.Size(0)
	}
	return varint.Int64.Size(t.UnixMicro())
}

var timeSer = timeMUS{}

// refMUS serializes a single cross-reference.
type refMUS struct{}

func (refMUS) Marshal(r Ref, bs []byte) (n int) {
	n = ord.String.Marshal(string(r.Kind), bs)
	n += ord.String.Marshal(r.Key, bs[n:])
	return n
}

func (refMUS) Unmarshal(bs []byte) (r Ref, n int, err error) {
	kind, n, err := ord.String.Unmarshal(bs)
	if err != nil {
		return r, n, err
	}
	key, n1, err := ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}
	return Ref{Kind: RefKind(kind), Key: key}, n, nil
}

func (refMUS) Size(r Ref) int {
	return ord.String.Size(string(r.Kind)) + ord.String.Size(r.Key)
}

func (refMUS) Skip(bs []byte) (n int, err error) {
	n, err = ord.String.Skip(bs)
	if err != nil {
		return n, err
	}
	n1, err := ord.String.Skip(bs[n:])
	n += n1
	return n, err
}

var refsMUS = ord.NewSliceSer[Ref](refMUS{})

type entityMUS struct{}

func (entityMUS) Marshal(e Entity, bs []byte) (n int) {
	n = ord.String.Marshal(e.ID, bs)
	n += ord.String.Marshal(string(e.Source), bs[n:])
	n += ord.String.Marshal(e.Type, bs[n:])
	n += ord.String.Marshal(e.Title, bs[n:])
	n += ord.String.Marshal(e.Content, bs[n:])
	n += ord.String.Marshal(e.Author, bs[n:])
	n += timeSer.Marshal(e.Timestamp, bs[n:])
	n += refsMUS.Marshal(e.Refs, bs[n:])
	n += vectorMUS.Marshal(e.Vector, bs[n:])
	n += varint.Uint64.Marshal(e.Fingerprint, bs[n:])
	n += timeSer.Marshal(e.InsertedAt, bs[n:])
	n += timeSer.Marshal(e.UpdatedAt, bs[n:])
	return n
}

func (entityMUS) Unmarshal(bs []byte) (e Entity, n int, err error) {
	var n1 int
	if e.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return e, n, err
	}
	var source string
	if source, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	e.Source = Source(source)
	n += n1
	if e.Type, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Title, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Author, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Timestamp, n1, err = timeSer.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Refs, n1, err = refsMUS.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Fingerprint, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.InsertedAt, n1, err = timeSer.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.UpdatedAt, n1, err = timeSer.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	return e, n, nil
}

func (entityMUS) Size(e Entity) (size int) {
	size = ord.String.Size(e.ID)
	size += ord.String.Size(string(e.Source))
	size += ord.String.Size(e.Type)
	size += ord.String.Size(e.Title)
	size += ord.String.Size(e.Content)
	size += ord.String.Size(e.Author)
	size += timeSer.Size(e.Timestamp)
	size += refsMUS.Size(e.Refs)
	size += vectorMUS.Size(e.Vector)
	size += varint.Uint64.Size(e.Fingerprint)
	size += timeSer.Size(e.InsertedAt)
	size += timeSer.Size(e.UpdatedAt)
	return size
}

type connectionMUS struct{}

func (connectionMUS) Marshal(c Connection, bs []byte) (n int) {
	n = ord.String.Marshal(c.SourceID, bs)
	n += ord.String.Marshal(string(c.SourceType), bs[n:])
	n += ord.String.Marshal(c.TargetID, bs[n:])
	n += ord.String.Marshal(string(c.TargetType), bs[n:])
	n += ord.String.Marshal(string(c.Kind), bs[n:])
	n += varint.Float32.Marshal(c.Confidence, bs[n:])
	n += ord.String.Marshal(c.MatchReason, bs[n:])
	return n
}

func (connectionMUS) Unmarshal(bs []byte) (c Connection, n int, err error) {
	var n1 int
	var s string
	if c.SourceID, n, err = ord.String.Unmarshal(bs); err != nil {
		return c, n, err
	}
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	c.SourceType = Source(s)
	n += n1
	if c.TargetID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	c.TargetType = Source(s)
	n += n1
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	c.Kind = ConnectionKind(s)
	n += n1
	if c.Confidence, n1, err = varint.Float32.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.MatchReason, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	return c, n, nil
}

func (connectionMUS) Size(c Connection) (size int) {
	size = ord.String.Size(c.SourceID)
	size += ord.String.Size(string(c.SourceType))
	size += ord.String.Size(c.TargetID)
	size += ord.String.Size(string(c.TargetType))
	size += ord.String.Size(string(c.Kind))
	size += varint.Float32.Size(c.Confidence)
	size += ord.String.Size(c.MatchReason)
	return size
}

type weeklySummaryMUS struct{}

func (weeklySummaryMUS) Marshal(w WeeklySummary, bs []byte) (n int) {
	n = ord.String.Marshal(w.WeekKey, bs)
	n += stringsMUS.Marshal(w.EntityIDs, bs[n:])
	n += ord.String.Marshal(w.SummaryText, bs[n:])
	sources := make([]string, len(w.Sources))
	for i, s := range w.Sources {
		sources[i] = string(s)
	}
	n += stringsMUS.Marshal(sources, bs[n:])
	n += vectorMUS.Marshal(w.Vector, bs[n:])
	n += timeSer.Marshal(w.InsertedAt, bs[n:])
	n += timeSer.Marshal(w.UpdatedAt, bs[n:])
	return n
}

func (weeklySummaryMUS) Unmarshal(bs []byte) (w WeeklySummary, n int, err error) {
	var n1 int
	if w.WeekKey, n, err = ord.String.Unmarshal(bs); err != nil {
		return w, n, err
	}
	if w.EntityIDs, n1, err = stringsMUS.Unmarshal(bs[n:]); err != nil {
		return w, n + n1, err
	}
	n += n1
	if w.SummaryText, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return w, n + n1, err
	}
	n += n1
	var sources []string
	if sources, n1, err = stringsMUS.Unmarshal(bs[n:]); err != nil {
		return w, n + n1, err
	}
	n += n1
	if len(sources) > 0 {
		w.Sources = make([]Source, len(sources))
		for i, s := range sources {
			w.Sources[i] = Source(s)
		}
	}
	if w.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return w, n + n1, err
	}
	n += n1
	if w.InsertedAt, n1, err = timeSer.Unmarshal(bs[n:]); err != nil {
		return w, n + n1, err
	}
	n += n1
	if w.UpdatedAt, n1, err = timeSer.Unmarshal(bs[n:]); err != nil {
		return w, n + n1, err
	}
	n += n1
	return w, n, nil
}

func (weeklySummaryMUS) Size(w WeeklySummary) (size int) {
	size = ord.String.Size(w.WeekKey)
	size += stringsMUS.Size(w.EntityIDs)
	size += ord.String.Size(w.SummaryText)
	sources := make([]string, len(w.Sources))
	for i, s := range w.Sources {
		sources[i] = string(s)
	}
	size += stringsMUS.Size(sources)
	size += vectorMUS.Size(w.Vector)
	size += timeSer.Size(w.InsertedAt)
	size += timeSer.Size(w.UpdatedAt)
	return size
}
