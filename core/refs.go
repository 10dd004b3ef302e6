package core

import (
	"regexp"
	"sort"
)

// RefKind tags the flavor of a cross-reference key extracted from entity text.
type RefKind string

const (
	RefIncident      RefKind = "incident"
	RefTicket        RefKind = "ticket"
	RefChangeRequest RefKind = "change_request"
)

// ConnectionKind maps a reference kind to the connection kind its exact
// matches produce.
func (k RefKind) ConnectionKind() ConnectionKind {
	switch k {
	case RefIncident:
		return ConnSharedIncident
	case RefTicket:
		return ConnSharedTicket
	case RefChangeRequest:
		return ConnSharedChangeRequest
	}
	return ""
}

// Ref is one typed cross-reference key carried by an entity.
type Ref struct {
	Kind RefKind
	Key  string
}

// refMatcher couples a reference kind with its extraction pattern. Keeping the
// pattern on the kind keeps the exact-match phase source-agnostic.
type refMatcher struct {
	kind    RefKind
	pattern *regexp.Regexp
}

var refMatchers = []refMatcher{
	{RefIncident, regexp.MustCompile(`\bINC\d+\b`)},
	{RefTicket, regexp.MustCompile(`\b[A-Z]{2,5}-\d{1,5}\b`)},
	{RefChangeRequest, regexp.MustCompile(`\b(?:PR|CR)#\d+\b`)},
}

// ExtractRefs scans text for cross-reference keys of every kind.
// Results are deduplicated and sorted for deterministic storage.
func ExtractRefs(text string) []Ref {
	if text == "" {
		return nil
	}

	seen := make(map[Ref]bool)
	var refs []Ref
	for _, m := range refMatchers {
		for _, key := range m.pattern.FindAllString(text, -1) {
			ref := Ref{Kind: m.kind, Key: key}
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].Key < refs[j].Key
	})
	return refs
}
