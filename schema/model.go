// Package schema defines the mined-schema model and its two
// serializations: JSON-LD and a VoID RDF graph.
package schema

import "time"

// ObjectKind classifies what a Pattern's object position is: another
// typed class, a literal (optionally typed), or an untyped URI resource.
type ObjectKind string

const (
	ObjectClass    ObjectKind = "class"
	ObjectLiteral  ObjectKind = "literal"
	ObjectResource ObjectKind = "resource"
)

// Pattern is one schema edge observed in the endpoint: the 4-tuple
// (subject_class, property_uri, object_kind, datatype) plus an optional
// best-effort triple count.
type Pattern struct {
	SubjectClass   string
	PropertyURI    string
	ObjectKind     ObjectKind
	ObjectClassURI string // populated when ObjectKind == ObjectClass
	Datatype       string // populated when ObjectKind == ObjectLiteral and known
	Count          *uint64
}

// Key is the 4-tuple uniqueness/dedup key for a Pattern.
type Key struct {
	SubjectClass string
	PropertyURI  string
	ObjectKind   ObjectKind
	Datatype     string
}

// Key returns p's dedup/uniqueness key. For ObjectClass patterns the
// object class URI is folded into the key via Datatype's slot so that
// distinct object classes remain distinct patterns.
func (p Pattern) Key() Key {
	k := Key{SubjectClass: p.SubjectClass, PropertyURI: p.PropertyURI, ObjectKind: p.ObjectKind}
	switch p.ObjectKind {
	case ObjectClass:
		k.Datatype = p.ObjectClassURI
	case ObjectLiteral:
		k.Datatype = p.Datatype
	}
	return k
}

// Provenance is the metadata block attached to a MinedSchema.
type Provenance struct {
	Generator    string
	Timestamp    time.Time
	Endpoint     string
	Dataset      string
	GraphURIs    []string
	PatternCount int
	Strategy     string
}

// MinedSchema is an ordered, deduplicated sequence of Patterns plus a
// provenance block. Ordering is insertion order and is part of the
// contract: two runs over identical data must produce identical order.
type MinedSchema struct {
	Patterns   []Pattern
	Provenance Provenance
}

// Dedup returns patterns with duplicates (by Key) removed, preserving
// first occurrence.
func Dedup(patterns []Pattern) []Pattern {
	seen := make(map[Key]int, len(patterns))
	out := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		k := p.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = len(out)
		out = append(out, p)
	}
	return out
}
