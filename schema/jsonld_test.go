package schema

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// sortedPatterns returns a copy of ps ordered by the 4-tuple key, for
// order-insensitive structural comparison.
func sortedPatterns(ps []Pattern) []Pattern {
	out := append([]Pattern(nil), ps...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key(), out[j].Key()
		if a.SubjectClass != b.SubjectClass {
			return a.SubjectClass < b.SubjectClass
		}
		if a.PropertyURI != b.PropertyURI {
			return a.PropertyURI < b.PropertyURI
		}
		if a.ObjectKind != b.ObjectKind {
			return a.ObjectKind < b.ObjectKind
		}
		return a.Datatype < b.Datatype
	})
	return out
}

func sampleSchema() *MinedSchema {
	cnt := uint64(42)
	return &MinedSchema{
		Patterns: []Pattern{
			{SubjectClass: "http://ex/Person", PropertyURI: "http://ex/knows", ObjectKind: ObjectClass, ObjectClassURI: "http://ex/Person", Count: &cnt},
			{SubjectClass: "http://ex/Person", PropertyURI: "http://ex/name", ObjectKind: ObjectLiteral, Datatype: "http://www.w3.org/2001/XMLSchema#string"},
			{SubjectClass: "http://ex/Person", PropertyURI: "http://ex/homepage", ObjectKind: ObjectResource},
		},
		Provenance: Provenance{
			Generator:    "rdfsolve",
			Timestamp:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Endpoint:     "http://example.org/sparql",
			Dataset:      "ds1",
			PatternCount: 3,
			Strategy:     "miner",
		},
	}
}

func TestMarshalJSONLD_GraphNodePerSubjectClass(t *testing.T) {
	body, err := MarshalJSONLD(sampleSchema())
	if err != nil {
		t.Fatalf("MarshalJSONLD: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	graph, ok := doc["@graph"].([]interface{})
	if !ok || len(graph) != 1 {
		t.Fatalf("expected exactly one @graph node, got %v", doc["@graph"])
	}

	node := graph[0].(map[string]interface{})
	if node["@id"] != "ns0:Person" {
		t.Fatalf("unexpected node @id (want a compacted ns0 CURIE): %v", node["@id"])
	}
	// name, knows, homepage should all appear as properties on the one node.
	propCount := 0
	for k := range node {
		if k != "@id" && k != "_counts" {
			propCount++
		}
	}
	if propCount != 3 {
		t.Fatalf("expected 3 properties on the node, got %d: %v", propCount, node)
	}

	// The counted pattern surfaces in the node's _counts block.
	counts, ok := node["_counts"].(map[string]interface{})
	if !ok || len(counts) != 1 {
		t.Fatalf("expected one _counts entry, got %v", node["_counts"])
	}
}

func TestMarshalJSONLD_LiteralWithoutDatatypeIsBareString(t *testing.T) {
	s := &MinedSchema{
		Patterns: []Pattern{
			{SubjectClass: "http://ex/Person", PropertyURI: "http://ex/nick", ObjectKind: ObjectLiteral},
		},
	}
	body, err := MarshalJSONLD(s)
	if err != nil {
		t.Fatalf("MarshalJSONLD: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	graph := doc["@graph"].([]interface{})
	node := graph[0].(map[string]interface{})
	for k, v := range node {
		if k == "@id" {
			continue
		}
		if v != "Literal" {
			t.Fatalf("expected bare \"Literal\" sentinel, got %v", v)
		}
	}
}

func TestMarshalJSONLD_MultipleObjectsBecomeArray(t *testing.T) {
	s := &MinedSchema{
		Patterns: []Pattern{
			{SubjectClass: "http://ex/Person", PropertyURI: "http://ex/knows", ObjectKind: ObjectClass, ObjectClassURI: "http://ex/Person"},
			{SubjectClass: "http://ex/Person", PropertyURI: "http://ex/knows", ObjectKind: ObjectClass, ObjectClassURI: "http://ex/Org"},
		},
	}
	body, err := MarshalJSONLD(s)
	if err != nil {
		t.Fatalf("MarshalJSONLD: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	node := doc["@graph"].([]interface{})[0].(map[string]interface{})

	var knowsKey string
	for k := range node {
		if k != "@id" {
			knowsKey = k
			break
		}
	}
	arr, ok := node[knowsKey].([]interface{})
	if !ok || len(arr) != 2 {
		t.Fatalf("expected a 2-element array for the shared property, got %v", node[knowsKey])
	}
}

func TestMarshalJSONLD_ContextOrderingIsDeterministic(t *testing.T) {
	first, err := MarshalJSONLD(sampleSchema())
	if err != nil {
		t.Fatalf("MarshalJSONLD: %v", err)
	}
	second, err := MarshalJSONLD(sampleSchema())
	if err != nil {
		t.Fatalf("MarshalJSONLD: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("two marshals of equivalent input produced different output:\n%s\n---\n%s", first, second)
	}
}

func TestMarshalJSONLD_ContextStartsWithStandardPrefixes(t *testing.T) {
	body, err := MarshalJSONLD(sampleSchema())
	if err != nil {
		t.Fatalf("MarshalJSONLD: %v", err)
	}

	// The @context must be an object literal with "rdf" registered before
	// any graph-derived "ns0" prefix, per the deterministic-ordering rule.
	ctxStart := indexOf(body, `"@context"`)
	if ctxStart < 0 {
		t.Fatalf("no @context object found in %s", body)
	}
	rdfIdx := indexOf(body, `"rdf"`)
	ns0Idx := indexOf(body, `"ns0"`)
	if rdfIdx < 0 {
		t.Fatalf("expected \"rdf\" prefix in context: %s", body)
	}
	if ns0Idx >= 0 && rdfIdx > ns0Idx {
		t.Fatalf("base prefix \"rdf\" must be registered before graph-derived \"ns0\": %s", body)
	}
}

func indexOf(b []byte, sub string) int {
	s := string(b)
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestParseJSONLD_MarshalIsIdempotent(t *testing.T) {
	first, err := MarshalJSONLD(sampleSchema())
	if err != nil {
		t.Fatalf("MarshalJSONLD: %v", err)
	}
	parsed, err := ParseJSONLD(first)
	if err != nil {
		t.Fatalf("ParseJSONLD: %v", err)
	}
	second, err := MarshalJSONLD(parsed)
	if err != nil {
		t.Fatalf("MarshalJSONLD (reparsed): %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("serialize(parse(serialize(S))) != serialize(S):\n%s\n---\n%s", first, second)
	}
}

func TestParseJSONLD_RecoversPatternsAndCounts(t *testing.T) {
	body, err := MarshalJSONLD(sampleSchema())
	if err != nil {
		t.Fatalf("MarshalJSONLD: %v", err)
	}
	parsed, err := ParseJSONLD(body)
	if err != nil {
		t.Fatalf("ParseJSONLD: %v", err)
	}

	want := sampleSchema()
	if diff := cmp.Diff(sortedPatterns(want.Patterns), sortedPatterns(parsed.Patterns)); diff != "" {
		t.Fatalf("patterns mismatch after parse (-want +got):\n%s", diff)
	}
	if parsed.Provenance.Dataset != "ds1" || parsed.Provenance.Strategy != "miner" {
		t.Fatalf("unexpected provenance after parse: %+v", parsed.Provenance)
	}
	if !parsed.Provenance.Timestamp.Equal(want.Provenance.Timestamp) {
		t.Fatalf("timestamp = %v, want %v", parsed.Provenance.Timestamp, want.Provenance.Timestamp)
	}
}

func TestParseJSONLD_NonXSDDatatypeStaysLiteral(t *testing.T) {
	s := &MinedSchema{
		Patterns: []Pattern{
			{
				SubjectClass: "http://ex/Person",
				PropertyURI:  "http://ex/label",
				ObjectKind:   ObjectLiteral,
				Datatype:     "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString",
			},
		},
		Provenance: Provenance{Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	body, err := MarshalJSONLD(s)
	if err != nil {
		t.Fatalf("MarshalJSONLD: %v", err)
	}
	parsed, err := ParseJSONLD(body)
	if err != nil {
		t.Fatalf("ParseJSONLD: %v", err)
	}
	if diff := cmp.Diff(s.Patterns, parsed.Patterns); diff != "" {
		t.Fatalf("non-XSD datatype must survive the round trip as a literal (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_JSONLDToVoIDToPatterns(t *testing.T) {
	body, err := MarshalJSONLD(sampleSchema())
	if err != nil {
		t.Fatalf("MarshalJSONLD: %v", err)
	}
	parsed, err := ParseJSONLD(body)
	if err != nil {
		t.Fatalf("ParseJSONLD: %v", err)
	}
	triples, err := BuildVoIDTriples(parsed)
	if err != nil {
		t.Fatalf("BuildVoIDTriples: %v", err)
	}
	recovered, err := PatternsFromVoIDTriples(triples)
	if err != nil {
		t.Fatalf("PatternsFromVoIDTriples: %v", err)
	}

	want := sampleSchema().Patterns
	if diff := cmp.Diff(sortedPatterns(want), sortedPatterns(recovered)); diff != "" {
		t.Fatalf("patterns mismatch after the VoID round trip (-want +got):\n%s", diff)
	}
}
