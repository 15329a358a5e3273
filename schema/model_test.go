package schema

import "testing"

func TestDedup_PreservesFirstOccurrenceOrder(t *testing.T) {
	c1 := uint64(5)
	c2 := uint64(9)
	patterns := []Pattern{
		{SubjectClass: "http://ex/A", PropertyURI: "http://ex/p", ObjectKind: ObjectClass, ObjectClassURI: "http://ex/B", Count: &c1},
		{SubjectClass: "http://ex/A", PropertyURI: "http://ex/p", ObjectKind: ObjectClass, ObjectClassURI: "http://ex/B", Count: &c2},
		{SubjectClass: "http://ex/A", PropertyURI: "http://ex/q", ObjectKind: ObjectLiteral, Datatype: "http://ex/xsd#string"},
	}

	got := Dedup(patterns)
	if len(got) != 2 {
		t.Fatalf("len(Dedup) = %d, want 2", len(got))
	}
	if *got[0].Count != c1 {
		t.Fatalf("expected first occurrence retained, got count %d", *got[0].Count)
	}
	if got[1].PropertyURI != "http://ex/q" {
		t.Fatalf("unexpected second pattern: %+v", got[1])
	}
}

func TestPattern_KeyDistinguishesObjectKindAndClass(t *testing.T) {
	base := Pattern{SubjectClass: "http://ex/A", PropertyURI: "http://ex/p"}

	a := base
	a.ObjectKind = ObjectClass
	a.ObjectClassURI = "http://ex/B"

	b := base
	b.ObjectKind = ObjectClass
	b.ObjectClassURI = "http://ex/C"

	c := base
	c.ObjectKind = ObjectLiteral
	c.Datatype = "http://ex/B" // same string as a's object class URI

	if a.Key() == b.Key() {
		t.Fatal("distinct object classes must produce distinct keys")
	}
	if a.Key() == c.Key() {
		t.Fatal("ObjectClass and ObjectLiteral patterns must not collide even with the same URI string")
	}
}

func TestDedup_NoDuplicateKeysInOutput(t *testing.T) {
	patterns := []Pattern{
		{SubjectClass: "http://ex/A", PropertyURI: "http://ex/p", ObjectKind: ObjectResource},
		{SubjectClass: "http://ex/A", PropertyURI: "http://ex/p", ObjectKind: ObjectResource},
		{SubjectClass: "http://ex/A", PropertyURI: "http://ex/p", ObjectKind: ObjectLiteral},
		{SubjectClass: "http://ex/A", PropertyURI: "http://ex/p", ObjectKind: ObjectLiteral, Datatype: "http://ex/xsd#int"},
	}
	got := Dedup(patterns)
	seen := map[Key]bool{}
	for _, p := range got {
		k := p.Key()
		if seen[k] {
			t.Fatalf("duplicate key in Dedup output: %+v", k)
		}
		seen[k] = true
	}
	if len(got) != 3 {
		t.Fatalf("len(Dedup) = %d, want 3", len(got))
	}
}
