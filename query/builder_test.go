package query

import (
	"strings"
	"testing"
)

func TestTemplate_RenderSubstitutesOffsetAndLimit(t *testing.T) {
	b := NewBuilder(nil)
	tmpl := b.Discovery(TypedObject)

	got := tmpl.Render(20, 100)
	if !strings.Contains(got, "OFFSET 20 LIMIT 100") {
		t.Fatalf("rendered query missing OFFSET/LIMIT: %s", got)
	}
	if strings.Contains(got, "\x00") {
		t.Fatalf("rendered query still contains a sentinel token: %s", got)
	}
}

func TestTemplate_BracesSurviveRendering(t *testing.T) {
	// The discovery WHERE bodies contain SPARQL {...} blocks; rendering
	// must never corrupt them via textual brace substitution.
	b := NewBuilder(nil)
	tmpl := b.Discovery(UntypedURI)
	got := tmpl.Render(0, 10)
	if !strings.Contains(got, "FILTER NOT EXISTS { ?o a ?any }") {
		t.Fatalf("FILTER NOT EXISTS block corrupted: %s", got)
	}
}

func TestBuilder_NoGraphRestriction(t *testing.T) {
	b := NewBuilder(nil)
	got := b.Discovery(TypedObject).Render(0, 10)
	if strings.Contains(got, "GRAPH") {
		t.Fatalf("unrestricted builder emitted a GRAPH clause: %s", got)
	}
}

func TestBuilder_SingleGraphWrapsEveryQuery(t *testing.T) {
	b := NewBuilder([]string{"http://e/g"})
	for _, kind := range []DiscoveryKind{TypedObject, Literal, UntypedURI} {
		got := b.Discovery(kind).Render(0, 10)
		idx := strings.Index(got, "WHERE {\n")
		body := strings.TrimLeft(got[idx+len("WHERE {\n"):], " \t")
		if !strings.HasPrefix(body, "GRAPH <http://e/g> {") {
			t.Errorf("%s: query body does not begin with the GRAPH clause: %s", kind, got)
		}
	}
}

func TestBuilder_MultiGraphUsesValues(t *testing.T) {
	b := NewBuilder([]string{"http://e/g1", "http://e/g2"})
	got := b.Discovery(TypedObject).Render(0, 10)
	if !strings.Contains(got, "VALUES (?_g)") || !strings.Contains(got, "GRAPH ?_g {") {
		t.Fatalf("expected a VALUES+GRAPH block for multiple graphs: %s", got)
	}
	if !strings.Contains(got, "<http://e/g1>") || !strings.Contains(got, "<http://e/g2>") {
		t.Fatalf("expected both graph URIs in the VALUES clause: %s", got)
	}
}

func TestBuilder_CountAddsGroupByBeforeOffset(t *testing.T) {
	b := NewBuilder(nil)
	got := b.Count(Literal).Render(0, 10)
	if !strings.Contains(got, "COUNT(*) AS ?cnt") {
		t.Fatalf("count query missing COUNT(*): %s", got)
	}
	groupIdx := strings.Index(got, "GROUP BY ?sc ?p ?dt")
	offsetIdx := strings.Index(got, "OFFSET 0")
	if groupIdx < 0 || offsetIdx < 0 || groupIdx > offsetIdx {
		t.Fatalf("GROUP BY must precede OFFSET: %s", got)
	}
}

func TestDiscoveryKind_Vars(t *testing.T) {
	cases := map[DiscoveryKind][]string{
		TypedObject: {"sc", "p", "oc"},
		Literal:     {"sc", "p", "dt"},
		UntypedURI:  {"sc", "p"},
	}
	for kind, want := range cases {
		got := kind.Vars()
		if len(got) != len(want) {
			t.Fatalf("%s: Vars() = %v, want %v", kind, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: Vars()[%d] = %q, want %q", kind, i, got[i], want[i])
			}
		}
	}
}
