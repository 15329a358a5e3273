package query

import "strings"

// DiscoveryKind identifies one of the three schema-discovery query
// shapes the miner drives in order.
type DiscoveryKind int

const (
	// TypedObject discovers (subject class, property, object class)
	// triples where the object is itself a typed resource.
	TypedObject DiscoveryKind = iota
	// Literal discovers (subject class, property, datatype) triples
	// where the object is a literal.
	Literal
	// UntypedURI discovers (subject class, property) pairs where the
	// object is a URI with no declared rdf:type.
	UntypedURI
)

func (k DiscoveryKind) String() string {
	switch k {
	case TypedObject:
		return "typed-object"
	case Literal:
		return "literal"
	case UntypedURI:
		return "untyped-uri"
	default:
		return "unknown"
	}
}

// Vars returns the SELECT variable names a binding of this discovery
// kind carries, in the order the miner expects to read them.
func (k DiscoveryKind) Vars() []string {
	switch k {
	case TypedObject:
		return []string{"sc", "p", "oc"}
	case Literal:
		return []string{"sc", "p", "dt"}
	case UntypedURI:
		return []string{"sc", "p"}
	default:
		return nil
	}
}

var whereBodies = map[DiscoveryKind]string{
	TypedObject: "  ?s ?p ?o . ?s a ?sc . ?o a ?oc .",
	Literal:     "  ?s ?p ?o . ?s a ?sc . FILTER(isLiteral(?o)) BIND(DATATYPE(?o) AS ?dt)",
	UntypedURI:  "  ?s ?p ?o . ?s a ?sc . FILTER(isURI(?o)) FILTER NOT EXISTS { ?o a ?any }",
}

var selectVars = map[DiscoveryKind]string{
	TypedObject: "SELECT DISTINCT ?sc ?p ?oc",
	Literal:     "SELECT DISTINCT ?sc ?p ?dt",
	UntypedURI:  "SELECT DISTINCT ?sc ?p",
}

var countSelectVars = map[DiscoveryKind]string{
	TypedObject: "SELECT ?sc ?p ?oc (COUNT(*) AS ?cnt)",
	Literal:     "SELECT ?sc ?p ?dt (COUNT(*) AS ?cnt)",
	UntypedURI:  "SELECT ?sc ?p (COUNT(*) AS ?cnt)",
}

var groupByClauses = map[DiscoveryKind]string{
	TypedObject: "GROUP BY ?sc ?p ?oc",
	Literal:     "GROUP BY ?sc ?p ?dt",
	UntypedURI:  "GROUP BY ?sc ?p",
}

// Builder emits the discovery and COUNT templates for one mining job,
// honoring an optional named-graph restriction shared by all of them.
type Builder struct {
	graphURIs []string
}

// NewBuilder constructs a Builder restricted to graphURIs. A nil or
// empty list means no restriction: the default graph is queried.
func NewBuilder(graphURIs []string) *Builder {
	return &Builder{graphURIs: graphURIs}
}

// Discovery returns the SELECT DISTINCT template for kind.
func (b *Builder) Discovery(kind DiscoveryKind) Template {
	body := wrapGraph(whereBodies[kind], b.graphURIs)
	return newTemplate(body, selectVars[kind])
}

// Count returns the best-effort COUNT/GROUP BY template for kind.
func (b *Builder) Count(kind DiscoveryKind) Template {
	body := wrapGraph(whereBodies[kind], b.graphURIs)
	tmpl := newTemplate(body, countSelectVars[kind])
	// Insert the GROUP BY clause before the OFFSET/LIMIT tail that
	// newTemplate already appended.
	withGroupBy := insertGroupBy(tmpl.body, groupByClauses[kind])
	return Template{body: withGroupBy}
}

func insertGroupBy(body, groupBy string) string {
	marker := "\nOFFSET "
	idx := strings.Index(body, marker)
	if idx < 0 {
		return body
	}
	return body[:idx] + "\n" + groupBy + body[idx:]
}
