package schema

import (
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// jsonldTimeLayout is the provenance timestamp format: ISO-8601 UTC
// with second precision.
const jsonldTimeLayout = "2006-01-02T15:04:05Z"

// standardPrefixOrder fixes the registration order of the base prefix
// map in every emitted @context, ahead of any graph-derived prefixes.
// A static table keeps @context generation deterministic and offline;
// no registry lookup happens at serialization time.
var standardPrefixOrder = []string{
	"rdf", "rdfs", "owl", "xsd", "skos", "dc", "dcterms", "foaf",
	"void", "sd", "sh", "schema", "prov",
}

// StandardPrefixes maps the fixed base prefixes to their namespace URIs.
var StandardPrefixes = map[string]string{
	"rdf":     "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
	"rdfs":    "http://www.w3.org/2000/01/rdf-schema#",
	"owl":     "http://www.w3.org/2002/07/owl#",
	"xsd":     "http://www.w3.org/2001/XMLSchema#",
	"skos":    "http://www.w3.org/2004/02/skos/core#",
	"dc":      "http://purl.org/dc/elements/1.1/",
	"dcterms": "http://purl.org/dc/terms/",
	"foaf":    "http://xmlns.com/foaf/0.1/",
	"void":    "http://rdfs.org/ns/void#",
	"sd":      "http://www.w3.org/ns/sparql-service-description#",
	"sh":      "http://www.w3.org/ns/shacl#",
	"schema":  "http://schema.org/",
	"prov":    "http://www.w3.org/ns/prov#",
}

// prefixRegistry compacts URIs into CURIEs. Graph-derived prefixes
// (ns0, ns1, ...) are pre-assigned in lexicographic namespace order by
// assignGraphPrefixes; compact only registers a fresh prefix as a
// fallback for namespaces the pre-pass did not see.
type prefixRegistry struct {
	namespaceToPrefix map[string]string
	order             []string // graph-derived prefixes only, in registration order
	next              int
}

func newPrefixRegistry() *prefixRegistry {
	r := &prefixRegistry{namespaceToPrefix: make(map[string]string)}
	for prefix, ns := range StandardPrefixes {
		r.namespaceToPrefix[ns] = prefix
	}
	return r
}

// compact returns a CURIE for uri when its namespace is known, or uri
// itself otherwise (registering a fresh ns<N> prefix as a side effect).
func (r *prefixRegistry) compact(uri string) string {
	ns, local := splitURI(uri)
	if ns == "" {
		return uri
	}
	prefix, ok := r.namespaceToPrefix[ns]
	if !ok {
		prefix = r.registerNamespace(ns)
	}
	return prefix + ":" + local
}

// assignGraphPrefixes pre-registers every graph-derived namespace the
// patterns reference, in lexicographic order. Numbering therefore
// depends only on the set of namespaces in the schema, never on pattern
// order, so serializing a parsed document reproduces the original bytes.
func (r *prefixRegistry) assignGraphPrefixes(patterns []Pattern) {
	seen := map[string]bool{}
	collect := func(uri string) {
		ns, _ := splitURI(uri)
		if ns == "" || seen[ns] {
			return
		}
		if _, ok := r.namespaceToPrefix[ns]; ok {
			return
		}
		seen[ns] = true
	}
	for _, p := range patterns {
		collect(p.SubjectClass)
		collect(p.PropertyURI)
		if p.ObjectKind == ObjectClass {
			collect(p.ObjectClassURI)
		}
		if p.ObjectKind == ObjectLiteral && p.Datatype != "" {
			collect(p.Datatype)
		}
	}

	namespaces := make([]string, 0, len(seen))
	for ns := range seen {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	for _, ns := range namespaces {
		r.registerNamespace(ns)
	}
}

func (r *prefixRegistry) registerNamespace(ns string) string {
	prefix := "ns" + strconv.Itoa(r.next)
	r.next++
	r.namespaceToPrefix[ns] = prefix
	r.order = append(r.order, prefix)
	return prefix
}

// context returns the full @context as an order-preserving JSON object:
// fixed base prefixes first (in standardPrefixOrder), then graph-derived
// prefixes in registration order. A plain Go map would not do: both
// encoding/json and sonic sort map keys alphabetically on marshal,
// which would break the deterministic @context ordering needed for
// stable output diffs across equivalent runs.
func (r *prefixRegistry) context() *orderedContext {
	ctx := &orderedContext{}
	for _, prefix := range standardPrefixOrder {
		ctx.entries = append(ctx.entries, prefixEntry{Prefix: prefix, Namespace: StandardPrefixes[prefix]})
	}
	for _, prefix := range r.order {
		for ns, p := range r.namespaceToPrefix {
			if p == prefix {
				ctx.entries = append(ctx.entries, prefixEntry{Prefix: prefix, Namespace: ns})
			}
		}
	}
	return ctx
}

type prefixEntry struct {
	Prefix    string
	Namespace string
}

// orderedContext marshals as a JSON object whose keys appear in
// insertion order, unlike a Go map.
type orderedContext struct {
	entries []prefixEntry
}

func (c *orderedContext) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range c.entries {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(e.Prefix))
		b.WriteByte(':')
		b.WriteString(strconv.Quote(e.Namespace))
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// splitURI splits uri into (namespace, local-name) at its last '#' or,
// failing that, its last '/'.
func splitURI(uri string) (namespace, local string) {
	if i := strings.LastIndexByte(uri, '#'); i >= 0 {
		return uri[:i+1], uri[i+1:]
	}
	if i := strings.LastIndexByte(uri, '/'); i >= 0 {
		return uri[:i+1], uri[i+1:]
	}
	return "", uri
}

type jsonldProvenance struct {
	Generator    string   `json:"generator"`
	Timestamp    string   `json:"timestamp"`
	Endpoint     string   `json:"endpoint"`
	Dataset      string   `json:"dataset"`
	GraphURIs    []string `json:"graph_uris,omitempty"`
	PatternCount int      `json:"pattern_count"`
	Strategy     string   `json:"strategy"`
}

// MarshalJSONLD serializes a MinedSchema into its JSON-LD document
// form: a fixed+graph-derived @context, one @graph node per subject
// class, and an @about provenance block.
func MarshalJSONLD(s *MinedSchema) ([]byte, error) {
	reg := newPrefixRegistry()
	reg.assignGraphPrefixes(s.Patterns)

	type nodeBuilder struct {
		id     string
		order  []string
		props  map[string]interface{}
		counts map[string]uint64
	}

	nodeOrder := []string{}
	nodes := map[string]*nodeBuilder{}

	for _, p := range s.Patterns {
		scCurie := reg.compact(p.SubjectClass)
		node, ok := nodes[p.SubjectClass]
		if !ok {
			node = &nodeBuilder{id: scCurie, props: map[string]interface{}{}}
			nodes[p.SubjectClass] = node
			nodeOrder = append(nodeOrder, p.SubjectClass)
		}

		propCurie := reg.compact(p.PropertyURI)
		value := objectValue(reg, p)

		if existing, ok := node.props[propCurie]; ok {
			switch v := existing.(type) {
			case []interface{}:
				node.props[propCurie] = append(v, value)
			default:
				node.props[propCurie] = []interface{}{v, value}
			}
		} else {
			node.order = append(node.order, propCurie)
			node.props[propCurie] = value
		}

		if p.Count != nil {
			if node.counts == nil {
				node.counts = map[string]uint64{}
			}
			node.counts[propCurie+" "+objectRef(value)] = *p.Count
		}
	}

	graph := make([]map[string]interface{}, 0, len(nodeOrder))
	for _, sc := range nodeOrder {
		n := nodes[sc]
		obj := map[string]interface{}{"@id": n.id}
		for _, prop := range n.order {
			obj[prop] = n.props[prop]
		}
		if n.counts != nil {
			obj["_counts"] = n.counts
		}
		graph = append(graph, obj)
	}

	doc := map[string]interface{}{
		"@context": reg.context(),
		"@graph":   graph,
		"@about": jsonldProvenance{
			Generator:    s.Provenance.Generator,
			Timestamp:    s.Provenance.Timestamp.UTC().Format(jsonldTimeLayout),
			Endpoint:     s.Provenance.Endpoint,
			Dataset:      s.Provenance.Dataset,
			GraphURIs:    s.Provenance.GraphURIs,
			PatternCount: s.Provenance.PatternCount,
			Strategy:     s.Provenance.Strategy,
		},
	}

	return sonic.ConfigStd.MarshalIndent(doc, "", "  ")
}

// objectRef returns the identifier string a count entry is keyed by:
// the object node's @id, or the bare "Literal" sentinel.
func objectRef(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		id, _ := t["@id"].(string)
		return id
	}
	return ""
}

func objectValue(reg *prefixRegistry, p Pattern) interface{} {
	switch p.ObjectKind {
	case ObjectClass:
		return map[string]interface{}{"@id": reg.compact(p.ObjectClassURI)}
	case ObjectLiteral:
		if p.Datatype == "" {
			return "Literal"
		}
		// The @type marker keeps datatype refs distinguishable from
		// class refs on parse, even for non-XSD datatypes such as
		// rdf:langString.
		return map[string]interface{}{"@id": reg.compact(p.Datatype), "@type": "rdfs:Datatype"}
	case ObjectResource:
		return map[string]interface{}{"@id": "rdfs:Resource"}
	default:
		return nil
	}
}
