package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const (
	xsdNamespace    = "http://www.w3.org/2001/XMLSchema#"
	rdfsResourceIRI = "http://www.w3.org/2000/01/rdf-schema#Resource"
	rdfsDatatypeIRI = "http://www.w3.org/2000/01/rdf-schema#Datatype"
)

type jsonldDocument struct {
	Context map[string]string        `json:"@context"`
	Graph   []map[string]interface{} `json:"@graph"`
	About   jsonldProvenance         `json:"@about"`
}

// ParseJSONLD reads a JSON-LD schema document produced by MarshalJSONLD
// back into a MinedSchema. Object nodes typed rdfs:Datatype (and, for
// documents written without that marker, nodes in the XSD namespace)
// are read as literal datatypes, rdfs:Resource as the untyped-URI
// sentinel; every other @id is an object class. Node order follows
// @graph, properties within a node are read in lexicographic order,
// matching the order MarshalJSONLD writes them in, so
// marshal-parse-marshal is byte-stable.
func ParseJSONLD(data []byte) (*MinedSchema, error) {
	var doc jsonldDocument
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding JSON-LD document: %w", err)
	}

	expand := func(curie string) string {
		if i := strings.Index(curie, ":"); i > 0 {
			if ns, ok := doc.Context[curie[:i]]; ok {
				return ns + curie[i+1:]
			}
		}
		return curie
	}

	var patterns []Pattern
	for _, node := range doc.Graph {
		id, _ := node["@id"].(string)
		if id == "" {
			return nil, fmt.Errorf("@graph node missing @id")
		}
		subjectClass := expand(id)

		counts := map[string]uint64{}
		if rawCounts, ok := node["_counts"].(map[string]interface{}); ok {
			for k, v := range rawCounts {
				if n, ok := asCount(v); ok {
					counts[k] = n
				}
			}
		}

		props := make([]string, 0, len(node))
		for k := range node {
			if strings.HasPrefix(k, "@") || k == "_counts" {
				continue
			}
			props = append(props, k)
		}
		sort.Strings(props)

		for _, prop := range props {
			propertyURI := expand(prop)
			values, ok := node[prop].([]interface{})
			if !ok {
				values = []interface{}{node[prop]}
			}
			for _, v := range values {
				p, ref, err := patternFromObject(subjectClass, propertyURI, v, expand)
				if err != nil {
					return nil, fmt.Errorf("node %s, property %s: %w", id, prop, err)
				}
				if cnt, ok := counts[prop+" "+ref]; ok {
					c := cnt
					p.Count = &c
				}
				patterns = append(patterns, p)
			}
		}
	}

	ts, err := time.Parse(jsonldTimeLayout, doc.About.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parsing @about timestamp: %w", err)
	}

	return &MinedSchema{
		Patterns: patterns,
		Provenance: Provenance{
			Generator:    doc.About.Generator,
			Timestamp:    ts,
			Endpoint:     doc.About.Endpoint,
			Dataset:      doc.About.Dataset,
			GraphURIs:    doc.About.GraphURIs,
			PatternCount: doc.About.PatternCount,
			Strategy:     doc.About.Strategy,
		},
	}, nil
}

func patternFromObject(subjectClass, propertyURI string, v interface{}, expand func(string) string) (Pattern, string, error) {
	base := Pattern{SubjectClass: subjectClass, PropertyURI: propertyURI}

	switch t := v.(type) {
	case string:
		if t != "Literal" {
			return Pattern{}, "", fmt.Errorf("unexpected bare string object %q", t)
		}
		base.ObjectKind = ObjectLiteral
		return base, t, nil
	case map[string]interface{}:
		id, _ := t["@id"].(string)
		if id == "" {
			return Pattern{}, "", fmt.Errorf("object node missing @id")
		}
		uri := expand(id)
		typ, _ := t["@type"].(string)
		switch {
		case typ != "" && expand(typ) == rdfsDatatypeIRI:
			base.ObjectKind = ObjectLiteral
			base.Datatype = uri
		case uri == rdfsResourceIRI:
			base.ObjectKind = ObjectResource
		case strings.HasPrefix(uri, xsdNamespace):
			// Documents written without the @type marker still read
			// XSD refs as datatypes.
			base.ObjectKind = ObjectLiteral
			base.Datatype = uri
		default:
			base.ObjectKind = ObjectClass
			base.ObjectClassURI = uri
		}
		return base, id, nil
	default:
		return Pattern{}, "", fmt.Errorf("unsupported object value of type %T", v)
	}
}

// asCount converts a decoded JSON number into a count. Counts above
// 2^53 lose precision on the JSON round trip; the in-memory cap is
// 2^64-1.
func asCount(v interface{}) (uint64, bool) {
	f, ok := v.(float64)
	if !ok || f < 0 {
		return 0, false
	}
	return uint64(f), true
}
