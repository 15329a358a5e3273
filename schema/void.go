package schema

import (
	"crypto/md5"
	"fmt"
	"io"
	"strconv"

	"github.com/knakk/rdf"
)

const (
	nsVoid    = "http://rdfs.org/ns/void#"
	nsVoidExt = "http://ldf.fi/void-ext#"
)

// xsdInteger is the datatype IRI used for void:triples count literals.
var xsdInteger rdf.IRI

func init() {
	var err error
	xsdInteger, err = rdf.NewIRI("http://www.w3.org/2001/XMLSchema#integer")
	if err != nil {
		panic(err)
	}
}

// classPartitionID derives the stable local identifier for a subject
// class's VoID class-partition node.
func classPartitionID(classURI string) string {
	sum := md5.Sum([]byte(classURI))
	return fmt.Sprintf("cp_%x", sum)[:len("cp_")+12]
}

func propertyPartitionID(sc, p, objectKind, object string) string {
	sum := md5.Sum([]byte(sc + "\x00" + p + "\x00" + objectKind + "\x00" + object))
	return fmt.Sprintf("pp_%x", sum)[:len("pp_")+12]
}

func triple(s rdf.Subject, p rdf.Predicate, o rdf.Object) rdf.Triple {
	return rdf.Triple{Subj: s, Pred: p, Obj: o}
}

// BuildVoIDTriples converts a MinedSchema into the canonical VoID
// partition graph: one class-partition node per subject class and one
// property-partition node per pattern, with void:triples counts when
// available.
func BuildVoIDTriples(s *MinedSchema) ([]rdf.Triple, error) {
	var triples []rdf.Triple

	classSeen := map[string]bool{}
	addClassPartition := func(classURI string) error {
		if classSeen[classURI] {
			return nil
		}
		classSeen[classURI] = true

		node := iri("urn:void:node:" + classPartitionID(classURI))
		cls, err := rdf.NewIRI(classURI)
		if err != nil {
			return err
		}
		triples = append(triples, triple(node, iri(nsVoid+"class"), cls))
		return nil
	}

	for _, p := range s.Patterns {
		if err := addClassPartition(p.SubjectClass); err != nil {
			return nil, err
		}

		objectKey := p.ObjectClassURI
		if p.ObjectKind == ObjectLiteral {
			objectKey = p.Datatype
		}
		if p.ObjectKind == ObjectResource {
			objectKey = "rdfs:Resource"
		}

		node := iri("urn:void:node:" + propertyPartitionID(p.SubjectClass, p.PropertyURI, string(p.ObjectKind), objectKey))

		propURI, err := rdf.NewIRI(p.PropertyURI)
		if err != nil {
			return nil, err
		}
		triples = append(triples, triple(node, iri(nsVoid+"property"), propURI))

		scURI, err := rdf.NewIRI(p.SubjectClass)
		if err != nil {
			return nil, err
		}
		triples = append(triples, triple(node, iri(nsVoidExt+"subjectClass"), scURI))

		switch p.ObjectKind {
		case ObjectClass:
			if err := addClassPartition(p.ObjectClassURI); err != nil {
				return nil, err
			}
			classPartitionNode := iri("urn:void:node:" + classPartitionID(p.ObjectClassURI))
			triples = append(triples, triple(node, iri(nsVoid+"classPartition"), classPartitionNode))

			ocURI, err := rdf.NewIRI(p.ObjectClassURI)
			if err != nil {
				return nil, err
			}
			triples = append(triples, triple(node, iri(nsVoidExt+"objectClass"), ocURI))
		case ObjectLiteral:
			dtPartitionNode := iri("urn:void:node:dt:" + propertyPartitionID(p.SubjectClass, p.PropertyURI, "dt", p.Datatype))
			triples = append(triples, triple(node, iri(nsVoidExt+"datatypePartition"), dtPartitionNode))

			if p.Datatype != "" {
				dtURI, err := rdf.NewIRI(p.Datatype)
				if err != nil {
					return nil, err
				}
				triples = append(triples, triple(dtPartitionNode, iri(nsVoidExt+"datatype"), dtURI))
			}
		case ObjectResource:
			// Untyped URI objects: the property partition alone
			// records the pattern; no partition sub-node needed.
		}

		if p.Count != nil {
			lit := rdf.NewTypedLiteral(fmt.Sprintf("%d", *p.Count), xsdInteger)
			triples = append(triples, triple(node, iri(nsVoid+"triples"), lit))
		}
	}

	return triples, nil
}

func iri(s string) rdf.IRI {
	term, err := rdf.NewIRI(s)
	if err != nil {
		// Internal node identifiers are always well-formed URNs; a
		// failure here indicates a programming error, not bad input.
		panic(err)
	}
	return term
}

// PatternsFromVoIDTriples inverts BuildVoIDTriples: it reassembles the
// patterns a VoID property-partition graph encodes, in the order the
// partition nodes first appear in the triple stream.
func PatternsFromVoIDTriples(triples []rdf.Triple) ([]Pattern, error) {
	type partition struct {
		property     string
		subjectClass string
		objectClass  string
		dtNode       string
		count        *uint64
	}

	datatypes := map[string]string{} // datatype-partition node -> datatype URI
	parts := map[string]*partition{}
	var order []string

	for _, tr := range triples {
		subj := tr.Subj.String()
		pred := tr.Pred.String()

		if pred == nsVoidExt+"datatype" {
			datatypes[subj] = tr.Obj.String()
			continue
		}

		switch pred {
		case nsVoid + "property", nsVoidExt + "subjectClass", nsVoidExt + "objectClass",
			nsVoidExt + "datatypePartition", nsVoid + "triples":
		default:
			// void:class and void:classPartition triples carry no
			// pattern information beyond what the partition holds.
			continue
		}

		part, ok := parts[subj]
		if !ok {
			part = &partition{}
			parts[subj] = part
			order = append(order, subj)
		}

		switch pred {
		case nsVoid + "property":
			part.property = tr.Obj.String()
		case nsVoidExt + "subjectClass":
			part.subjectClass = tr.Obj.String()
		case nsVoidExt + "objectClass":
			part.objectClass = tr.Obj.String()
		case nsVoidExt + "datatypePartition":
			part.dtNode = tr.Obj.String()
		case nsVoid + "triples":
			n, err := strconv.ParseUint(tr.Obj.String(), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing void:triples count on %s: %w", subj, err)
			}
			part.count = &n
		}
	}

	patterns := make([]Pattern, 0, len(order))
	for _, subj := range order {
		part := parts[subj]
		if part.property == "" || part.subjectClass == "" {
			return nil, fmt.Errorf("incomplete property partition %s", subj)
		}

		p := Pattern{
			SubjectClass: part.subjectClass,
			PropertyURI:  part.property,
			Count:        part.count,
		}
		switch {
		case part.objectClass != "":
			p.ObjectKind = ObjectClass
			p.ObjectClassURI = part.objectClass
		case part.dtNode != "":
			p.ObjectKind = ObjectLiteral
			p.Datatype = datatypes[part.dtNode]
		default:
			p.ObjectKind = ObjectResource
		}
		patterns = append(patterns, p)
	}

	return patterns, nil
}

// ParseVoID decodes a Turtle VoID partition graph, as written by
// MarshalVoID, back into the patterns it encodes.
func ParseVoID(r io.Reader) ([]Pattern, error) {
	dec := rdf.NewTripleDecoder(r, rdf.Turtle)
	triples, err := dec.DecodeAll()
	if err != nil {
		return nil, err
	}
	return PatternsFromVoIDTriples(triples)
}

// MarshalVoID serializes a MinedSchema's VoID graph as Turtle.
func MarshalVoID(s *MinedSchema, w io.Writer) error {
	triples, err := BuildVoIDTriples(s)
	if err != nil {
		return err
	}
	enc := rdf.NewTripleEncoder(w, rdf.Turtle)
	for _, t := range triples {
		if err := enc.Encode(t); err != nil {
			return err
		}
	}
	return enc.Close()
}
