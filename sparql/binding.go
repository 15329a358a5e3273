package sparql

import "github.com/bytedance/sonic"

// CellKind is the SPARQL JSON results binding kind for one cell.
type CellKind string

const (
	KindURI     CellKind = "uri"
	KindLiteral CellKind = "literal"
	KindBNode   CellKind = "bnode"
)

// Cell is one value in a binding row: a variable's value plus the metadata
// the SPARQL 1.1 JSON results format attaches to it.
type Cell struct {
	Kind     CellKind
	Value    string
	Datatype string
	Lang     string
}

// Binding maps a SELECT query's variable names to their bound cell for one
// result row.
type Binding map[string]Cell

// Page is one page of a paginated SELECT result.
type Page struct {
	Vars     []string
	Bindings []Binding
}

// jsonResults mirrors the wire shape of the SPARQL 1.1 JSON results format:
//
//	{"head": {"vars": [...]}, "results": {"bindings": [{"var": {"type":...,"value":...}}]}}
type jsonResults struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]jsonCell `json:"bindings"`
	} `json:"results"`
}

type jsonCell struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype"`
	Lang     string `json:"xml:lang"`
}

// decodePage parses a SPARQL 1.1 JSON results body into a Page.
func decodePage(body []byte) (Page, error) {
	var raw jsonResults
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return Page{}, newDecodeError(err)
	}

	page := Page{
		Vars:     raw.Head.Vars,
		Bindings: make([]Binding, 0, len(raw.Results.Bindings)),
	}

	for _, row := range raw.Results.Bindings {
		binding := make(Binding, len(row))
		for name, cell := range row {
			kind, err := cellKind(cell.Type)
			if err != nil {
				return Page{}, newDecodeError(err)
			}
			binding[name] = Cell{
				Kind:     kind,
				Value:    cell.Value,
				Datatype: cell.Datatype,
				Lang:     cell.Lang,
			}
		}
		page.Bindings = append(page.Bindings, binding)
	}

	return page, nil
}

func cellKind(t string) (CellKind, error) {
	switch t {
	case "uri":
		return KindURI, nil
	case "literal", "typed-literal":
		return KindLiteral, nil
	case "bnode":
		return KindBNode, nil
	default:
		return "", &Error{Kind: DecodeError, Message: "unrecognized binding type: " + t}
	}
}
