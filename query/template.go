// Package query builds the SPARQL templates the schema miner drives:
// three SELECT DISTINCT discovery queries and their COUNT variants,
// each optionally restricted to one or more named graphs.
package query

import (
	"strconv"
	"strings"
)

const (
	offsetToken = "\x00OFFSET\x00"
	limitToken  = "\x00LIMIT\x00"
)

// Template holds a SPARQL query body with two internal substitution
// slots for OFFSET and LIMIT. Because the slots are non-printable
// sentinel tokens rather than textual `{offset}`/`{limit}` placeholders,
// rendering never needs to escape the SPARQL `{...}` block syntax.
type Template struct {
	body string
}

// newTemplate builds a Template whose body ends with the two sentinel
// tokens in an OFFSET/LIMIT clause.
func newTemplate(whereBody, selectVars string) Template {
	var b strings.Builder
	b.WriteString(selectVars)
	b.WriteString(" WHERE {\n")
	b.WriteString(whereBody)
	b.WriteString("\n}\nOFFSET ")
	b.WriteString(offsetToken)
	b.WriteString(" LIMIT ")
	b.WriteString(limitToken)
	return Template{body: b.String()}
}

// Render substitutes the current offset and limit, returning the
// concrete query text to send to the endpoint.
func (t Template) Render(offset, limit int) string {
	s := strings.ReplaceAll(t.body, offsetToken, strconv.Itoa(offset))
	s = strings.ReplaceAll(s, limitToken, strconv.Itoa(limit))
	return s
}

// String returns the template body with its sentinel tokens still in
// place, useful for logging/query-log purposes.
func (t Template) String() string { return t.body }
