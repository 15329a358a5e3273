package query

import (
	"fmt"
	"strings"
)

// wrapGraph wraps body in the appropriate named-graph clause: none when
// graphURIs is empty, a single `GRAPH <uri> { ... }` for one URI, or a
// `VALUES (?_g) {...} GRAPH ?_g { ... }` block for more than one.
func wrapGraph(body string, graphURIs []string) string {
	switch len(graphURIs) {
	case 0:
		return body
	case 1:
		return fmt.Sprintf("GRAPH <%s> {\n%s\n}", graphURIs[0], body)
	default:
		var values strings.Builder
		for _, uri := range graphURIs {
			values.WriteString(fmt.Sprintf("(<%s>) ", uri))
		}
		return fmt.Sprintf("VALUES (?_g) { %s}\nGRAPH ?_g {\n%s\n}", values.String(), body)
	}
}
