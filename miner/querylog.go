package miner

import (
	"time"

	"github.com/senforsce/rdfsolve/query"
)

// QueryRecord is one entry in a QueryLog: the query category and the
// rendered template (with its offset/limit slots still unfilled) that
// was executed, plus when it ran.
type QueryRecord struct {
	Category  string
	Template  string
	Timestamp time.Time
}

// QueryLog is an explicit, caller-owned accumulator of the queries a
// mining job issued, for audit purposes. A QueryLog is passed in by
// the caller and scoped to one job; there is no package-level state.
type QueryLog struct {
	records []QueryRecord
}

// NewQueryLog returns an empty QueryLog ready to be passed to Mine.
func NewQueryLog() *QueryLog { return &QueryLog{} }

// Records returns the recorded queries in execution order.
func (l *QueryLog) Records() []QueryRecord {
	if l == nil {
		return nil
	}
	return l.records
}

// record appends an entry. A nil receiver is a no-op, so callers that
// don't want a query log can simply pass nil.
func (l *QueryLog) record(category string, tmpl query.Template) {
	if l == nil {
		return
	}
	l.records = append(l.records, QueryRecord{
		Category:  category,
		Template:  tmpl.String(),
		Timestamp: time.Now().UTC(),
	})
}
