// Package sink abstracts where mined-schema output files are written:
// local disk by default, or an S3 bucket for operators who archive
// mined schemas directly to object storage.
package sink

import "context"

// Sink persists named byte payloads. Write must be safe to call
// concurrently for distinct names; the batch orchestrator writes one
// job's outputs at a time but does not serialize across sinks itself.
type Sink interface {
	Write(ctx context.Context, name string, data []byte) error
}
