package sink

import (
	"context"
	"os"
	"path/filepath"
)

// LocalSink writes files under a root output directory, creating it
// (recursively) on first use.
type LocalSink struct {
	Dir string
}

// NewLocalSink builds a LocalSink rooted at dir and ensures dir exists.
func NewLocalSink(dir string) (*LocalSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalSink{Dir: dir}, nil
}

func (s *LocalSink) Write(_ context.Context, name string, data []byte) error {
	return os.WriteFile(filepath.Join(s.Dir, name), data, 0o644)
}
