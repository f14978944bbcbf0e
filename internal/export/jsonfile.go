package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"txdash/internal/core"
)

// JSONFileSink writes the snapshot as one indented JSON array in the same
// shape the seed feed uses, so the file can be fed back through SEED_FILE.
type JSONFileSink struct {
	Path string
}

func (s *JSONFileSink) String() string { return "jsonfile:" + s.Path }

// Write replaces the file atomically via a temp file in the same directory.
func (s *JSONFileSink) Write(ctx context.Context, txs []core.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if txs == nil {
		txs = []core.Transaction{}
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".txdash-export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(txs); err != nil {
		tmp.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}
