// Package snapshot exports the contents of a CoolDB server as a JSON-lines
// document, restores such documents, and stores them in S3-compatible buckets.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/birbparty/cooldb/sdk"
)

// Source is the read side of a CoolDB client
type Source interface {
	ListKeys(ctx context.Context, opts ...sdk.CallOption) ([]interface{}, error)
	GetValue(ctx context.Context, key string, opts ...sdk.CallOption) (interface{}, error)
}

// Sink is the write side of a CoolDB client
type Sink interface {
	SetValue(ctx context.Context, key string, value interface{}, opts ...sdk.CallOption) (interface{}, error)
}

// Entry is one line of a snapshot document
type Entry struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// Exporter writes every entry of a server as JSON lines
type Exporter struct {
	source Source
}

// NewExporter creates an exporter reading from source
func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

// Export writes one line per key, in the order the server lists them, and
// returns the number of entries written.
func (e *Exporter) Export(ctx context.Context, w io.Writer) (int, error) {
	keys, err := e.source.ListKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list keys: %w", err)
	}

	enc := json.NewEncoder(w)
	for i, k := range keys {
		key, ok := k.(string)
		if !ok {
			return i, fmt.Errorf("unexpected key type %T at index %d", k, i)
		}

		value, err := e.source.GetValue(ctx, key)
		if err != nil {
			return i, fmt.Errorf("failed to get %q: %w", key, err)
		}

		if err := enc.Encode(Entry{Key: key, Value: value}); err != nil {
			return i, fmt.Errorf("failed to write entry: %w", err)
		}
	}

	return len(keys), nil
}

// Importer replays a snapshot document into a server
type Importer struct {
	sink Sink
}

// NewImporter creates an importer writing to sink
func NewImporter(sink Sink) *Importer {
	return &Importer{sink: sink}
}

// Import sets every entry of the document read from r and returns how many
// were applied. Numbers keep their original text.
func (im *Importer) Import(ctx context.Context, r io.Reader) (int, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	count := 0
	for {
		var entry Entry
		if err := dec.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, fmt.Errorf("entry %d: %w", count+1, err)
		}
		if entry.Key == "" {
			return count, fmt.Errorf("entry %d: missing key", count+1)
		}

		if _, err := im.sink.SetValue(ctx, entry.Key, entry.Value); err != nil {
			return count, fmt.Errorf("failed to set %q: %w", entry.Key, err)
		}
		count++
	}
}
