package export

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONLExporter exports one turn per line.
type JSONLExporter struct{}

// Export exports a session to JSONL format
func (e *JSONLExporter) Export(doc *Document, w io.Writer) error {
	enc := json.NewEncoder(w)
	for i, turn := range doc.Turns {
		if err := enc.Encode(turn); err != nil {
			return fmt.Errorf("failed to encode turn %d: %w", i, err)
		}
	}
	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
