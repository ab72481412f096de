package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Document is the JSON export envelope
type Document struct {
	Symbol     string      `json:"symbol"`
	Spot       float64     `json:"spot"`
	Relaxed    bool        `json:"relaxed"`
	TraceID    string      `json:"trace_id,omitempty"`
	ExportedAt time.Time   `json:"exported_at"`
	Count      int         `json:"count"`
	Candidates []ResultRow `json:"candidates"`
}

// EncodeJSON writes an indented document to out
func EncodeJSON(out io.Writer, doc Document) error {
	if doc.Candidates == nil {
		doc.Candidates = []ResultRow{}
	}
	doc.Count = len(doc.Candidates)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}
