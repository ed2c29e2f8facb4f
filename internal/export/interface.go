// Package export renders session histories in portable formats.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joshbot/chatsessions/pkg/types"
)

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(doc *Document, w io.Writer) error
	Extension() string
}

// Formats lists the accepted format names.
func Formats() []string {
	return []string{"json", "jsonl", "yaml", "markdown"}
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return &JSONExporter{}, nil
	case "jsonl":
		return &JSONLExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: %s)", format, strings.Join(Formats(), ", "))
	}
}

// Document is the exported form of a session.
type Document struct {
	ID       string            `json:"id" yaml:"id"`
	Label    string            `json:"label" yaml:"label"`
	Status   string            `json:"status" yaml:"status"`
	Exported string            `json:"exported" yaml:"exported"`
	Options  map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
	Turns    []Turn            `json:"turns" yaml:"turns"`
}

// Turn is one exported history entry. Response parts are flattened to text.
type Turn struct {
	Role        string `json:"role" yaml:"role"`
	Participant string `json:"participant,omitempty" yaml:"participant,omitempty"`
	Text        string `json:"text" yaml:"text"`
	Timestamp   string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// NewDocument flattens a session view into an exportable document.
func NewDocument(view types.SessionView, now time.Time) *Document {
	doc := &Document{
		ID:       view.Item.ID,
		Label:    view.Item.Label,
		Status:   string(view.Item.Status),
		Exported: now.UTC().Format(time.RFC3339),
		Turns:    make([]Turn, 0, len(view.History)),
	}
	if len(view.Options) > 0 {
		doc.Options = view.Options
	}
	for _, t := range view.History {
		turn := Turn{Role: string(t.Role), Participant: t.Participant}
		if t.Time > 0 {
			turn.Timestamp = time.UnixMilli(t.Time).UTC().Format(time.RFC3339)
		}
		if t.Role == types.RoleRequest {
			turn.Text = t.Prompt
		} else {
			turn.Text = partsText(t.Parts)
		}
		doc.Turns = append(doc.Turns, turn)
	}
	return doc
}

func partsText(parts []types.ResponsePart) string {
	var lines []string
	for _, p := range parts {
		switch {
		case p.Confirmation != nil:
			lines = append(lines, fmt.Sprintf("[%s] %s", p.Confirmation.Title, p.Confirmation.Message))
		case p.Text != "":
			lines = append(lines, strings.TrimLeft(p.Text, "\n"))
		}
	}
	return strings.Join(lines, "\n")
}
