package export

import (
	"fmt"
	"io"
	"sort"
)

// MarkdownExporter exports sessions in Markdown format
type MarkdownExporter struct{}

// Export exports a session to Markdown format
func (e *MarkdownExporter) Export(doc *Document, w io.Writer) error {
	mw := &markdownWriter{w: w}
	mw.printf("# %s\n\n", doc.Label)
	mw.printf("**Session:** %s  \n", doc.ID)
	mw.printf("**Status:** %s  \n", doc.Status)
	mw.printf("**Turns:** %d\n\n", len(doc.Turns))

	if len(doc.Options) > 0 {
		groups := make([]string, 0, len(doc.Options))
		for g := range doc.Options {
			groups = append(groups, g)
		}
		sort.Strings(groups)
		for _, g := range groups {
			mw.printf("- %s: %s\n", g, doc.Options[g])
		}
		mw.printf("\n")
	}

	for i, turn := range doc.Turns {
		who := turn.Participant
		if turn.Role == "request" {
			who = "user"
		}
		mw.printf("**%s:**\n\n%s\n\n", who, turn.Text)
		if i < len(doc.Turns)-1 {
			mw.printf("---\n\n")
		}
	}
	return mw.err
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}

// markdownWriter keeps the first write error and skips writes after it.
type markdownWriter struct {
	w   io.Writer
	err error
}

func (m *markdownWriter) printf(format string, args ...any) {
	if m.err != nil {
		return
	}
	_, m.err = fmt.Fprintf(m.w, format, args...)
}
