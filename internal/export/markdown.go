package export

import (
	"fmt"
	"io"
	"time"

	"github.com/agrovoice/agrovoice/internal/storage"
)

// MarkdownExporter renders the session document as a readable transcript.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(doc Document, w io.Writer) error {
	title := doc.Session.Title
	if title == "" {
		title = doc.Session.ID
	}
	if _, err := fmt.Fprintf(w, "# %s\n\n", title); err != nil {
		return err
	}

	fmt.Fprintf(w, "**Session:** %s  \n", doc.Session.ID)
	fmt.Fprintf(w, "**Language:** %s  \n", doc.Session.Language)
	fmt.Fprintf(w, "**Created:** %s  \n", doc.Session.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "**Turns:** %d\n\n---\n\n", len(doc.Turns))

	for i, t := range doc.Turns {
		label := "Farmer"
		if t.Role == storage.RoleAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(w, "**%s** (%s)", label, t.Modality)
		if t.Intent != "" {
			fmt.Fprintf(w, " · %s", t.Intent)
		}
		fmt.Fprintf(w, "\n\n%s\n\n", t.Content)
		if t.AudioRef != "" {
			fmt.Fprintf(w, "_audio: %s_\n\n", t.AudioRef)
		}
		if i < len(doc.Turns)-1 {
			fmt.Fprint(w, "---\n\n")
		}
	}

	return nil
}

func (e *MarkdownExporter) Extension() string { return "md" }

func (e *MarkdownExporter) ContentType() string { return "text/markdown" }
