// Package export renders a session and its turns in downloadable formats.
package export

import (
	"fmt"
	"io"

	"github.com/agrovoice/agrovoice/internal/storage"
)

// Document is a session with its full turn log, ready for export.
type Document struct {
	Session storage.Session `json:"session" yaml:"session"`
	Turns   []storage.Turn  `json:"turns" yaml:"turns"`
}

// Exporter renders a session document to a writer in one format.
type Exporter interface {
	Export(doc Document, w io.Writer) error
	Extension() string
	ContentType() string
}

// New returns the exporter for the given format name.
func New(format string) (Exporter, error) {
	switch format {
	case "json", "":
		return &JSONExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, markdown, yaml)", format)
	}
}
