// Package debugdump writes the last upstream exchange of each operation kind
// to disk for troubleshooting extraction problems.
//
// Every file is overwritten on the next request of the same kind. A nil
// *Writer is valid and discards everything, which is how dumps are disabled.
package debugdump

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/maproxy/maproxy/internal/extract"
)

// Writer writes dump files into one directory.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// Section is a named group of fields for the field log.
type Section struct {
	Name   string
	Fields []extract.Field
}

// New creates the dump directory and returns a Writer for it.
func New(dir string, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// Dir returns the dump directory, or "" for a nil Writer.
func (w *Writer) Dir() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// Output records the upstream URL and the payload sent back to the tagging client.
func (w *Writer) Output(kind, upstreamURL string, payload any) {
	if w == nil {
		return
	}

	var buf bytes.Buffer
	buf.WriteString("Used Metal Archives URL:\n")
	buf.WriteString(upstreamURL)
	buf.WriteString("\n\nData sent to Mp3tag:\n")

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{"results": payload}); err != nil {
		w.logger.Warn("encoding debug output failed", "kind", kind, "error", err)
		return
	}

	w.write("debug_mp3tag_output_"+kind+".txt", buf.Bytes())
}

// HTML stores the raw page a record was extracted from.
func (w *Writer) HTML(kind, page string) {
	if w == nil {
		return
	}
	w.write("debug_"+kind+"_html.html", []byte(page))
}

// Fields writes one line per field, marking empty values and values with
// non-ASCII characters.
func (w *Writer) Fields(kind string, sections ...Section) {
	if w == nil {
		return
	}

	var b strings.Builder
	for _, s := range sections {
		indent := ""
		if s.Name != "" {
			fmt.Fprintf(&b, "%s:\n", s.Name)
			indent = "  "
		}
		for _, f := range s.Fields {
			if f.Value == "" {
				fmt.Fprintf(&b, "%s%s: [EMPTY]\n", indent, f.Name)
				continue
			}
			fmt.Fprintf(&b, "%s%s: %s\n", indent, f.Name, f.Value)
			if extract.ContainsUnicode(f.Value) {
				fmt.Fprintf(&b, "%s  ! %s contains Unicode\n", indent, f.Name)
			}
		}
	}

	w.write("debug_"+kind+"_log.txt", []byte(b.String()))
}

func (w *Writer) write(name string, data []byte) {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		w.logger.Warn("writing debug dump failed", "path", path, "error", err)
	}
}
