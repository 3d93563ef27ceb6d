// Package report renders a finished harvest run in the output formats the
// CLI supports.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Content is anything that can be rendered in every report format.
type Content interface {
	ToHTML() (string, error)
	ToText() (string, error)
	ToMarkdown() (string, error)
	ToJSON() ([]byte, error)
	ToCSV() (string, error)
}

// Supported formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatHTML     = "html"
)

// Format renders content as format.
func Format(content Content, format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatHTML:
		return content.ToHTML()
	case FormatText:
		return content.ToText()
	case FormatMarkdown:
		return content.ToMarkdown()
	case FormatCSV:
		return content.ToCSV()
	case FormatJSON:
		b, err := content.ToJSON()
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// ValidFormat reports whether format is supported.
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case FormatText, FormatMarkdown, FormatJSON, FormatCSV, FormatHTML:
		return true
	}
	return false
}

// InferFormat guesses a format from a file extension, or returns "".
func InferFormat(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".json":
		return FormatJSON
	case ".html", ".htm":
		return FormatHTML
	case ".txt":
		return FormatText
	case ".csv":
		return FormatCSV
	default:
		return ""
	}
}

// Write renders content and writes it to path, or to w when path is empty.
func Write(content Content, format, path string, w io.Writer) error {
	out, err := Format(content, format)
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	if path == "" {
		_, err = fmt.Fprintln(w, out)
		return err
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}
