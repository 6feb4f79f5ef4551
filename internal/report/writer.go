package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Format represents the output format
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// ParseFormat parses a format string
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Writer renders documents in one format. CSV writes its header once per
// Writer.
type Writer struct {
	format    Format
	w         *bufio.Writer
	csvWriter *csv.Writer
	mu        sync.Mutex
	hasHeader bool
}

// NewWriter creates a new output writer
func NewWriter(format string, w io.Writer) (*Writer, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	writer := &Writer{format: f, w: bufio.NewWriter(w)}
	if f == FormatCSV {
		writer.csvWriter = csv.NewWriter(writer.w)
	}
	return writer, nil
}

// NewStdoutWriter creates a writer for stdout
func NewStdoutWriter(format string) (*Writer, error) {
	return NewWriter(format, os.Stdout)
}

// Write renders doc and flushes it.
func (w *Writer) Write(doc *Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	switch w.format {
	case FormatText:
		err = w.writeText(doc)
	case FormatJSON:
		encoder := json.NewEncoder(w.w)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(doc)
	case FormatJSONL:
		encoder := json.NewEncoder(w.w)
		for _, e := range doc.Events() {
			if err = encoder.Encode(e); err != nil {
				break
			}
		}
	case FormatCSV:
		err = w.writeCSV(doc)
	default:
		err = fmt.Errorf("unsupported format: %s", w.format)
	}
	if err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) writeText(doc *Document) error {
	for _, s := range doc.Sections {
		if _, err := fmt.Fprintln(w.w, s.Heading); err != nil {
			return err
		}
		if s.Err != "" {
			if _, err := fmt.Fprintf(w.w, "    %s\n", s.Err); err != nil {
				return err
			}
			continue
		}
		for _, e := range s.Events {
			if _, err := fmt.Fprintf(w.w, "    %s\n", textLine(doc.View, e)); err != nil {
				return err
			}
		}
	}
	return nil
}

func textLine(v View, e Event) string {
	window := e.Interval().String()
	switch v {
	case ViewDowntime, ViewOverload:
		return window
	case ViewError:
		return string(e.Label) + " " + window
	}
	return e.Subject + " " + string(e.Label) + " " + window
}

func (w *Writer) writeCSV(doc *Document) error {
	if !w.hasHeader {
		w.csvWriter.Write([]string{"subject", "label", "start", "end"})
		w.hasHeader = true
	}
	for _, e := range doc.Events() {
		end := ""
		if t, ok := e.End.Time(); ok {
			end = t.Format(time.RFC3339)
		}
		w.csvWriter.Write([]string{e.Subject, string(e.Label), e.Start.Format(time.RFC3339), end})
	}
	w.csvWriter.Flush()
	return w.csvWriter.Error()
}
