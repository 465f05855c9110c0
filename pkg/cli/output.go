package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is plain text output (default).
	FormatText OutputFormat = "text"

	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"

	// FormatTable is a bordered table.
	FormatTable OutputFormat = "table"

	// FormatCSV is CSV output.
	FormatCSV OutputFormat = "csv"
)

// Formats lists the accepted output formats, for flag help.
var Formats = []OutputFormat{FormatText, FormatJSON, FormatTable, FormatCSV}

// ParseFormat validates a format name.
func ParseFormat(s string) (OutputFormat, error) {
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return "", NewConfigError("format", fmt.Sprintf("unknown output format %q (want %s)", s, strings.Join(names, ", ")))
}

// Tabular is data that can be rendered as rows, for table and CSV output.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// Titled data gives a title to its table.
type Titled interface {
	Title() string
}

// Raw data is encoded as its Raw value in JSON output, so views built for
// display do not change the JSON shape.
type Raw interface {
	Raw() any
}

// Formatter formats command output.
type Formatter interface {
	Format(data any) ([]byte, error)
	FormatTo(w io.Writer, data any) error
}

// TextFormatter formats output as plain text, using String when data has
// one.
type TextFormatter struct{}

// Format converts data to text format.
func (f *TextFormatter) Format(data any) ([]byte, error) {
	return render(f, data)
}

// FormatTo writes data to writer in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	s := fmt.Sprintf("%v", data)
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, err := io.WriteString(w, s)
	return err
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// Format converts data to JSON format.
func (f *JSONFormatter) Format(data any) ([]byte, error) {
	return render(f, data)
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	if r, ok := data.(Raw); ok {
		data = r.Raw()
	}
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// CSVFormatter formats Tabular data as CSV.
type CSVFormatter struct{}

// Format converts data to CSV format.
func (f *CSVFormatter) Format(data any) ([]byte, error) {
	return render(f, data)
}

// FormatTo writes data to writer in CSV format.
func (f *CSVFormatter) FormatTo(w io.Writer, data any) error {
	t, ok := data.(Tabular)
	if !ok {
		return fmt.Errorf("CSV output is not supported for %T", data)
	}

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(t.Header()); err != nil {
		return err
	}
	if err := csvWriter.WriteAll(t.Rows()); err != nil {
		return err
	}
	return csvWriter.Error()
}

// TableFormatter renders Tabular data as a table.
type TableFormatter struct {
	// MaxColumnWidth wraps cells wider than this many characters. Zero
	// disables wrapping.
	MaxColumnWidth int
}

// Format converts data to a table.
func (f *TableFormatter) Format(data any) ([]byte, error) {
	return render(f, data)
}

// FormatTo writes data to writer as a table.
func (f *TableFormatter) FormatTo(w io.Writer, data any) error {
	t, ok := data.(Tabular)
	if !ok {
		return fmt.Errorf("table output is not supported for %T", data)
	}

	tw := table.NewWriter()
	if titled, ok := data.(Titled); ok {
		tw.SetTitle(titled.Title())
	}
	tw.AppendHeader(toRow(t.Header()))

	rows := t.Rows()
	wrapped := false
	for _, r := range rows {
		tw.AppendRow(toRow(r))
		for _, cell := range r {
			if f.MaxColumnWidth > 0 && utf8.RuneCountInString(cell) > f.MaxColumnWidth {
				wrapped = true
			}
		}
	}

	if f.MaxColumnWidth > 0 {
		configs := make([]table.ColumnConfig, len(t.Header()))
		for i := range configs {
			configs[i] = table.ColumnConfig{Number: i + 1, WidthMax: f.MaxColumnWidth}
		}
		tw.SetColumnConfigs(configs)
	}

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	// Separate rows only when a cell wraps onto several lines.
	style.Options.SeparateRows = wrapped
	tw.SetStyle(style)

	_, err := io.WriteString(w, tw.Render()+"\n")
	return err
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

func render(f Formatter, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.FormatTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatTable:
		return &TableFormatter{MaxColumnWidth: 60}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}
