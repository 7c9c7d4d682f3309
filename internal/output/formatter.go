// Package output provides formatters for displaying enumerated libvirt
// objects and connection reports in various formats (table, YAML, JSON).
package output

import (
	"fmt"

	"github.com/jbweber/virtconn/internal/objects"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Formatter formats objects and reports for output.
type Formatter interface {
	// FormatObjects formats a list of wrapped objects.
	FormatObjects(objs []objects.Object) (string, error)

	// FormatFields formats an ordered key/value report.
	FormatFields(fields []Field) (string, error)
}

// Record is the flattened form of an object used by every format.
type Record struct {
	Kind    string `json:"kind" yaml:"kind"`
	Name    string `json:"name" yaml:"name"`
	UUID    string `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Summary string `json:"summary" yaml:"summary"`
}

// NewRecord flattens o.
func NewRecord(o objects.Object) Record {
	return Record{
		Kind:    string(o.Kind()),
		Name:    o.Name(),
		UUID:    o.UUID(),
		Summary: o.Summary(),
	}
}

func records(objs []objects.Object) []Record {
	out := make([]Record, 0, len(objs))
	for _, o := range objs {
		out = append(out, NewRecord(o))
	}
	return out
}

// Field is one line of a key/value report.
type Field struct {
	Key   string
	Value string
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	switch Format(format) {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
