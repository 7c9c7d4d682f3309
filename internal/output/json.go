package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jbweber/virtconn/internal/objects"
)

// JSONFormatter formats resources as JSON.
type JSONFormatter struct{}

// FormatObjects formats objects as a JSON array of records.
func (f *JSONFormatter) FormatObjects(objs []objects.Object) (string, error) {
	if len(objs) == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(records(objs), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal objects to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

// FormatFields formats a report as a JSON object. Keys keep report order.
func (f *JSONFormatter) FormatFields(fields []Field) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, fld := range fields {
		if i > 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(fld.Key)
		if err != nil {
			return "", fmt.Errorf("failed to marshal key %q: %w", fld.Key, err)
		}
		value, err := json.Marshal(fld.Value)
		if err != nil {
			return "", fmt.Errorf("failed to marshal value of %q: %w", fld.Key, err)
		}
		buf.Write(key)
		buf.WriteString(":")
		buf.Write(value)
	}
	buf.WriteString("}")

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return "", fmt.Errorf("failed to indent JSON: %w", err)
	}
	out.WriteString("\n")
	return out.String(), nil
}
