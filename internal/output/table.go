package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/jbweber/virtconn/internal/objects"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatObjects formats objects as a table, one row per object.
func (f *TableFormatter) FormatObjects(objs []objects.Object) (string, error) {
	if len(objs) == 0 {
		return "No objects found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "KIND\tNAME\tUUID\tSUMMARY")
	}

	for _, r := range records(objs) {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Kind, r.Name, dash(r.UUID), dash(r.Summary))
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatFields formats a report as two aligned columns.
func (f *TableFormatter) FormatFields(fields []Field) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "KEY\tVALUE")
	}
	for _, fld := range fields {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", fld.Key, dash(fld.Value))
	}

	_ = w.Flush()
	return buf.String(), nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
