package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/virtconn/internal/objects"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

// FormatObjects formats objects as a YAML sequence of records.
func (f *YAMLFormatter) FormatObjects(objs []objects.Object) (string, error) {
	if len(objs) == 0 {
		return "[]\n", nil
	}

	data, err := yaml.Marshal(records(objs))
	if err != nil {
		return "", fmt.Errorf("failed to marshal objects to YAML: %w", err)
	}

	return string(data), nil
}

// FormatFields formats a report as a YAML mapping. Keys keep report order.
func (f *YAMLFormatter) FormatFields(fields []Field) (string, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, fld := range fields {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fld.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fld.Value},
		)
	}

	data, err := yaml.Marshal(node)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to YAML: %w", err)
	}

	return string(data), nil
}
