package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ColumnPair maps one qualified source column to one target column.
type ColumnPair struct {
	Source string
	Target string
}

// ColumnMapping is an ordered source-to-target column mapping. YAML mappings
// do not guarantee order through a plain map, so unmarshalling walks the
// yaml.Node content directly; the document order of the pairs defines the
// target row's column order for inserts.
type ColumnMapping struct {
	pairs []ColumnPair
}

func NewColumnMapping(pairs ...ColumnPair) ColumnMapping {
	return ColumnMapping{pairs: pairs}
}

func (m *ColumnMapping) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("column_mapping must be a mapping, got %s", node.Tag)
	}
	m.pairs = m.pairs[:0]
	for i := 0; i+1 < len(node.Content); i += 2 {
		var source, target string
		if err := node.Content[i].Decode(&source); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&target); err != nil {
			return err
		}
		m.pairs = append(m.pairs, ColumnPair{Source: source, Target: target})
	}
	return nil
}

func (m ColumnMapping) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range m.pairs {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: p.Source},
			&yaml.Node{Kind: yaml.ScalarNode, Value: p.Target},
		)
	}
	return node, nil
}

// Pairs returns the mapping pairs in declaration order.
func (m ColumnMapping) Pairs() []ColumnPair {
	out := make([]ColumnPair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

func (m ColumnMapping) Len() int { return len(m.pairs) }

// TargetColumns returns the target column names in declaration order.
func (m ColumnMapping) TargetColumns() []string {
	cols := make([]string, 0, len(m.pairs))
	for _, p := range m.pairs {
		cols = append(cols, p.Target)
	}
	return cols
}
