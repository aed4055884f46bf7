package record

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrDecode marks stored snapshot or change set text that cannot be decoded.
var ErrDecode = errors.New("decode")

const yamlIndent = 2

// EncodeAttributes renders a snapshot as a block-style YAML mapping.
func EncodeAttributes(a *Attributes) ([]byte, error) {
	if a == nil {
		a = NewAttributes()
	}
	return encodeYAML(a)
}

// DecodeAttributes parses snapshot text. Empty text is an empty mapping.
func DecodeAttributes(data []byte) (*Attributes, error) {
	node, err := documentNode(data)
	if err != nil {
		return nil, err
	}
	attrs := NewAttributes()
	if node == nil {
		return attrs, nil
	}
	if err := attrs.UnmarshalYAML(node); err != nil {
		return nil, err
	}
	return attrs, nil
}

type identityDoc struct {
	Type  string `yaml:"type"`
	Class string `yaml:"class"`
	ID    string `yaml:"id"`
}

type changeDoc struct {
	Old      any        `yaml:"old"`
	New      any        `yaml:"new"`
	Kind     ChangeKind `yaml:"kind"`
	Complete bool       `yaml:"complete"`
}

type changeSetDoc struct {
	Object  identityDoc `yaml:"object"`
	Changes *yaml.Node  `yaml:"changes"`
}

// EncodeChangeSet renders the commit message body of an update.
func EncodeChangeSet(cs *ChangeSet) ([]byte, error) {
	if cs == nil {
		return nil, errors.New("encode change set: nil change set")
	}
	changes := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, c := range cs.Changes() {
		var keyNode, valueNode yaml.Node
		if err := keyNode.Encode(c.Field); err != nil {
			return nil, fmt.Errorf("encode change %q: %w", c.Field, err)
		}
		doc := changeDoc{Old: c.Old, New: c.New, Kind: c.Kind, Complete: c.Complete}
		if err := valueNode.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode change %q: %w", c.Field, err)
		}
		changes.Content = append(changes.Content, &keyNode, &valueNode)
	}
	return encodeYAML(changeSetDoc{
		Object: identityDoc{
			Type:  cs.Object.TypeTag,
			Class: cs.Object.ClassName,
			ID:    cs.Object.ID,
		},
		Changes: changes,
	})
}

// DecodeChangeSet parses a commit message body. Empty text yields an empty
// change set with a zero Identity.
func DecodeChangeSet(data []byte) (*ChangeSet, error) {
	node, err := documentNode(data)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return NewChangeSet(Identity{}), nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: change set must be a mapping, got %s", ErrDecode, nodeKindName(node.Kind))
	}
	var doc changeSetDoc
	if err := node.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: change set: %v", ErrDecode, err)
	}
	cs := NewChangeSet(Identity{TypeTag: doc.Object.Type, ClassName: doc.Object.Class, ID: doc.Object.ID})
	if doc.Changes == nil || doc.Changes.Kind == 0 {
		return cs, nil
	}
	if doc.Changes.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: changes must be a mapping, got %s", ErrDecode, nodeKindName(doc.Changes.Kind))
	}
	content := doc.Changes.Content
	for i := 0; i+1 < len(content); i += 2 {
		c, err := decodeChange(content[i], content[i+1])
		if err != nil {
			return nil, err
		}
		cs.Add(c)
	}
	return cs, nil
}

func decodeChange(keyNode, valueNode *yaml.Node) (Change, error) {
	var field string
	if err := keyNode.Decode(&field); err != nil {
		return Change{}, fmt.Errorf("%w: line %d: %v", ErrDecode, keyNode.Line, err)
	}
	if valueNode.Kind != yaml.MappingNode {
		return Change{}, fmt.Errorf("%w: change %q must be a mapping", ErrDecode, field)
	}
	c := Change{Field: field, Kind: OldNew, Complete: true}
	for i := 0; i+1 < len(valueNode.Content); i += 2 {
		name := valueNode.Content[i].Value
		value := valueNode.Content[i+1]
		var err error
		switch name {
		case "old":
			c.Old, err = decodeValue(value)
		case "new":
			c.New, err = decodeValue(value)
		case "kind":
			err = value.Decode(&c.Kind)
		case "complete":
			err = value.Decode(&c.Complete)
		}
		if err != nil {
			return Change{}, fmt.Errorf("%w: change %q field %s: %v", ErrDecode, field, name, err)
		}
	}
	return c, nil
}

func documentNode(data []byte) (*yaml.Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	node := doc.Content[0]
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		return nil, nil
	}
	return node, nil
}

func encodeYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(yamlIndent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
