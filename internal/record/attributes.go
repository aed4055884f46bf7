package record

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// Attributes is an insertion-ordered attribute mapping. A nil *Attributes
// behaves as an empty mapping for every read method.
type Attributes struct {
	keys   []string
	values map[string]any
}

func NewAttributes() *Attributes {
	return &Attributes{values: map[string]any{}}
}

// AttributesOf builds Attributes from alternating key/value arguments.
// It panics when a key is not a string or a value is missing.
func AttributesOf(pairs ...any) *Attributes {
	if len(pairs)%2 != 0 {
		panic("record.AttributesOf: odd number of arguments")
	}
	a := NewAttributes()
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("record.AttributesOf: key %v is %T, not string", pairs[i], pairs[i]))
		}
		a.Set(key, pairs[i+1])
	}
	return a
}

// FromMap converts a plain map, ordering keys lexically since Go maps carry
// no order of their own.
func FromMap(m map[string]any) *Attributes {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	a := NewAttributes()
	for _, k := range keys {
		a.Set(k, m[k])
	}
	return a
}

// Set stores value under key. An existing key keeps its position.
func (a *Attributes) Set(key string, value any) {
	if a.values == nil {
		a.values = map[string]any{}
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

func (a *Attributes) Get(key string) (any, bool) {
	if a == nil {
		return nil, false
	}
	v, ok := a.values[key]
	return v, ok
}

// Lookup returns the value for key or nil when absent.
func (a *Attributes) Lookup(key string) any {
	v, _ := a.Get(key)
	return v
}

func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

func (a *Attributes) Keys() []string {
	if a == nil {
		return nil
	}
	return slices.Clone(a.keys)
}

// All iterates over the mapping in insertion order.
func (a *Attributes) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if a == nil {
			return
		}
		for _, k := range a.keys {
			if !yield(k, a.values[k]) {
				return
			}
		}
	}
}

func (a *Attributes) Clone() *Attributes {
	out := NewAttributes()
	for k, v := range a.All() {
		out.Set(k, v)
	}
	return out
}

// Map flattens the mapping (and any nested Attributes) into plain maps.
func (a *Attributes) Map() map[string]any {
	out := make(map[string]any, a.Len())
	for k, v := range a.All() {
		out[k] = plainValue(v)
	}
	return out
}

// Equal reports whether both mappings hold the same keys with values whose
// stored representation is identical. Key order is not compared.
func (a *Attributes) Equal(other *Attributes) bool {
	if a.Len() != other.Len() {
		return false
	}
	for k, v := range a.All() {
		ov, ok := other.Get(k)
		if !ok || !ValuesEqual(v, ov) {
			return false
		}
	}
	return true
}

func (a *Attributes) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for k, v := range a.All() {
		var keyNode, valueNode yaml.Node
		if err := keyNode.Encode(k); err != nil {
			return nil, fmt.Errorf("encode key %q: %w", k, err)
		}
		if err := valueNode.Encode(v); err != nil {
			return nil, fmt.Errorf("encode value of %q: %w", k, err)
		}
		node.Content = append(node.Content, &keyNode, &valueNode)
	}
	return node, nil
}

func (a *Attributes) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: expected a mapping, got %s", ErrDecode, nodeKindName(node.Kind))
	}
	a.keys = nil
	a.values = make(map[string]any, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key string
		if err := node.Content[i].Decode(&key); err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrDecode, node.Content[i].Line, err)
		}
		value, err := decodeValue(node.Content[i+1])
		if err != nil {
			return err
		}
		a.Set(key, value)
	}
	return nil
}

// decodeValue keeps nested mappings ordered by decoding them as Attributes.
func decodeValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.AliasNode:
		if node.Alias == nil {
			return nil, fmt.Errorf("%w: line %d: dangling alias", ErrDecode, node.Line)
		}
		return decodeValue(node.Alias)
	case yaml.MappingNode:
		nested := NewAttributes()
		if err := nested.UnmarshalYAML(node); err != nil {
			return nil, err
		}
		return nested, nil
	case yaml.SequenceNode:
		items := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := decodeValue(child)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	default:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrDecode, node.Line, err)
		}
		return v, nil
	}
}

// ValuesEqual compares two attribute values by their YAML representation, so
// that values of different Go types that store identically (int and int64,
// a nested map and nested Attributes with the same order) are equal.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ea, errA := yaml.Marshal(a)
	eb, errB := yaml.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return string(ea) == string(eb)
}

func plainValue(v any) any {
	switch typed := v.(type) {
	case *Attributes:
		return typed.Map()
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = plainValue(item)
		}
		return out
	default:
		return v
	}
}

func nodeKindName(kind yaml.Kind) string {
	switch kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "empty node"
	}
}
