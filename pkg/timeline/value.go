package timeline

import (
	"edit-box/pkg/encoder/filtergraph"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind Shape of a description value
type Kind uint8

const (
	Scalar Kind = iota
	Sequence
	Mapping
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	}
	return "unknown"
}

// Value A loosely typed piece of description : a scalar, an ordered list or an ordered key/value mapping.
// Scalars keep their literal text, so that parameters are forwarded to FFMPEG exactly as written
type Value struct {
	kind Kind
	// Scalar literal
	text string
	// Sequence elements, or mapping values
	items []Value
	// Mapping keys, aligned with items
	keys []string
}

// Text Build a scalar value
func Text(s string) Value {
	return Value{kind: Scalar, text: s}
}

// List Build a sequence value
func List(items ...Value) Value {
	return Value{kind: Sequence, items: items}
}

// Entry A single mapping entry, used to build mapping values in order
type Entry struct {
	Key   string
	Value Value
}

// Map Build a mapping value, keeping the entries order
func Map(entries ...Entry) Value {
	v := Value{kind: Mapping}
	for _, e := range entries {
		v.keys = append(v.keys, e.Key)
		v.items = append(v.items, e.Value)
	}
	return v
}

func (v Value) Kind() Kind {
	return v.kind
}

// Text Scalar literal, empty for other kinds
func (v Value) Text() string {
	return v.text
}

// Items Sequence elements. Nil for other kinds
func (v Value) Items() []Value {
	if v.kind != Sequence {
		return nil
	}
	return v.items
}

// Keys Mapping keys, in written order. Nil for other kinds
func (v Value) Keys() []string {
	return v.keys
}

// Len Number of elements of a sequence or a mapping, 0 for a scalar
func (v Value) Len() int {
	return len(v.items)
}

// Get Value associated with key in a mapping
func (v Value) Get(key string) (Value, bool) {
	for i, k := range v.keys {
		if k == key {
			return v.items[i], true
		}
	}
	return Value{}, false
}

// Float Parse a scalar as a real number
func (v Value) Float() (float64, error) {
	if v.kind != Scalar {
		return 0, fmt.Errorf("expected a number, got %s", v)
	}
	return strconv.ParseFloat(strings.TrimSpace(v.text), 64)
}

// Int Parse a scalar as an integer
func (v Value) Int() (int, error) {
	if v.kind != Scalar {
		return 0, fmt.Errorf("expected an integer, got %s", v)
	}
	return strconv.Atoi(strings.TrimSpace(v.text))
}

// String Flow representation, used in error messages
func (v Value) String() string {
	switch v.kind {
	case Sequence:
		parts := make([]string, len(v.items))
		for i, item := range v.items {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Mapping:
		parts := make([]string, len(v.items))
		for i, item := range v.items {
			parts[i] = v.keys[i] + ": " + item.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return strconv.Quote(v.text)
}

// ParseYAML Decode a YAML document into a description value
func ParseYAML(data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Value{}, &CompileError{Kind: ErrMalformedDescription, Err: err}
	}
	return FromYAML(&doc)
}

// UnmarshalJSON Decode a JSON description. JSON being YAML, the mapping order is kept as well
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseYAML(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromYAML Convert a decoded YAML node. Mapping order is preserved, null becomes an empty sequence
func FromYAML(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return List(), nil
		}
		return FromYAML(n.Content[0])
	case yaml.AliasNode:
		return FromYAML(n.Alias)
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return List(), nil
		}
		return Text(n.Value), nil
	case yaml.SequenceNode:
		v := Value{kind: Sequence, items: make([]Value, 0, len(n.Content))}
		for _, c := range n.Content {
			item, err := FromYAML(c)
			if err != nil {
				return Value{}, err
			}
			v.items = append(v.items, item)
		}
		return v, nil
	case yaml.MappingNode:
		v := Value{kind: Mapping}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, val := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return Value{}, newError(ErrMalformedDescription, "", "line %d: mapping keys must be scalars", k.Line)
			}
			item, err := FromYAML(val)
			if err != nil {
				return Value{}, err
			}
			v.keys = append(v.keys, k.Value)
			v.items = append(v.items, item)
		}
		return v, nil
	}
	return Value{}, newError(ErrMalformedDescription, "", "line %d: unsupported YAML node", n.Line)
}

// Normalize Convert plain Go values (as produced by a generic decoder) into a description value.
// Map keys are sorted, as Go maps carry no order
func Normalize(obj interface{}) (Value, error) {
	switch o := obj.(type) {
	case nil:
		return List(), nil
	case Value:
		return o, nil
	case string:
		return Text(o), nil
	case bool:
		return Text(strconv.FormatBool(o)), nil
	case int:
		return Text(strconv.Itoa(o)), nil
	case int64:
		return Text(strconv.FormatInt(o, 10)), nil
	case uint64:
		return Text(strconv.FormatUint(o, 10)), nil
	case float32:
		return Text(filtergraph.FormatNumber(float64(o))), nil
	case float64:
		return Text(filtergraph.FormatNumber(o)), nil
	case []string:
		v := List()
		for _, s := range o {
			v.items = append(v.items, Text(s))
		}
		return v, nil
	case []interface{}:
		v := List()
		for _, item := range o {
			n, err := Normalize(item)
			if err != nil {
				return Value{}, err
			}
			v.items = append(v.items, n)
		}
		return v, nil
	case map[string]interface{}:
		keys := make([]string, 0, len(o))
		for k := range o {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		v := Map()
		for _, k := range keys {
			n, err := Normalize(o[k])
			if err != nil {
				return Value{}, err
			}
			v.keys = append(v.keys, k)
			v.items = append(v.items, n)
		}
		return v, nil
	}
	return Value{}, newError(ErrMalformedDescription, "", "expected scalar, list, or mapping, but got %T", obj)
}

// Args Options of a constructor, coerced from a description value : a scalar becomes a single
// positional argument, a sequence becomes positional arguments, a mapping becomes named arguments
type Args struct {
	Positional []Value
	Named      []Entry
}

func argsOf(v Value) Args {
	switch v.kind {
	case Sequence:
		return Args{Positional: v.items}
	case Mapping:
		a := Args{}
		for i, k := range v.keys {
			a.Named = append(a.Named, Entry{Key: k, Value: v.items[i]})
		}
		return a
	}
	return Args{Positional: []Value{v}}
}

// get Argument given either at position i or by name
func (a Args) get(i int, key string) (Value, bool) {
	if i >= 0 && i < len(a.Positional) {
		return a.Positional[i], true
	}
	for _, e := range a.Named {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// without Arguments left once the first n positionals and the listed names are consumed
func (a Args) without(n int, keys ...string) Args {
	rest := Args{}
	if n < len(a.Positional) {
		rest.Positional = a.Positional[n:]
	}
	for _, e := range a.Named {
		if !contains(keys, e.Key) {
			rest.Named = append(rest.Named, e)
		}
	}
	return rest
}

func contains(list []string, s string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}
