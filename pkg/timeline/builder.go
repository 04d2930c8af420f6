package timeline

import (
	"fmt"
	"sort"
)

// Builder Turn description values into nodes, using the constructors of a registry
type Builder struct {
	registry *Registry
}

func NewBuilder(r *Registry) *Builder {
	return &Builder{registry: r}
}

// Parse Build a node graph from a description, using the default registry
func Parse(v Value) (Node, error) {
	return NewBuilder(DefaultRegistry()).Parse(v)
}

// Parse Build a node graph from a description :
//   - a scalar is a clip of that file
//   - a sequence is the concatenation of its elements
//   - a single-key mapping {name: options} calls the constructor registered under name
//   - a mapping with a clip or concat key and shorthand filter keys is that node with the filters attached
func (b *Builder) Parse(v Value) (Node, error) {
	return b.parse(v, "")
}

func (b *Builder) parse(v Value, path string) (Node, error) {
	switch v.Kind() {
	case Scalar:
		return b.construct("clip", v, path)
	case Sequence:
		return b.construct("concat", v, path)
	case Mapping:
		return b.parseMapping(v, path)
	}
	return nil, newError(ErrMalformedDescription, path, "unexpected %s", v)
}

func (b *Builder) parseMapping(v Value, path string) (Node, error) {
	keys := v.Keys()
	if len(keys) == 1 {
		opts, _ := v.Get(keys[0])
		return b.construct(keys[0], opts, path)
	}
	selector := ""
	for _, k := range keys {
		if e, ok := b.registry.Lookup(k); ok && e.Node != nil {
			if selector != "" {
				return nil, newError(ErrMalformedDescription, path, "both %q and %q select a node in %s", selector, k, v)
			}
			selector = k
		}
	}
	if selector == "" {
		return nil, newError(ErrMalformedDescription, path, "expected a single-key mapping, got %s", v)
	}
	opts, _ := v.Get(selector)
	n, err := b.construct(selector, opts, path)
	if err != nil {
		return nil, err
	}
	cn, ok := n.(compound)
	if !ok {
		return nil, newError(ErrMalformedDescription, path, "%q does not accept filters", selector)
	}
	for _, k := range keys {
		if k == selector {
			continue
		}
		opts, _ := v.Get(k)
		if err := b.attach(cn.deferred(), k, opts, n.Path()); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (b *Builder) construct(name string, opts Value, path string) (Node, error) {
	e, ok := b.registry.Lookup(name)
	if !ok {
		return nil, newError(ErrUnknownFilter, path, "%s", name)
	}
	nodePath := join(path, name)
	args := argsOf(opts)
	if e.Node != nil {
		return e.Node(b, args, nodePath)
	}
	// A filter used as a node takes its input first
	in, ok := args.get(0, "input")
	if !ok {
		return nil, newError(ErrMalformedDescription, nodePath, "no input given")
	}
	rest := args.without(0, "input")
	if len(args.Positional) > 0 {
		rest = args.without(1, "input")
	}
	input, err := b.parse(in, nodePath)
	if err != nil {
		return nil, err
	}
	return e.Filter(b, input, rest, nodePath)
}

// attach Defer the filter key of a compound node
func (b *Builder) attach(d *Deferred, key string, opts Value, path string) error {
	if key != "filters" {
		if d.Implicit == nil {
			d.Implicit = map[string]Value{}
		}
		d.Implicit[key] = opts
		return nil
	}
	items := opts.Items()
	if opts.Kind() != Sequence {
		items = []Value{opts}
	}
	for _, item := range items {
		switch {
		case item.Kind() == Scalar:
			d.Explicit = append(d.Explicit, FilterEntry{Name: item.Text(), Options: List()})
		case item.Kind() == Mapping && item.Len() == 1:
			name := item.Keys()[0]
			options, _ := item.Get(name)
			d.Explicit = append(d.Explicit, FilterEntry{Name: name, Options: options})
		default:
			return newError(ErrMalformedDescription, path, "expected a filter name or a single-key mapping, got %s", item)
		}
	}
	return nil
}

// deferRest Defer every named argument left once the first n positionals and the known names are consumed
func (b *Builder) deferRest(d *Deferred, args Args, n int, path string, known ...string) error {
	rest := args.without(n, known...)
	if len(rest.Positional) > 0 {
		return newError(ErrMalformedDescription, path, "unexpected argument %s", rest.Positional[0])
	}
	for _, e := range rest.Named {
		if err := b.attach(d, e.Key, e.Value, path); err != nil {
			return err
		}
	}
	return nil
}

// expand Wrap a compound node into its deferred filters : shorthand ones in registry order, then explicit
// ones in written order
func (b *Builder) expand(cn compound) (Node, error) {
	d := cn.deferred()
	var node Node = unreduced{cn}
	if d.empty() {
		return node, nil
	}
	keys := make([]string, 0, len(d.Implicit))
	for k := range d.Implicit {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if e, ok := b.registry.Lookup(k); !ok || !e.Implicit {
			return nil, newError(ErrUnknownFilter, cn.Path(), "%s", k)
		}
	}
	var err error
	for _, name := range b.registry.Implicit() {
		opts, ok := d.Implicit[name]
		if !ok {
			continue
		}
		if node, err = b.wrap(name, node, opts, cn.Path()); err != nil {
			return nil, err
		}
	}
	for _, f := range d.Explicit {
		if node, err = b.wrap(f.Name, node, f.Options, cn.Path()); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (b *Builder) wrap(name string, input Node, opts Value, path string) (Node, error) {
	e, ok := b.registry.Lookup(name)
	if !ok || e.Filter == nil {
		return nil, newError(ErrUnknownFilter, path, "%s", name)
	}
	return e.Filter(b, input, argsOf(opts), join(path, name))
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "/" + name
}

func indexed(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
