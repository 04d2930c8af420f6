package timeline

import (
	"context"
	"edit-box/pkg/encoder/filtergraph"
	"errors"
	"strconv"
	"strings"
)

// Prober Inspect a media file and return its stream layout and duration
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// Resolver Turn a file reference of the description into a local path, downloading it if needed
type Resolver interface {
	Resolve(ctx context.Context, file string) (string, error)
}

// StaticProber A Prober answering from a fixed table, keyed by path
type StaticProber map[string]Info

func (p StaticProber) Probe(_ context.Context, path string) (Info, error) {
	info, ok := p[path]
	if !ok {
		return Info{}, errors.New("no such file")
	}
	return info, nil
}

// Plan The result of a compilation
type Plan struct {
	// All inputs, in FFMPEG index order
	Inputs []*filtergraph.Input
	// Filter instructions, in invocation order
	Filters []string
	// Final streams to map to the output
	Outputs Refs
	// Stream layout and duration of the output
	Info Info
}

// FilterGraph The -filter_complex option value. Empty when no filter is needed
func (p *Plan) FilterGraph() string {
	return strings.Join(p.Filters, filtergraph.Separator)
}

type reduceState uint8

const (
	unreducedState reduceState = iota
	reducingState
	reducedState
)

// Compiler State of a single compilation : reduced nodes, resolved infos and the graph being rendered.
// A Compiler is not safe for concurrent use
type Compiler struct {
	ctx      context.Context
	prober   Prober
	resolver Resolver
	builder  *Builder
	graph    *filtergraph.Graph
	// Reduction state machine, per compound node
	states  map[compound]reduceState
	reduced map[compound]Node
	// Memoized infos, per node instance
	infos map[Node]Info
	// Resolved local paths, per file reference
	paths map[string]string
}

// Option Compiler option
type Option func(*Compiler)

// WithResolver Resolve file references before probing and rendering them
func WithResolver(r Resolver) Option {
	return func(c *Compiler) {
		c.resolver = r
	}
}

// WithRegistry Use a custom filter registry when reducing nodes
func WithRegistry(r *Registry) Option {
	return func(c *Compiler) {
		c.builder = NewBuilder(r)
	}
}

func NewCompiler(ctx context.Context, prober Prober, opts ...Option) *Compiler {
	c := &Compiler{
		ctx:     ctx,
		prober:  prober,
		builder: NewBuilder(DefaultRegistry()),
		graph:   filtergraph.NewGraph(),
		states:  map[compound]reduceState{},
		reduced: map[compound]Node{},
		infos:   map[Node]Info{},
		paths:   map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile Resolve and render root in a single pass
func Compile(ctx context.Context, root Node, prober Prober, opts ...Option) (*Plan, error) {
	c := NewCompiler(ctx, prober, opts...)
	info, err := c.Info(root)
	if err != nil {
		return nil, err
	}
	refs, err := c.Render(root)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Inputs:  c.graph.Inputs(),
		Filters: c.graph.Instructions(),
		Outputs: refs,
		Info:    info,
	}, nil
}

// Reduce Expand the deferred filters of a compound node into a chain of filter nodes wrapping it.
// Other nodes are returned as is. The result is memoized per node instance
func (c *Compiler) Reduce(n Node) (Node, error) {
	cn, ok := n.(compound)
	if !ok {
		return n, nil
	}
	switch c.states[cn] {
	case reducedState:
		return c.reduced[cn], nil
	case reducingState:
		// Asked for itself while being expanded : fall back to the bare node
		return unreduced{cn}, nil
	}
	c.states[cn] = reducingState
	chain, err := c.builder.expand(cn)
	if err != nil {
		delete(c.states, cn)
		return nil, err
	}
	c.states[cn] = reducedState
	c.reduced[cn] = chain
	return chain, nil
}

// Info Stream layout and duration of n, once reduced
func (c *Compiler) Info(n Node) (Info, error) {
	r, err := c.Reduce(n)
	if err != nil {
		return Info{}, err
	}
	return c.analyze(r)
}

// Render Lower n, once reduced, into the graph. Rendering the same node twice renders it twice
func (c *Compiler) Render(n Node) (Refs, error) {
	r, err := c.Reduce(n)
	if err != nil {
		return Refs{}, err
	}
	return r.render(c)
}

// Graph The graph rendered so far
func (c *Compiler) Graph() *filtergraph.Graph {
	return c.graph
}

func (c *Compiler) analyze(n Node) (Info, error) {
	if info, ok := c.infos[n]; ok {
		return info, nil
	}
	info, err := n.analyze(c)
	if err != nil {
		return Info{}, err
	}
	c.infos[n] = info
	return info, nil
}

// apply Run spec on every stream, one filter invocation per stream
func (c *Compiler) apply(streams []string, spec Spec) []string {
	out := make([]string, len(streams))
	for i, s := range streams {
		out[i] = c.graph.AddFilter([]string{s}, spec.filter(), 1)[0]
	}
	return out
}

func (c *Compiler) resolve(s *Source) (string, error) {
	if c.resolver == nil {
		return s.File, nil
	}
	if path, ok := c.paths[s.File]; ok {
		return path, nil
	}
	path, err := c.resolver.Resolve(c.ctx, s.File)
	if err != nil {
		return "", &CompileError{Kind: ErrProbeFailed, Path: s.Path(), Detail: s.File, Err: err}
	}
	c.paths[s.File] = path
	return path, nil
}

func (c *Compiler) probe(s *Source) (Info, error) {
	path, err := c.resolve(s)
	if err != nil {
		return Info{}, err
	}
	info, err := c.prober.Probe(c.ctx, path)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) && ce.Kind == ErrProbeFailed {
			located := *ce
			if located.Path == "" {
				located.Path = s.Path()
			}
			return Info{}, &located
		}
		return Info{}, &CompileError{Kind: ErrProbeFailed, Path: s.Path(), Detail: path, Err: err}
	}
	return info, nil
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
