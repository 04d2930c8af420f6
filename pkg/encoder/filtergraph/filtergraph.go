// Package filtergraph :: Flat representation of an FFMPEG invocation graph. Inputs are indexed in the order
// they are added, and every filter output gets a unique synthetic label, so that the whole graph can be
// joined into a single -filter_complex option
package filtergraph

import (
	"fmt"
	"strings"
)

// StreamKind Kind of an elementary stream, as used in FFMPEG stream specifiers
type StreamKind string

const (
	Video    StreamKind = "v"
	Audio    StreamKind = "a"
	Subtitle StreamKind = "s"
)

// Separator between two filter instructions in the final -filter_complex option
const Separator = ","

// Graph Inputs and filter instructions collected during a single render pass
type Graph struct {
	// All "-i" inputs, index in the slice is the FFMPEG input index
	inputs []*Input
	// Every filter invocation, already serialized
	instructions []string
	// Next synthetic label to allocate. Never reset
	labels int
}

func NewGraph() *Graph {
	return &Graph{}
}

// AddInput Register a new input and return its FFMPEG index
func (g *Graph) AddInput(input *Input) int {
	g.inputs = append(g.inputs, input)
	return len(g.inputs) - 1
}

// AddFilter Append a filter consuming inputs and producing outputs new streams. The labels of the
// produced streams are returned in order
func (g *Graph) AddFilter(inputs []string, filter Filter, outputs int) []string {
	// Expected format : [0:v:0][f1]name=arg:key=value[f2][f3]
	ss := strings.Builder{}
	for _, in := range inputs {
		ss.WriteString(bracket(in))
	}
	ss.WriteString(filter.String())
	labels := make([]string, outputs)
	for i := range labels {
		labels[i] = fmt.Sprintf("[f%d]", g.labels)
		g.labels++
		ss.WriteString(labels[i])
	}
	g.instructions = append(g.instructions, ss.String())
	return labels
}

// Inputs All inputs, in index order
func (g *Graph) Inputs() []*Input {
	return g.inputs
}

// Instructions All filter instructions, in invocation order
func (g *Graph) Instructions() []string {
	return g.instructions
}

// String Resolve the graph into a string usable in FFMPEG -filter_complex option
func (g *Graph) String() string {
	return strings.Join(g.instructions, Separator)
}

// StreamRef Reference to the local-th stream of a kind in an input, ex "0:a:1"
func StreamRef(input int, kind StreamKind, local int) string {
	return fmt.Sprintf("%d:%s:%d", input, kind, local)
}

// IsLabel Whether ref is a synthetic label rather than a raw input stream reference
func IsLabel(ref string) bool {
	return strings.HasPrefix(ref, "[") && strings.HasSuffix(ref, "]")
}

func bracket(ref string) string {
	if IsLabel(ref) {
		return ref
	}
	return "[" + ref + "]"
}
