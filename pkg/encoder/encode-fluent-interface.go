package encoder

import (
	"context"
	"edit-box/pkg/encoder/filtergraph"
	"edit-box/pkg/timeline"
	"fmt"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

var (
	// DefaultFlags Global options used when none are given. -stats keeps progress lines with a quiet log level
	DefaultFlags = []string{"-y", "-loglevel", "warning", "-stats"}
	// DefaultOutput Output arguments used when none are given
	DefaultOutput = []string{"out.mkv"}
)

// Builder Assemble a full FFMpeg invocation
type Builder struct {
	// Global options, before any input
	flags []string
	// All "-i" inputs
	inputs []*filtergraph.Input
	// Filter instructions, joined into a single -filter_complex
	filters []string
	// Streams to map to the output, either raw references or labels
	maps []string
	// Output arguments, the last one being the output file name
	output []string
	// Expected output duration, used to compute the progress percentage
	duration timeline.Duration
}

func NewBuilder() *Builder {
	return &Builder{
		flags:  append([]string{}, DefaultFlags...),
		output: append([]string{}, DefaultOutput...),
	}
}

// FromPlan A builder with the inputs, filters and final streams of a compiled plan
func FromPlan(plan *timeline.Plan) *Builder {
	b := NewBuilder()
	for _, input := range plan.Inputs {
		b.AddInput(input)
	}
	return b.
		SetFilterGraph(plan.Filters...).
		AddMap(plan.Outputs.All()...).
		SetDuration(plan.Info.Duration)
}

// SetFlags Replace the global options
func (eb *Builder) SetFlags(flags ...string) *Builder {
	eb.flags = flags
	return eb
}

// AddInput Add a new input to the encoder
func (eb *Builder) AddInput(input *filtergraph.Input) *Builder {
	eb.inputs = append(eb.inputs, input)
	return eb
}

// SetFilterGraph Set the filter instructions to be used
func (eb *Builder) SetFilterGraph(instructions ...string) *Builder {
	eb.filters = instructions
	return eb
}

// AddMap Select streams for the output
func (eb *Builder) AddMap(refs ...string) *Builder {
	eb.maps = append(eb.maps, refs...)
	return eb
}

// SetOutput Set the output arguments. The last one is the output file Path, the others are output options
func (eb *Builder) SetOutput(args ...string) *Builder {
	eb.output = args
	return eb
}

func (eb *Builder) SetDuration(d timeline.Duration) *Builder {
	eb.duration = d
	return eb
}

// OutputPath The output file, empty if no output is set
func (eb *Builder) OutputPath() string {
	if len(eb.output) == 0 {
		return ""
	}
	return eb.output[len(eb.output)-1]
}

// Args Collapse the whole builder into FFMpeg arguments
func (eb *Builder) Args() []string {
	// [flags] (-ss -t -i [inputs])* [-filter_complex graph] (-map [ref])* [output options] [output]
	args := append([]string{}, eb.flags...)
	for _, input := range eb.inputs {
		args = append(args, input.Args()...)
	}
	if len(eb.filters) > 0 {
		args = append(args, "-filter_complex", strings.Join(eb.filters, filtergraph.Separator))
	}
	for _, ref := range eb.maps {
		args = append(args, "-map", ref)
	}
	return append(args, eb.output...)
}

// GetCommandLine The full command, quoted to be pasted in a shell
func (eb *Builder) GetCommandLine() string {
	return shellquote.Join(append([]string{ffmpegBin()}, eb.Args()...)...)
}

// Build Return a new initialized encoder ready to be started
func (eb *Builder) Build(ctx context.Context) (*Encoder, error) {
	if len(eb.inputs) == 0 {
		return nil, fmt.Errorf("no inputs specified")
	}
	if len(eb.output) == 0 {
		return nil, fmt.Errorf("no output file Path specified")
	}
	var duration time.Duration
	if eb.duration.Known {
		duration = time.Duration(eb.duration.Seconds * float64(time.Second))
	}
	return NewEncoder(ctx, eb.Args(), duration), nil
}
