// Package timeline :: Compile a declarative editing timeline into a flat FFMPEG filter graph.
//
// A description is parsed into a graph of nodes (sources, filters, concatenations, audio mixes). Filters
// attached to sources and concatenations as shorthand are only expanded ("reduced") when the graph is
// compiled. Compilation then resolves the stream layout and duration of every node bottom-up, and renders
// the graph once into inputs, labelled filter instructions and the final stream selection.
package timeline

import (
	"edit-box/pkg/encoder/filtergraph"
	"math"
)

// Streams Number of elementary streams of each kind exposed by a node
type Streams struct {
	Video    int
	Audio    int
	Subtitle int
}

// Duration Estimated output duration, in seconds. The zero value is an unknown duration
type Duration struct {
	Seconds float64
	Known   bool
}

// Seconds A known duration
func Seconds(s float64) Duration {
	return Duration{Seconds: s, Known: true}
}

// Unknown The duration of a node whose inputs lack duration metadata
var Unknown = Duration{}

func (d Duration) div(factor float64) Duration {
	if !d.Known {
		return d
	}
	return Seconds(d.Seconds / factor)
}

// Info Stream layout and duration of a node output
type Info struct {
	Streams
	Duration Duration
}

// Refs Stream references produced by rendering a node, either raw input references ("0:v:0") or
// synthetic labels ("[f3]")
type Refs struct {
	Video    []string
	Audio    []string
	Subtitle []string
}

// All Every reference, video streams first, then audio, then subtitles
func (r Refs) All() []string {
	all := make([]string, 0, len(r.Video)+len(r.Audio)+len(r.Subtitle))
	all = append(all, r.Video...)
	all = append(all, r.Audio...)
	return append(all, r.Subtitle...)
}

// Node A vertex of the timeline graph. The set of implementations is closed : *Source, *Filter,
// *Concat and *AudioMix
type Node interface {
	// Path Location of the node in the description, used in errors
	Path() string
	analyze(c *Compiler) (Info, error)
	render(c *Compiler) (Refs, error)
}

type origin string

func (o origin) Path() string {
	return string(o)
}

// FilterEntry An explicit filter attached to a compound node
type FilterEntry struct {
	Name    string
	Options Value
}

// Deferred Filters attached to a compound node, applied when the node is reduced
type Deferred struct {
	// Shorthand filters, keyed by filter name. Applied in the registry order
	Implicit map[string]Value
	// Explicit filters, applied in written order after the implicit ones
	Explicit []FilterEntry
}

func (d *Deferred) deferred() *Deferred {
	return d
}

func (d *Deferred) empty() bool {
	return len(d.Implicit) == 0 && len(d.Explicit) == 0
}

// compound A node able to carry deferred filters
type compound interface {
	Node
	deferred() *Deferred
}

// Source A node backed by a media file
type Source struct {
	origin
	Deferred
	// Path of the file in the description. May be a remote reference, see Resolver
	File string
	// Seek offset, in seconds
	Start *float64
	// Maximum duration to read, in seconds
	Duration *float64
}

func (s *Source) analyze(c *Compiler) (Info, error) {
	info, err := c.probe(s)
	if err != nil {
		return Info{}, err
	}
	probed := info.Duration
	switch {
	case s.Start != nil && s.Duration != nil:
		info.Duration = Seconds(*s.Duration)
		if probed.Known {
			info.Duration = Seconds(math.Min(probed.Seconds-*s.Start, *s.Duration))
		}
	case s.Start != nil:
		if probed.Known {
			info.Duration = Seconds(probed.Seconds - *s.Start)
		}
	case s.Duration != nil:
		info.Duration = Seconds(*s.Duration)
		if probed.Known {
			info.Duration = Seconds(math.Min(*s.Duration, probed.Seconds))
		}
	}
	// Seeking past the end yields an empty stream
	if info.Duration.Known && info.Duration.Seconds < 0 {
		info.Duration = Seconds(0)
	}
	return info, nil
}

func (s *Source) render(c *Compiler) (Refs, error) {
	info, err := c.analyze(s)
	if err != nil {
		return Refs{}, err
	}
	path, err := c.resolve(s)
	if err != nil {
		return Refs{}, err
	}
	index := c.graph.AddInput(&filtergraph.Input{Path: path, Start: s.Start, Duration: s.Duration})
	streams := func(kind filtergraph.StreamKind, count int) []string {
		refs := make([]string, count)
		for i := range refs {
			refs[i] = filtergraph.StreamRef(index, kind, i)
		}
		return refs
	}
	return Refs{
		Video:    streams(filtergraph.Video, info.Video),
		Audio:    streams(filtergraph.Audio, info.Audio),
		Subtitle: streams(filtergraph.Subtitle, info.Subtitle),
	}, nil
}

// StreamType Set of stream kinds a filter applies to
type StreamType uint8

const (
	VideoStream StreamType = 1 << iota
	AudioStream
	SubtitleStream
)

// Spec A filter name with its parameters, for one kind of stream
type Spec struct {
	Name    string
	Args    []string
	Options []filtergraph.Option
}

func (s Spec) filter() filtergraph.Filter {
	return filtergraph.Filter{Name: s.Name, Args: s.Args, Options: s.Options}
}

// Binding Filter parameters once the input is known
type Binding struct {
	Video    Spec
	Audio    Spec
	Duration Duration
}

// Filter Apply a single-input single-output filter on every stream of the selected kinds of its input.
// The number of streams never changes
type Filter struct {
	origin
	Input Node
	Types StreamType
	// Applied on video and subtitle streams
	Video Spec
	// Applied on audio streams. Defaults to Video when it has no name
	Audio Spec
	// Bind, when set, derives input dependent parameters and the output duration
	Bind func(in Info) (Binding, error)
}

func (f *Filter) bind(in Info) (Binding, error) {
	if f.Bind != nil {
		return f.Bind(in)
	}
	return Binding{Video: f.Video, Audio: f.Audio, Duration: in.Duration}, nil
}

func (f *Filter) analyze(c *Compiler) (Info, error) {
	in, err := c.Info(f.Input)
	if err != nil {
		return Info{}, err
	}
	b, err := f.bind(in)
	if err != nil {
		return Info{}, err
	}
	return Info{Streams: in.Streams, Duration: b.Duration}, nil
}

func (f *Filter) render(c *Compiler) (Refs, error) {
	in, err := c.Info(f.Input)
	if err != nil {
		return Refs{}, err
	}
	b, err := f.bind(in)
	if err != nil {
		return Refs{}, err
	}
	refs, err := c.Render(f.Input)
	if err != nil {
		return Refs{}, err
	}
	audio := b.Audio
	if audio.Name == "" {
		audio = b.Video
	}
	if f.Types&VideoStream != 0 {
		refs.Video = c.apply(refs.Video, b.Video)
	}
	if f.Types&AudioStream != 0 {
		refs.Audio = c.apply(refs.Audio, audio)
	}
	if f.Types&SubtitleStream != 0 {
		refs.Subtitle = c.apply(refs.Subtitle, b.Video)
	}
	return refs, nil
}

// Concat Put inputs one after another. Only the first Video/Audio streams of every input are kept
type Concat struct {
	origin
	Deferred
	Inputs []Node
	// Overrides of the number of streams to concatenate, nil to use the minimum across inputs
	Video *int
	Audio *int
	// Override of the estimated duration, nil to use the sum of the inputs durations
	Duration *float64
}

func (k *Concat) analyze(c *Compiler) (Info, error) {
	if len(k.Inputs) == 0 {
		return Info{}, newError(ErrMalformedDescription, k.Path(), "concat requires at least one input")
	}
	var out Info
	total := Seconds(0)
	for i, input := range k.Inputs {
		in, err := c.Info(input)
		if err != nil {
			return Info{}, err
		}
		if i == 0 || in.Video < out.Video {
			out.Video = in.Video
		}
		if i == 0 || in.Audio < out.Audio {
			out.Audio = in.Audio
		}
		if total.Known && in.Duration.Known {
			total.Seconds += in.Duration.Seconds
		} else {
			total = Unknown
		}
	}
	// The concat filter does not carry subtitles
	out.Subtitle = 0
	out.Duration = total
	if k.Video != nil {
		if *k.Video > out.Video {
			return Info{}, newError(ErrMalformedDescription, k.Path(), "%d video streams requested, an input only exposes %d", *k.Video, out.Video)
		}
		out.Video = *k.Video
	}
	if k.Audio != nil {
		if *k.Audio > out.Audio {
			return Info{}, newError(ErrMalformedDescription, k.Path(), "%d audio streams requested, an input only exposes %d", *k.Audio, out.Audio)
		}
		out.Audio = *k.Audio
	}
	if k.Duration != nil {
		out.Duration = Seconds(*k.Duration)
	}
	return out, nil
}

func (k *Concat) render(c *Compiler) (Refs, error) {
	info, err := c.analyze(k)
	if err != nil {
		return Refs{}, err
	}
	var streams []string
	for _, input := range k.Inputs {
		refs, err := c.Render(input)
		if err != nil {
			return Refs{}, err
		}
		// Segments are interleaved : every video then every audio stream of the first input, and so on
		streams = append(streams, refs.Video[:info.Video]...)
		streams = append(streams, refs.Audio[:info.Audio]...)
	}
	outputs := c.graph.AddFilter(streams, filtergraph.Filter{
		Name: "concat",
		Options: []filtergraph.Option{
			{Key: "n", Value: itoa(len(k.Inputs))},
			{Key: "v", Value: itoa(info.Video)},
			{Key: "a", Value: itoa(info.Audio)},
		},
	}, info.Video+info.Audio)
	return Refs{Video: outputs[:info.Video], Audio: outputs[info.Video:]}, nil
}

// AudioMix Mix the audio streams of Audio into the ones of Input
type AudioMix struct {
	origin
	Input Node
	Audio Node
	// Extra amix parameters, forwarded verbatim
	Args    []string
	Options []filtergraph.Option
}

func (m *AudioMix) analyze(c *Compiler) (Info, error) {
	main, err := c.Info(m.Input)
	if err != nil {
		return Info{}, err
	}
	side, err := c.Info(m.Audio)
	if err != nil {
		return Info{}, err
	}
	if side.Audio == 0 || (main.Audio > 0 && side.Audio != 1 && side.Audio != main.Audio) {
		return Info{}, newError(ErrIncompatibleAudioTracks, m.Path(),
			"cannot mix %d audio streams into %d", side.Audio, main.Audio)
	}
	out := Info{Streams: main.Streams}
	if side.Audio > out.Audio {
		out.Audio = side.Audio
	}
	if main.Duration.Known && side.Duration.Known {
		out.Duration = Seconds(math.Max(main.Duration.Seconds, side.Duration.Seconds))
	}
	return out, nil
}

func (m *AudioMix) render(c *Compiler) (Refs, error) {
	if _, err := c.analyze(m); err != nil {
		return Refs{}, err
	}
	refs, err := c.Render(m.Input)
	if err != nil {
		return Refs{}, err
	}
	side, err := c.Render(m.Audio)
	if err != nil {
		return Refs{}, err
	}
	// Nothing to mix with, simply add the new audio streams
	if len(refs.Audio) == 0 {
		refs.Audio = side.Audio
		return refs, nil
	}
	// Positional parameters come first, ffmpeg rejects them after a named one
	amix := filtergraph.Filter{Name: "amix", Args: append([]string{"2"}, m.Args...), Options: m.Options}
	mixed := make([]string, len(refs.Audio))
	for i, main := range refs.Audio {
		// Element-wise when the counts match, otherwise the single side stream goes into every main stream
		other := side.Audio[0]
		if len(side.Audio) == len(refs.Audio) {
			other = side.Audio[i]
		}
		mixed[i] = c.graph.AddFilter([]string{main, other}, amix, 1)[0]
	}
	refs.Audio = mixed
	return refs, nil
}

// unreduced A compound node seen without its deferred filters. Innermost element of a reduced chain
type unreduced struct {
	node compound
}

func (u unreduced) Path() string {
	return u.node.Path()
}

func (u unreduced) analyze(c *Compiler) (Info, error) {
	return c.analyze(u.node)
}

func (u unreduced) render(c *Compiler) (Refs, error) {
	return u.node.render(c)
}
