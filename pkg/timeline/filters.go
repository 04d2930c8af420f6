package timeline

import (
	"edit-box/pkg/encoder/filtergraph"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultFadeDuration Length of a fade when none is given, in seconds
const DefaultFadeDuration = 3.0

// Expected format : a.mp4 | [a.mp4, start, duration] | {file: a.mp4, start: 1:30, duration: 10}
func newSource(b *Builder, args Args, path string) (Node, error) {
	file, ok := args.get(0, "file")
	if !ok || file.Kind() != Scalar || file.Text() == "" {
		return nil, newError(ErrMalformedDescription, path, "a clip requires a file name")
	}
	s := &Source{origin: origin(path), File: file.Text()}
	var err error
	if v, ok := args.get(1, "start"); ok {
		if s.Start, err = timeArg(v, path, "start"); err != nil {
			return nil, err
		}
	}
	if v, ok := args.get(2, "duration"); ok {
		if s.Duration, err = timeArg(v, path, "duration"); err != nil {
			return nil, err
		}
	}
	if err := b.deferRest(&s.Deferred, args, 3, path, "file", "start", "duration"); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSource A clip of a whole file
func NewSource(file string) *Source {
	return &Source{origin: "clip", File: file}
}

// Expected format : [a, b, c] | {inputs: [a, b, c], video: 1, audio: 1, duration: 60}
func newConcat(b *Builder, args Args, path string) (Node, error) {
	var items []Value
	switch {
	case len(args.Positional) == 1 && args.Positional[0].Kind() == Sequence:
		items = args.Positional[0].Items()
	case len(args.Positional) > 0:
		items = args.Positional
	default:
		v, ok := args.get(-1, "inputs")
		if !ok || v.Kind() != Sequence {
			return nil, newError(ErrMalformedDescription, path, "could not deduce the inputs to concatenate")
		}
		items = v.Items()
	}
	if len(items) == 0 {
		return nil, newError(ErrMalformedDescription, path, "concat requires at least one input")
	}
	k := &Concat{origin: origin(path)}
	for i, item := range items {
		n, err := b.parse(item, indexed(path, i))
		if err != nil {
			return nil, err
		}
		k.Inputs = append(k.Inputs, n)
	}
	var err error
	if k.Video, err = countArg(args, "video", path); err != nil {
		return nil, err
	}
	if k.Audio, err = countArg(args, "audio", path); err != nil {
		return nil, err
	}
	if v, ok := args.get(-1, "duration"); ok {
		if k.Duration, err = timeArg(v, path, "duration"); err != nil {
			return nil, err
		}
	}
	if err := b.deferRest(&k.Deferred, args, len(args.Positional), path, "inputs", "video", "audio", "duration"); err != nil {
		return nil, err
	}
	return k, nil
}

// NewConcat Concatenation of inputs, keeping as many streams as every input has
func NewConcat(inputs ...Node) *Concat {
	return &Concat{origin: "concat", Inputs: inputs}
}

func countArg(args Args, key string, path string) (*int, error) {
	v, ok := args.get(-1, key)
	if !ok {
		return nil, nil
	}
	n, err := v.Int()
	if err != nil || n < 0 {
		return nil, newError(ErrMalformedDescription, path, "invalid %s stream count %s", key, v)
	}
	return &n, nil
}

// Expected format : 640x480 | [640, 480] | {w: 640, h: 480} | 720 (square)
func newScale(_ *Builder, input Node, args Args, path string) (Node, error) {
	w, h, err := scaleSize(args)
	if err != nil {
		return nil, &CompileError{Kind: ErrMalformedDescription, Path: path, Detail: "scale", Err: err}
	}
	return scaleFilter(input, w, h, path), nil
}

// Scale Resize every video stream of input
func Scale(input Node, width, height int) *Filter {
	return scaleFilter(input, width, height, join(input.Path(), "scale"))
}

func scaleFilter(input Node, w, h int, path string) *Filter {
	return &Filter{
		origin: origin(path),
		Input:  input,
		Types:  VideoStream,
		Video: Spec{Name: "scale", Options: []filtergraph.Option{
			{Key: "w", Value: strconv.Itoa(w)},
			{Key: "h", Value: strconv.Itoa(h)},
		}},
	}
}

func scaleSize(args Args) (int, int, error) {
	if w, ok := args.get(-1, "w"); ok {
		h, ok := args.get(-1, "h")
		if !ok {
			return 0, 0, fmt.Errorf("missing height")
		}
		return dims(w, h)
	}
	if len(args.Positional) == 2 {
		return dims(args.Positional[0], args.Positional[1])
	}
	v, ok := args.get(0, "size")
	if !ok {
		return 0, 0, fmt.Errorf("missing size")
	}
	switch v.Kind() {
	case Sequence:
		if v.Len() != 2 {
			return 0, 0, fmt.Errorf("expected [width, height], got %s", v)
		}
		return dims(v.Items()[0], v.Items()[1])
	case Scalar:
		if parts := strings.SplitN(strings.ToLower(v.Text()), "x", 2); len(parts) == 2 {
			return dims(Text(parts[0]), Text(parts[1]))
		}
		return dims(v, v)
	}
	return 0, 0, fmt.Errorf("invalid size %s", v)
}

func dims(w, h Value) (int, int, error) {
	width, err := w.Int()
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid width %s", w)
	}
	height, err := h.Int()
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid height %s", h)
	}
	return width, height, nil
}

// rate A playback rate, either a literal factor or a target duration to reach
type rate struct {
	factor float64
	target float64
}

// Expected format : "2x" (factor) | 30 | 0:30 (target duration)
func parseRate(v Value) (rate, error) {
	text := strings.TrimSpace(v.Text())
	if v.Kind() == Scalar && strings.HasSuffix(text, "x") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(text, "x"), 64)
		if err != nil || math.IsNaN(f) || f <= 0 || math.IsInf(f, 0) {
			return rate{}, fmt.Errorf("invalid factor %s", v)
		}
		return rate{factor: f}, nil
	}
	t, err := ParseTime(v)
	if err != nil {
		return rate{}, err
	}
	if t <= 0 {
		return rate{}, fmt.Errorf("invalid target duration %s", v)
	}
	return rate{target: t}, nil
}

func (r rate) resolve(d Duration, path string) (float64, error) {
	if r.factor > 0 {
		return r.factor, nil
	}
	if !d.Known {
		return 0, newError(ErrDurationRequired, path, "reaching a duration of %ss needs the input duration", filtergraph.FormatNumber(r.target))
	}
	if d.Seconds <= 0 {
		return 0, newError(ErrMalformedDescription, path, "cannot stretch an empty input")
	}
	return d.Seconds / r.target, nil
}

func rateArg(args Args, key string, path string) (rate, error) {
	v, ok := args.get(0, key)
	if !ok {
		return rate{}, newError(ErrMalformedDescription, path, "missing %s", key)
	}
	r, err := parseRate(v)
	if err != nil {
		return rate{}, &CompileError{Kind: ErrMalformedDescription, Path: path, Detail: key, Err: err}
	}
	return r, nil
}

func newSpeed(_ *Builder, input Node, args Args, path string) (Node, error) {
	r, err := rateArg(args, "speed", path)
	if err != nil {
		return nil, err
	}
	return speedFilter(input, r, path), nil
}

// Speed Play every stream of input factor times faster
func Speed(input Node, factor float64) *Filter {
	return speedFilter(input, rate{factor: factor}, join(input.Path(), "speed"))
}

func speedFilter(input Node, r rate, path string) *Filter {
	return &Filter{
		origin: origin(path),
		Input:  input,
		Types:  VideoStream | AudioStream,
		Bind: func(in Info) (Binding, error) {
			factor, err := r.resolve(in.Duration, path)
			if err != nil {
				return Binding{}, err
			}
			return Binding{
				Video:    Spec{Name: "setpts", Args: []string{"PTS*" + filtergraph.FormatNumber(1/factor)}},
				Audio:    Spec{Name: "atempo", Args: []string{filtergraph.FormatNumber(factor)}},
				Duration: in.Duration.div(factor),
			}, nil
		},
	}
}

// newTempo Change the audio playback rate only, the video keeps its pace
func newTempo(_ *Builder, input Node, args Args, path string) (Node, error) {
	r, err := rateArg(args, "tempo", path)
	if err != nil {
		return nil, err
	}
	return &Filter{
		origin: origin(path),
		Input:  input,
		Types:  AudioStream,
		Bind: func(in Info) (Binding, error) {
			factor, err := r.resolve(in.Duration, path)
			if err != nil {
				return Binding{}, err
			}
			return Binding{Audio: Spec{Name: "atempo", Args: []string{filtergraph.FormatNumber(factor)}}, Duration: in.Duration}, nil
		},
	}, nil
}

func fadeLength(args Args, path string) (float64, error) {
	v, ok := args.get(0, "duration")
	if !ok {
		return DefaultFadeDuration, nil
	}
	d, err := timeArg(v, path, "duration")
	if err != nil {
		return 0, err
	}
	return *d, nil
}

func fadeOptions(d float64) []filtergraph.Option {
	return []filtergraph.Option{{Key: "duration", Value: filtergraph.FormatNumber(d)}}
}

func newFadeIn(_ *Builder, input Node, args Args, path string) (Node, error) {
	d, err := fadeLength(args, path)
	if err != nil {
		return nil, err
	}
	return &Filter{
		origin: origin(path),
		Input:  input,
		Types:  VideoStream | AudioStream,
		Video:  Spec{Name: "fade", Args: []string{"in"}, Options: fadeOptions(d)},
		Audio:  Spec{Name: "afade", Args: []string{"in"}, Options: fadeOptions(d)},
	}, nil
}

// newFadeOut The fade ends with the input, so its start depends on the input duration
func newFadeOut(_ *Builder, input Node, args Args, path string) (Node, error) {
	d, err := fadeLength(args, path)
	if err != nil {
		return nil, err
	}
	return &Filter{
		origin: origin(path),
		Input:  input,
		Types:  VideoStream | AudioStream,
		Bind: func(in Info) (Binding, error) {
			if !in.Duration.Known {
				return Binding{}, newError(ErrDurationRequired, path, "fading out needs the input duration")
			}
			options := append([]filtergraph.Option{
				{Key: "start_time", Value: filtergraph.FormatNumber(math.Max(0, in.Duration.Seconds-d))},
			}, fadeOptions(d)...)
			return Binding{
				Video:    Spec{Name: "fade", Args: []string{"out"}, Options: options},
				Audio:    Spec{Name: "afade", Args: []string{"out"}, Options: options},
				Duration: in.Duration,
			}, nil
		},
	}, nil
}

// Expected format : music.mp3 | {audio: music.mp3, duration: longest} | [music.mp3, first]
// Remaining parameters are forwarded to amix
func newAddAudio(b *Builder, input Node, args Args, path string) (Node, error) {
	v, ok := args.get(0, "audio")
	if !ok {
		return nil, newError(ErrMalformedDescription, path, "missing the audio to add")
	}
	audio, err := b.parse(v, path)
	if err != nil {
		return nil, err
	}
	m := &AudioMix{origin: origin(path), Input: input, Audio: audio}
	rest := args.without(0, "audio")
	if len(args.Positional) > 0 {
		rest = args.without(1, "audio")
	}
	if m.Args, err = scalars(List(rest.Positional...), path); err != nil {
		return nil, err
	}
	if m.Options, err = options(Map(rest.Named...), path); err != nil {
		return nil, err
	}
	return m, nil
}

// NewAudioMix Mix the audio streams of audio into the ones of input
func NewAudioMix(input Node, audio Node) *AudioMix {
	return &AudioMix{origin: origin(join(input.Path(), "addaudio")), Input: input, Audio: audio}
}

// Expected format : {name: hflip} | {name: eq, kwargs: {contrast: 1.2}, type: va, aname: volume, aargs: [2]}
//   - name, args, kwargs : the filter applied on video and subtitle streams
//   - type : stream kinds to filter, among v, a and s. Defaults to v
//   - aname, aargs, akwargs : the filter applied on audio streams, defaulting to the video one
func newFilter(_ *Builder, input Node, args Args, path string) (Node, error) {
	name, ok := args.get(0, "name")
	if !ok || name.Kind() != Scalar || name.Text() == "" {
		return nil, newError(ErrMalformedDescription, path, "a filter requires a name")
	}
	video := Spec{Name: name.Text()}
	var err error
	if v, ok := args.get(1, "args"); ok {
		if video.Args, err = scalars(v, path); err != nil {
			return nil, err
		}
	}
	if v, ok := args.get(2, "kwargs"); ok {
		if video.Options, err = options(v, path); err != nil {
			return nil, err
		}
	}
	types := VideoStream
	if v, ok := args.get(3, "type"); ok {
		if types, err = parseTypes(v); err != nil {
			return nil, &CompileError{Kind: ErrMalformedDescription, Path: path, Detail: "type", Err: err}
		}
	}
	var audio Spec
	if v, ok := args.get(4, "aname"); ok {
		audio.Name = v.Text()
	}
	if v, ok := args.get(5, "aargs"); ok {
		if audio.Args, err = scalars(v, path); err != nil {
			return nil, err
		}
	}
	if v, ok := args.get(6, "akwargs"); ok {
		if audio.Options, err = options(v, path); err != nil {
			return nil, err
		}
	}
	if audio.Name == "" && (audio.Args != nil || audio.Options != nil) {
		audio.Name = video.Name
	}
	rest := args.without(7, "name", "args", "kwargs", "type", "aname", "aargs", "akwargs")
	if len(rest.Positional) > 0 || len(rest.Named) > 0 {
		return nil, newError(ErrMalformedDescription, path, "unexpected filter parameters %s", Map(rest.Named...))
	}
	return &Filter{origin: origin(path), Input: input, Types: types, Video: video, Audio: audio}, nil
}

func parseTypes(v Value) (StreamType, error) {
	var t StreamType
	for _, c := range v.Text() {
		switch c {
		case 'v':
			t |= VideoStream
		case 'a':
			t |= AudioStream
		case 's':
			t |= SubtitleStream
		default:
			return 0, fmt.Errorf("unknown stream type %q", c)
		}
	}
	if t == 0 {
		return 0, fmt.Errorf("no stream type given")
	}
	return t, nil
}

// scalars Positional filter parameters, a scalar or a sequence of scalars
func scalars(v Value, path string) ([]string, error) {
	if v.Kind() == Scalar {
		return []string{v.Text()}, nil
	}
	if v.Kind() != Sequence {
		return nil, newError(ErrMalformedDescription, path, "expected a list of parameters, got %s", v)
	}
	var out []string
	for _, item := range v.Items() {
		if item.Kind() != Scalar {
			return nil, newError(ErrMalformedDescription, path, "expected a scalar parameter, got %s", item)
		}
		out = append(out, item.Text())
	}
	return out, nil
}

// options Named filter parameters, a mapping of scalars
func options(v Value, path string) ([]filtergraph.Option, error) {
	if v.Kind() != Mapping {
		return nil, newError(ErrMalformedDescription, path, "expected named parameters, got %s", v)
	}
	var out []filtergraph.Option
	for _, k := range v.Keys() {
		item, _ := v.Get(k)
		if item.Kind() != Scalar {
			return nil, newError(ErrMalformedDescription, path, "expected a scalar for %s, got %s", k, item)
		}
		out = append(out, filtergraph.Option{Key: k, Value: item.Text()})
	}
	return out, nil
}
