package timeline

import (
	"edit-box/pkg/encoder/filtergraph"
	"fmt"
	"strconv"
)

// NormalizationMode Audio loudness normalization algorithm
type NormalizationMode string

const (
	// Default mode, slow but precise
	// Documentation : https://ffmpeg.org/ffmpeg-filters.html#loudnorm
	Loudnorm NormalizationMode = "loudnorm"
	// Faster than loudnorm, less precise
	// Documentation : https://ffmpeg.org/ffmpeg-filters.html#dynaudnorm
	Dynaudnorm NormalizationMode = "dynaudnorm"
	// Made for speech normalization
	// Documentation : https://ffmpeg.org/ffmpeg-filters.html#speechnorm
	Speechnorm NormalizationMode = "speechnorm"
)

// Sampling rates
const (
	K44 = 44100
	K48 = 48000
)

// audioFilter A filter touching audio streams only
func audioFilter(input Node, path string, spec Spec) *Filter {
	return &Filter{origin: origin(path), Input: input, Types: AudioStream, Audio: spec}
}

// Expected format : volume: 0.5 | volume: 6dB
// Documentation : https://ffmpeg.org/ffmpeg-filters.html#volume
func newVolume(_ *Builder, input Node, args Args, path string) (Node, error) {
	v, ok := args.get(0, "volume")
	if !ok || v.Kind() != Scalar || v.Text() == "" {
		return nil, newError(ErrMalformedDescription, path, "missing volume")
	}
	return audioFilter(input, path, Spec{Name: "volume", Args: []string{v.Text()}}), nil
}

// Volume Scale the audio volume of input, 1 leaving it untouched
func Volume(input Node, volume float64) *Filter {
	return audioFilter(input, join(input.Path(), "volume"), Spec{
		Name: "volume",
		Args: []string{filtergraph.FormatNumber(volume)},
	})
}

// Expected format : normalize: loudnorm | normalize: [] (loudnorm)
func newNormalize(_ *Builder, input Node, args Args, path string) (Node, error) {
	mode := Loudnorm
	if v, ok := args.get(0, "mode"); ok {
		mode = NormalizationMode(v.Text())
	}
	f, err := NormalizeLoudness(input, mode)
	if err != nil {
		return nil, &CompileError{Kind: ErrMalformedDescription, Path: path, Detail: "normalize", Err: err}
	}
	f.origin = origin(path)
	return f, nil
}

// NormalizeLoudness Even the audio loudness of input
func NormalizeLoudness(input Node, mode NormalizationMode) (*Filter, error) {
	spec := Spec{Name: string(mode)}
	switch mode {
	case Loudnorm:
		// Expected format : loudnorm=I=-16:TP=-1.5:LRA=11
		spec.Options = []filtergraph.Option{{Key: "I", Value: "-16"}, {Key: "TP", Value: "-1.5"}, {Key: "LRA", Value: "11"}}
	case Dynaudnorm, Speechnorm:
	default:
		return nil, fmt.Errorf("unknown normalization mode %q", mode)
	}
	return audioFilter(input, join(input.Path(), "normalize"), spec), nil
}

// Expected format : resample: 48000
func newResample(_ *Builder, input Node, args Args, path string) (Node, error) {
	sampling := K44
	if v, ok := args.get(0, "rate"); ok {
		r, err := v.Int()
		if err != nil || r <= 0 {
			return nil, newError(ErrMalformedDescription, path, "invalid sampling rate %s", v)
		}
		sampling = r
	}
	f := Resample(input, sampling)
	f.origin = origin(path)
	return f, nil
}

// Resample Convert the audio of input to stereo planar float at the given sampling rate
func Resample(input Node, rate int) *Filter {
	// Expected format : aformat=sample_fmts=fltp:sample_rates=44100:channel_layouts=stereo
	return audioFilter(input, join(input.Path(), "resample"), Spec{
		Name: "aformat",
		Options: []filtergraph.Option{
			{Key: "sample_fmts", Value: "fltp"},
			{Key: "sample_rates", Value: strconv.Itoa(rate)},
			{Key: "channel_layouts", Value: "stereo"},
		},
	})
}
