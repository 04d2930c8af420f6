package encoder

import (
	"edit-box/pkg/encoder/filtergraph"
	"edit-box/pkg/timeline"
	"fmt"
	"sort"
)

// Preset Build a ready-made timeline from a list of files
type Preset func(files ...string) (timeline.Node, error)

// Presets Every available preset, by name
var Presets = map[string]Preset{
	"voiceover": VoiceOver,
	"podcast":   Podcast,
}

// VoiceNormalization Loudness normalization applied to voice tracks
var VoiceNormalization = timeline.Speechnorm

// PresetNames Sorted preset names
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// voiceTrack Concatenate audios if there are many, then normalize them for speech
func voiceTrack(audios []string) (timeline.Node, error) {
	var voice timeline.Node
	if len(audios) == 1 {
		// Only one audio track, NO-OP
		voice = timeline.NewSource(audios[0])
	} else {
		inputs := make([]timeline.Node, len(audios))
		for i, a := range audios {
			inputs[i] = timeline.NewSource(a)
		}
		voice = timeline.NewConcat(inputs...)
	}
	norm, err := timeline.NormalizeLoudness(voice, VoiceNormalization)
	if err != nil {
		return nil, err
	}
	return norm, nil
}

// VoiceOver Expected files : video, audio1, audio2...
// The audios are concatenated, normalized and resampled, then mixed into the video audio tracks.
// If the video has no audio, the voice becomes its audio track
func VoiceOver(files ...string) (timeline.Node, error) {
	if len(files) < 2 {
		return nil, fmt.Errorf("voiceover expects a video and at least one audio, got %d files", len(files))
	}
	voice, err := voiceTrack(files[1:])
	if err != nil {
		return nil, err
	}
	mix := timeline.NewAudioMix(timeline.NewSource(files[0]), timeline.Resample(voice, timeline.K44))
	mix.Options = append(mix.Options, weights(1, 0.2))
	return mix, nil
}

// Podcast Expected files : background, voice1, voice2...
// The voices are concatenated and normalized, the background is normalized and lowered to stay behind them.
// The output is audio only, as long as the longest of both
func Podcast(files ...string) (timeline.Node, error) {
	if len(files) < 2 {
		return nil, fmt.Errorf("podcast expects a background and at least one voice, got %d files", len(files))
	}
	background, err := timeline.NormalizeLoudness(timeline.NewSource(files[0]), timeline.Dynaudnorm)
	if err != nil {
		return nil, err
	}
	voice, err := voiceTrack(files[1:])
	if err != nil {
		return nil, err
	}
	mix := timeline.NewAudioMix(voice, timeline.Volume(background, 0.22))
	mix.Options = append(mix.Options, weights(1, 0.85))
	return mix, nil
}

// weights Relative volume of the main and side inputs of amix
func weights(main float64, side float64) filtergraph.Option {
	return filtergraph.Option{Key: "weights", Value: filtergraph.FormatNumber(main) + " " + filtergraph.FormatNumber(side)}
}
