package encoder

import (
	"context"
	"edit-box/pkg/timeline"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// FFProbe A timeline.Prober backed by the ffprobe binary
type FFProbe struct {
	// Path to the ffprobe binary
	Bin string
}

// NewFFProbe Use the ffprobe binary pointed at by FFPROBE_PATH, or the one in PATH
func NewFFProbe() *FFProbe {
	bin := os.Getenv("FFPROBE_PATH")
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFProbe{Bin: bin}
}

// Probe Count the streams of each kind in path and estimate its duration
func (p *FFProbe) Probe(ctx context.Context, path string) (timeline.Info, error) {
	// ffprobe -v error -print_format json -show_format -show_streams input.mp4
	cmd := exec.CommandContext(ctx, p.Bin, "-v", "error", "-print_format", "json", "-show_format", "-show_streams", path)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			err = fmt.Errorf("%w : %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		log.Warnf("[Probe] :: Could not probe %s : %s", path, err)
		return timeline.Info{}, &timeline.CompileError{Kind: timeline.ErrProbeFailed, Detail: path, Err: err}
	}
	info, err := ParseJSON(out)
	if err != nil {
		return timeline.Info{}, &timeline.CompileError{Kind: timeline.ErrProbeFailed, Detail: path, Err: err}
	}
	log.Debugf("[Probe] :: %s : %+v", path, info)
	return info, nil
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
}

// ParseJSON Read the output of ffprobe -print_format json -show_format -show_streams.
// The duration is the longest video or audio stream duration, falling back to the container one
func ParseJSON(data []byte) (timeline.Info, error) {
	var output probeOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return timeline.Info{}, fmt.Errorf("failed to parse ffprobe output : %w", err)
	}
	info := timeline.Info{}
	for _, s := range output.Streams {
		switch s.CodecType {
		case "video":
			info.Video++
		case "audio":
			info.Audio++
		case "subtitle":
			// Counted, but a lingering subtitle does not make the media longer
			info.Subtitle++
			continue
		default:
			// Data and attachment streams cannot be filtered
			continue
		}
		if d, ok := parseSeconds(s.Duration); ok && (!info.Duration.Known || d > info.Duration.Seconds) {
			info.Duration = timeline.Seconds(d)
		}
	}
	if !info.Duration.Known {
		if d, ok := parseSeconds(output.Format.Duration); ok {
			info.Duration = timeline.Seconds(d)
		}
	}
	return info, nil
}

// ffprobe reports "N/A" for streams without duration
func parseSeconds(s string) (float64, bool) {
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}
