package edit_box

import (
	"edit-box/pkg/encoder"
	"edit-box/pkg/timeline"
	"fmt"
)

type EditRequest struct {
	// Job UUID, used in progress events
	JobId string `json:"jobId"`
	// Description of the timeline to render
	Timeline timeline.Value `json:"timeline"`
	// Ready-made timeline to use instead of Timeline
	Preset string `json:"preset"`
	// Files given to the preset
	Files []string `json:"files"`
	// Global FFMPEG options. The defaults are used if empty
	Flags []string `json:"flags"`
	// Output options, the last one being the output file. The defaults are used if empty
	Output []string `json:"output"`
	// Object storage key to upload the output to. The output is kept locally if empty
	UploadKey string `json:"uploadKey"`
	// All available options for editing
	Options EditOptions `json:"options"`
}

// EditOptions All valid editing options
type EditOptions struct {
	// Clean up the clips downloaded from the object storage if the editing succeeded
	DeleteAssetsFromObjStore bool `json:"deleteAssetsFromObjStore"`
	// Only compile the request, without running FFMPEG
	DryRun bool `json:"dryRun"`
}

// root Build the timeline of the request, either from its description or from a preset
func (req *EditRequest) root() (timeline.Node, error) {
	if req.Preset == "" {
		return timeline.Parse(req.Timeline)
	}
	preset, ok := encoder.Presets[req.Preset]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q, available : %v", req.Preset, encoder.PresetNames())
	}
	return preset(req.Files...)
}
