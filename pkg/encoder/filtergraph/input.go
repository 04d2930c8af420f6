package filtergraph

// Input a single -i FFMPEG input, optionally trimmed
type Input struct {
	// Path to the file, as given to FFMPEG
	Path string
	// Seek offset in seconds (-ss), nil if the input starts at 0
	Start *float64
	// Maximum duration to read in seconds (-t), nil to read everything
	Duration *float64
}

// Args Convert the input into FFMPEG arguments
func (i *Input) Args() []string {
	var args []string
	if i.Start != nil {
		args = append(args, "-ss", FormatNumber(*i.Start))
	}
	if i.Duration != nil {
		args = append(args, "-t", FormatNumber(*i.Duration))
	}
	return append(args, "-i", i.Path)
}
