package encoder

import (
	"context"
	console_parser "edit-box/pkg/encoder/console-parser"
	"edit-box/pkg/logger"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

var log = logger.Build()

type Encoder struct {
	// FFMpeg binary
	bin string
	// FFMpeg arguments, not including the binary
	args []string
	// Expected duration of the output, 0 if unknown
	duration time.Duration
	// Channel to send progress into
	PChan chan *console_parser.EncodingProgress
	// Channel to send errors into
	EChan chan error
	// Encoder context
	Ctx context.Context
	// Function to execute to Cancel the encoding process
	Cancel context.CancelFunc
}

// NewEncoder Build a new FFMpeg encoder running args. The binary is read from FFMPEG_PATH, defaulting to
// the one in PATH
func NewEncoder(ctx context.Context, args []string, duration time.Duration) *Encoder {
	eCtx, cancel := context.WithCancel(ctx)
	return &Encoder{
		bin:      ffmpegBin(),
		args:     args,
		duration: duration,
		PChan:    make(chan *console_parser.EncodingProgress),
		EChan:    make(chan error),
		Ctx:      eCtx,
		Cancel:   cancel,
	}
}

// Start Run FFMpeg until it exits or the context is cancelled. Progress is sent on PChan and a single
// error on EChan if the process fails. Ctx is done when the process exits
func (e *Encoder) Start() {
	defer e.Cancel()
	cmd := exec.CommandContext(e.Ctx, e.bin, e.args...)

	// FFMpeg pipe output in stderr for some reason
	stderr, err := cmd.StderrPipe()
	if err != nil {
		e.fail(err)
		return
	}
	if err = cmd.Start(); err != nil {
		e.fail(err)
		return
	}
	lines := console_parser.ParseOutput(e.Ctx, stderr, e.duration, e.PChan, e.EChan)
	if err = cmd.Wait(); err != nil && e.Ctx.Err() == nil {
		e.fail(fmt.Errorf("%w : %s", err, strings.TrimSpace(lines)))
	}
}

func (e *Encoder) fail(err error) {
	select {
	case e.EChan <- err:
	case <-e.Ctx.Done():
	}
}

// ffmpegBin FFMPEG_PATH, or the ffmpeg found in PATH
func ffmpegBin() string {
	if bin := os.Getenv("FFMPEG_PATH"); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// Args FFMpeg arguments, not including the binary
func (e *Encoder) Args() []string {
	return e.args
}

// GetCommandLine The full command, quoted to be pasted in a shell
func (e *Encoder) GetCommandLine() string {
	return shellquote.Join(append([]string{e.bin}, e.args...)...)
}
