package console_parser

import (
	"context"
	"github.com/stretchr/testify/assert"
	"strings"
	"testing"
	"time"
)

func TestConsoleParser_ParseProgress(t *testing.T) {
	const SampleLine = "frame= 2349 fps=335 q=28.0 size=       10kB time=00:01:31.60 bitrate=   0.0kbits/s speed=13.1x"
	e, err := parseProgress(SampleLine)
	assert.Nil(t, err)
	assert.Equal(t, int64(2349), e.Frames)
	assert.Equal(t, float32(335), e.Fps)
	assert.Equal(t, float32(28.0), e.Quality)
	assert.Equal(t, int64(10), e.Size)
	assert.Equal(t, time.Minute+31*time.Second+600*time.Millisecond, e.Time)
	assert.Equal(t, "0.0kbits/s", e.Bitrate)
	assert.Equal(t, float32(13.1), e.Speed)
}

// Audio only outputs have no frame counter
func TestConsoleParser_ParseProgressAudioOnly(t *testing.T) {
	const SampleLine = "size=     512kB time=00:00:32.00 bitrate= 131.1kbits/s speed=64.1x"
	e, err := parseProgress(SampleLine)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), e.Frames)
	assert.Equal(t, int64(512), e.Size)
	assert.Equal(t, 32*time.Second, e.Time)
}

func TestConsoleParser_ParseProgressError(t *testing.T) {
	const SampleLine = "sdjsdjksjkd=sdjsdhdj=jjsj"
	_, err := parseProgress(SampleLine)
	assert.NotNil(t, err)
}

func TestConsoleParser_ParseSize(t *testing.T) {
	s, err := parseSize("10kb")
	assert.Nil(t, err)
	assert.Equal(t, int64(10), s)
	s, err = parseSize("10Mb")
	assert.Nil(t, err)
	assert.Equal(t, int64(10*1024), s)
	s, err = parseSize("10mb")
	assert.Nil(t, err)
	assert.Equal(t, int64(10*1024), s)
	s, err = parseSize("10Gb")
	assert.Nil(t, err)
	assert.Equal(t, int64(10*1024*1024), s)
	s, err = parseSize("10GB")
	assert.Nil(t, err)
	assert.Equal(t, int64(10*1024*1024), s)
	s, err = parseSize("3MiB")
	assert.Nil(t, err)
	assert.Equal(t, int64(3*1024), s)
	s, err = parseSize("dshsdhsd")
	assert.NotNil(t, err)
	assert.Equal(t, int64(0), s)
	_, err = parseSize("10tb")
	assert.NotNil(t, err)
}

func TestConsoleParser_ParseClock(t *testing.T) {
	d, err := parseClock("01:02:03.50")
	assert.Nil(t, err)
	assert.Equal(t, time.Hour+2*time.Minute+3500*time.Millisecond, d)
	_, err = parseClock("N/A")
	assert.NotNil(t, err)
}

func TestConsoleParser_ParseOutputGibberish(t *testing.T) {
	// Make a buffered channel to avoid being blocked while reading the channel length
	progressChan := make(chan *EncodingProgress, 1)
	errorChan := make(chan error)
	// This is random test so..
	ParseOutput(context.Background(), strings.NewReader("shiny!"), 0, progressChan, errorChan)
	// There shouldn't be any progress emitted...
	assert.Equal(t, 0, len(progressChan))
	// Nor any error
	assert.Equal(t, 0, len(errorChan))
}

// Test the parsing of a valid FFMPEG progress event
func TestConsoleParser_ParseOutputProgressLine(t *testing.T) {
	progressChan := make(chan *EncodingProgress, 1)
	errorChan := make(chan error)
	line := "frame=   85 fps=0.0 q=28.0 size=       0kB time=00:00:01.00 bitrate=   0.4kbits/s speed=   2x    "
	ParseOutput(context.Background(), strings.NewReader(line), 4*time.Second, progressChan, errorChan)
	// A progress object should have been emitted
	assert.Equal(t, 1, len(progressChan))
	p := <-progressChan
	assert.Equal(t, 4*time.Second, p.TargetDuration)
	assert.Equal(t, 25.0, p.Percent)
	// But no error
	assert.Equal(t, 0, len(errorChan))
}

// The last lines are returned to build error messages
func TestConsoleParser_ParseOutputLastLines(t *testing.T) {
	progressChan := make(chan *EncodingProgress, 1)
	errorChan := make(chan error)
	out := ParseOutput(context.Background(), strings.NewReader("a\nb\nmissing.mp4: No such file or directory\n"), 0, progressChan, errorChan)
	assert.Contains(t, out, "No such file or directory")
}

func TestConsoleParser_UnknownTarget(t *testing.T) {
	assert.Equal(t, -1.0, percent(time.Second, 0))
	assert.Equal(t, 100.0, percent(3*time.Second, 2*time.Second))
}

func TestRingLogBuffer(t *testing.T) {
	rlb := NewRingLogBuffer(2)
	rlb.Push("a")
	rlb.Push("b")
	rlb.Push("c")
	assert.Equal(t, "b\nc", rlb.String())
}
