package console_parser

import (
	"bufio"
	"bytes"
	"context"
	log "edit-box/pkg/logger"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var logger = log.Build()

// EncodingProgress A progress as emitted by Ffmpeg
type EncodingProgress struct {
	// Frames written so far
	Frames int64 `json:"frames"`
	Fps float32 `json:"fps"`
	// Encoder quantizer
	Quality float32 `json:"quality"`
	// Estimated size of the converted file (kb)
	Size int64 `json:"size"`
	// Total processed time
	Time time.Duration `json:"time"`
	// Target bitrate
	Bitrate string `json:"bitrate"`
	// Media seconds processed per wall clock second
	Speed float32 `json:"speed"`
	// The duration of the output file, 0 if unknown
	TargetDuration time.Duration `json:"totalDuration"`
	// Processed time over the target duration, from 0 to 100. -1 if the target duration is unknown
	Percent float64 `json:"percent"`
}

var (
	blanks    = regexp.MustCompile(`=\s+`)
	sizeRegex = regexp.MustCompile(`(\d+)([a-zA-Z]+)`)
)

// ParseOutput Read FFMPEG stderr until it closes or ctx is done, sending every progress line on progressChan.
// target is the expected output duration, 0 if unknown. The last lines read are returned, to be used
// as an error message
func ParseOutput(ctx context.Context, readStream io.Reader, target time.Duration, progressChan chan *EncodingProgress, errorChan chan error) string {
	scanner := bufio.NewScanner(readStream)
	scanner.Split(scanFfmpegOutput)
	// Store the last n ffmpeg lines
	stack := NewRingLogBuffer(5)
	for scanner.Scan() {
		// Check if the operation must be cancelled
		select {
		case <-ctx.Done():
			return stack.String()
		default:
			// Continue
		}
		line := scanner.Text()
		stack.Push(line)
		// A progress line begins with "frame = xxx", or "size= xxx" for audio only outputs.
		// Discard the line otherwise
		if !strings.HasPrefix(line, "frame=") && !strings.HasPrefix(line, "size=") {
			continue
		}
		progress, err := parseProgress(line)
		if err != nil {
			logger.Warnf("[Console parser] :: progress line \"%s\" ignored", line)
			continue
		}
		progress.TargetDuration = target
		progress.Percent = percent(progress.Time, target)
		// Return the parsed progress
		select {
		case progressChan <- progress:
		case <-ctx.Done():
			return stack.String()
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case errorChan <- err:
		case <-ctx.Done():
		}
	}
	return stack.String()
}

func percent(done time.Duration, target time.Duration) float64 {
	if target <= 0 {
		return -1
	}
	return math.Min(100, float64(done)/float64(target)*100)
}

// scanFfmpegOutput A modified version of a traditional scanLine, allowing to parse FFMpeg output
func scanFfmpegOutput(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		// We have a full newline-terminated line.
		return i + 1, dropCR(data[0:i]), nil
	}
	// If we're at EOF, we have a final, non-terminated line. Return it.
	if atEOF {
		return len(data), dropCR(data), nil
	}
	if i := bytes.IndexByte(data, '\r'); i >= 0 {
		// In FFMPEG's case, having a non newline terminated by \r means we have a progress line
		return i + 1, dropCR(data[0:i]), nil
	}

	return 0, nil, nil
}

// dropCR drops a terminal \r from the data.
func dropCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		return data[0 : len(data)-1]
	}
	return data
}

// Parse a progress line in the following format :
// frame=   85 fps=0.0 q=28.0 size=       0kB time=00:00:01.04 bitrate=   0.4kbits/s speed=   2x
func parseProgress(progressLine string) (*EncodingProgress, error) {
	components := strings.Fields(blanks.ReplaceAllString(strings.TrimSpace(progressLine), "="))
	p := &EncodingProgress{}
	for _, c := range components {
		key, value, err := parseComponentString(c)
		if err != nil {
			return nil, err
		}
		switch key {
		case "frame":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				p.Frames = n
			}
		case "fps":
			if n, err := strconv.ParseFloat(value, 32); err == nil {
				p.Fps = float32(n)
			}
		case "q":
			if n, err := strconv.ParseFloat(value, 32); err == nil {
				p.Quality = float32(n)
			}
		case "size", "Lsize":
			if s, err := parseSize(value); err == nil {
				p.Size = s
			}
		case "bitrate":
			p.Bitrate = value
		case "time":
			if t, err := parseClock(value); err == nil {
				p.Time = t
			}
		case "speed":
			if n, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 32); err == nil {
				p.Speed = float32(n)
			}
		}
	}
	return p, nil
}

// Parse a string with format "key=value" into a key/value pair
func parseComponentString(str string) (key string, value string, err error) {
	pair := strings.Split(str, "=")
	if len(pair) != 2 {
		return "", "", fmt.Errorf("invalid pair : %s", pair)
	}
	return pair[0], pair[1], nil
}

// Parse a "HH:MM:SS.ff" string into a duration
func parseClock(raw string) (time.Duration, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %s", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds*float64(time.Second)), nil
}

// sizeUnits Multiplier converting a size unit into kB
var sizeUnits = map[string]int64{"kb": 1, "kib": 1, "mb": 1 << 10, "mib": 1 << 10, "gb": 1 << 20, "gib": 1 << 20}

// parseSize Expected format : "12kB", "3MiB"
func parseSize(raw string) (int64, error) {
	m := sizeRegex.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("invalid size %s", raw)
	}
	multiplier, ok := sizeUnits[strings.ToLower(m[2])]
	if !ok {
		return 0, fmt.Errorf("unknown unit %s", m[2])
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, err
	}
	return n * multiplier, nil
}
