package timeline

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// [HH:]MM:SS[.fff]
var timecode = regexp.MustCompile(`^(?:(\d+):)?(\d{1,2}):(\d{1,2}(?:\.\d+)?)$`)

// ParseTime Parse a time given either in seconds ("12.5") or as a timecode ("1:02:03.5", "02:03")
func ParseTime(v Value) (float64, error) {
	if v.Kind() != Scalar {
		return 0, fmt.Errorf("expected a time, got %s", v)
	}
	s := strings.TrimSpace(v.Text())
	if t, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		if t < 0 {
			return 0, fmt.Errorf("negative time %s", s)
		}
		return t, nil
	}
	matches := timecode.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	var hours, minutes int
	if matches[1] != "" {
		hours, _ = strconv.Atoi(matches[1])
	}
	minutes, _ = strconv.Atoi(matches[2])
	seconds, _ := strconv.ParseFloat(matches[3], 64)
	return float64(hours*3600+minutes*60) + seconds, nil
}

// timeArg Parse an optional time argument
func timeArg(v Value, path string, what string) (*float64, error) {
	t, err := ParseTime(v)
	if err != nil {
		return nil, &CompileError{Kind: ErrMalformedDescription, Path: path, Detail: what, Err: err}
	}
	return &t, nil
}
