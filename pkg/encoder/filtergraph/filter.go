package filtergraph

import (
	"math"
	"strconv"
	"strings"
)

// Option A named filter parameter
type Option struct {
	Key   string
	Value string
}

// Filter A single filter with its parameters, without any pad
// Documentation : https://ffmpeg.org/ffmpeg-filters.html#Filtergraph-syntax-1
type Filter struct {
	Name string
	// Positional parameters, always written first
	Args []string
	// Named parameters, written in order after the positional ones
	Options []Option
}

// String Expected format : name=arg1:arg2:key1=value1
func (f Filter) String() string {
	params := make([]string, 0, len(f.Args)+len(f.Options))
	params = append(params, f.Args...)
	for _, o := range f.Options {
		params = append(params, o.Key+"="+o.Value)
	}
	if len(params) == 0 {
		return f.Name
	}
	return f.Name + "=" + strings.Join(params, ":")
}

// FormatNumber Shortest representation of f that still reads as a real number ("3.0", "0.2")
func FormatNumber(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
