package console_parser

import "strings"

// A string ring buffer, contains the last size lines of FFMPEG log
type ringLogBuffer struct {
	// proper string buffer
	content []string
	// total array size
	size int
	// Index of the next line to insert, which is also the oldest line
	currentIndex int
}

func NewRingLogBuffer(size int) *ringLogBuffer {
	return &ringLogBuffer{size: size, content: make([]string, size)}
}

func (rlb *ringLogBuffer) Push(str string) {
	rlb.content[rlb.currentIndex] = str
	rlb.currentIndex = (rlb.currentIndex + 1) % rlb.size
}

// String Stored lines, oldest first
func (rlb *ringLogBuffer) String() string {
	lines := make([]string, 0, rlb.size)
	for i := 0; i < rlb.size; i++ {
		if line := rlb.content[(rlb.currentIndex+i)%rlb.size]; line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
