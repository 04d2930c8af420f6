package filtergraph

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestFilter_String(t *testing.T) {
	assert.Equal(t, "hflip", Filter{Name: "hflip"}.String())
	assert.Equal(t, "scale=w=640:h=480", Filter{
		Name:    "scale",
		Options: []Option{{Key: "w", Value: "640"}, {Key: "h", Value: "480"}},
	}.String())
	// Positional parameters always come first
	assert.Equal(t, "amix=2:longest:weights=1 2", Filter{
		Name:    "amix",
		Args:    []string{"2", "longest"},
		Options: []Option{{Key: "weights", Value: "1 2"}},
	}.String())
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "3.0", FormatNumber(3))
	assert.Equal(t, "0.2", FormatNumber(0.2))
	assert.Equal(t, "0.5", FormatNumber(1/2.0))
	assert.Equal(t, "12.25", FormatNumber(12.25))
}

func TestInput_Args(t *testing.T) {
	assert.Equal(t, []string{"-i", "a.mp4"}, (&Input{Path: "a.mp4"}).Args())
	start, duration := 1.5, 10.0
	assert.Equal(t,
		[]string{"-ss", "1.5", "-t", "10.0", "-i", "a.mp4"},
		(&Input{Path: "a.mp4", Start: &start, Duration: &duration}).Args())
}

func TestGraph_AddInput(t *testing.T) {
	g := NewGraph()
	assert.Equal(t, 0, g.AddInput(&Input{Path: "a.mp4"}))
	assert.Equal(t, 1, g.AddInput(&Input{Path: "b.mp4"}))
	// The same file added twice is two distinct inputs
	assert.Equal(t, 2, g.AddInput(&Input{Path: "a.mp4"}))
	assert.Len(t, g.Inputs(), 3)
}

func TestGraph_AddFilter(t *testing.T) {
	g := NewGraph()
	v := g.AddFilter([]string{StreamRef(0, Video, 0)}, Filter{Name: "hflip"}, 1)
	assert.Equal(t, []string{"[f0]"}, v)
	outputs := g.AddFilter(
		[]string{v[0], StreamRef(0, Audio, 0), StreamRef(1, Video, 0), StreamRef(1, Audio, 0)},
		Filter{Name: "concat", Options: []Option{{Key: "n", Value: "2"}, {Key: "v", Value: "1"}, {Key: "a", Value: "1"}}},
		2,
	)
	assert.Equal(t, []string{"[f1]", "[f2]"}, outputs)
	assert.Equal(t, []string{
		"[0:v:0]hflip[f0]",
		"[f0][0:a:0][1:v:0][1:a:0]concat=n=2:v=1:a=1[f1][f2]",
	}, g.Instructions())
	assert.Equal(t, "[0:v:0]hflip[f0],[f0][0:a:0][1:v:0][1:a:0]concat=n=2:v=1:a=1[f1][f2]", g.String())
}

func TestGraph_LabelsAreUnique(t *testing.T) {
	g := NewGraph()
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		for _, l := range g.AddFilter([]string{"0:a:0"}, Filter{Name: "anull"}, 2) {
			assert.False(t, seen[l], "label %s allocated twice", l)
			seen[l] = true
		}
	}
}

func TestIsLabel(t *testing.T) {
	assert.True(t, IsLabel("[f3]"))
	assert.False(t, IsLabel("0:v:0"))
	assert.Equal(t, "0:s:2", StreamRef(0, Subtitle, 2))
}
