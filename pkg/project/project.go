// Package project :: Load edit-box project files.
//
// Expected format :
//
//	flags: [-y, -loglevel, error]          # optional, global FFMPEG options
//	output: [-c:v, libx264, final.mp4]    # optional, output options then output file. A scalar is the file alone
//	all:                                  # any other key is a named target description
//	  concat: [a.mp4, b.mp4]
//	preview: {clip: a.mp4, duration: 5}
package project

import (
	"edit-box/pkg/logger"
	"edit-box/pkg/timeline"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var log = logger.Build()

// DefaultTarget Target compiled when none is asked for
const DefaultTarget = "all"

var (
	ErrInvalidProject = errors.New("invalid project")
	ErrUnknownTarget  = errors.New("unknown target")
)

type Project struct {
	// Global FFMPEG options, nil to use the defaults
	Flags []string
	// Output options, the last one being the output file. Nil to use the defaults
	Output []string
	// Target names, in written order
	targets []string
	// Target descriptions, by name
	descriptions map[string]timeline.Value
}

// Load Read and parse a project file
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s : %w", path, err)
	}
	log.Debugf("[Project] :: Loaded %s, targets %v", path, p.targets)
	return p, nil
}

// Parse a project document
func Parse(data []byte) (*Project, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w : %s", ErrInvalidProject, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w : expected a mapping of targets", ErrInvalidProject)
	}
	root := doc.Content[0]
	p := &Project{descriptions: map[string]timeline.Value{}}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		var err error
		switch key.Value {
		case "flags":
			p.Flags, err = words(value)
		case "output":
			p.Output, err = words(value)
		default:
			if _, ok := p.descriptions[key.Value]; ok {
				return nil, fmt.Errorf("%w : target %s defined twice", ErrInvalidProject, key.Value)
			}
			var v timeline.Value
			if v, err = timeline.FromYAML(value); err == nil {
				p.targets = append(p.targets, key.Value)
				p.descriptions[key.Value] = v
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w : %s : %s", ErrInvalidProject, key.Value, err)
		}
	}
	return p, nil
}

// words A scalar or a list of scalars
func words(n *yaml.Node) ([]string, error) {
	if n.Kind == yaml.ScalarNode {
		return []string{n.Value}, nil
	}
	var list []string
	if err := n.Decode(&list); err != nil {
		return nil, err
	}
	return list, nil
}

// Targets All target names, in written order
func (p *Project) Targets() []string {
	return p.targets
}

// Target Description of the named target, DefaultTarget if name is empty
func (p *Project) Target(name string) (timeline.Value, error) {
	if name == "" {
		name = DefaultTarget
	}
	v, ok := p.descriptions[name]
	if !ok {
		return timeline.Value{}, fmt.Errorf("%w %q, available : %s", ErrUnknownTarget, name, strings.Join(p.targets, ", "))
	}
	return v, nil
}
