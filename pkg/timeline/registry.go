package timeline

// NodeConstructor Build a compound node from its options
type NodeConstructor func(b *Builder, args Args, path string) (Node, error)

// FilterConstructor Build a node wrapping input from the filter options
type FilterConstructor func(b *Builder, input Node, args Args, path string) (Node, error)

// Constructor An entry of the registry. Exactly one of Node and Filter is set
type Constructor struct {
	Name   string
	Node   NodeConstructor
	Filter FilterConstructor
	// Implicit filters can be attached to a clip or a concat as a plain key, ex {clip: a.mp4, scale: 640x480}
	Implicit bool
}

// Registry Ordered table of constructors. The order of the implicit entries is the order in which shorthand
// filters are applied : filters do not commute (a fade after a speed change is not a speed change after
// a fade)
type Registry struct {
	entries []Constructor
	index   map[string]int
}

func NewRegistry(entries ...Constructor) *Registry {
	r := &Registry{index: map[string]int{}}
	for _, e := range entries {
		r.Register(e)
	}
	return r
}

// DefaultRegistry Every built-in node and filter
func DefaultRegistry() *Registry {
	return NewRegistry(
		Constructor{Name: "clip", Node: newSource},
		Constructor{Name: "concat", Node: newConcat},
		Constructor{Name: "scale", Filter: newScale, Implicit: true},
		Constructor{Name: "speed", Filter: newSpeed, Implicit: true},
		Constructor{Name: "addaudio", Filter: newAddAudio, Implicit: true},
		Constructor{Name: "tempo", Filter: newTempo, Implicit: true},
		Constructor{Name: "fadein", Filter: newFadeIn, Implicit: true},
		Constructor{Name: "fadeout", Filter: newFadeOut, Implicit: true},
		Constructor{Name: "filter", Filter: newFilter},
		Constructor{Name: "volume", Filter: newVolume},
		Constructor{Name: "normalize", Filter: newNormalize},
		Constructor{Name: "resample", Filter: newResample},
	)
}

// Register Add a constructor. Registering an existing name replaces it, keeping its position
func (r *Registry) Register(e Constructor) {
	if i, ok := r.index[e.Name]; ok {
		r.entries[i] = e
		return
	}
	r.index[e.Name] = len(r.entries)
	r.entries = append(r.entries, e)
}

// Lookup Constructor registered under name
func (r *Registry) Lookup(name string) (Constructor, bool) {
	i, ok := r.index[name]
	if !ok {
		return Constructor{}, false
	}
	return r.entries[i], true
}

// Implicit Names usable as shorthand, in application order
func (r *Registry) Implicit() []string {
	var names []string
	for _, e := range r.entries {
		if e.Implicit {
			names = append(names, e.Name)
		}
	}
	return names
}
