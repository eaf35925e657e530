package pprofrt

import (
	"fmt"

	"github.com/google/pprof/profile"

	"github.com/coral-mesh/profplugin/internal/prof"
)

// RootName is the function name of the synthetic top-down root.
const RootName = "(root)"

// frameKey identifies a callee under a given caller.
type frameKey struct {
	function string
	script   string
	line     int
}

// BuildTree folds the samples of p into a top-down call tree. Inlined frames
// become their own nodes. Children keep the order in which they were first
// seen, so the same profile always yields the same tree.
func BuildTree(p *profile.Profile) *prof.Tree {
	root := &prof.Frame{Function: RootName}
	children := map[*prof.Frame]map[frameKey]*prof.Frame{}

	child := func(parent *prof.Frame, key frameKey) *prof.Frame {
		byKey := children[parent]
		if byKey == nil {
			byKey = map[frameKey]*prof.Frame{}
			children[parent] = byKey
		}
		if f, ok := byKey[key]; ok {
			return f
		}
		f := parent.AddChild(&prof.Frame{Function: key.function, Script: key.script, Line: key.line})
		byKey[key] = f
		return f
	}

	valueIdx := sampleIndex(p)
	for _, s := range p.Sample {
		if valueIdx >= len(s.Value) {
			continue
		}

		cur := root
		// Location[0] is the leaf; walk from the outermost caller down.
		for i := len(s.Location) - 1; i >= 0; i-- {
			for _, key := range locationFrames(s.Location[i]) {
				cur = child(cur, key)
			}
		}
		cur.Hits += int(s.Value[valueIdx])
	}

	return &prof.Tree{Top: root}
}

// locationFrames returns the frames of loc from caller to callee.
func locationFrames(loc *profile.Location) []frameKey {
	if len(loc.Line) == 0 {
		return []frameKey{{function: fmt.Sprintf("0x%x", loc.Address)}}
	}

	// The last Line is the caller the preceding ones were inlined into.
	keys := make([]frameKey, 0, len(loc.Line))
	for i := len(loc.Line) - 1; i >= 0; i-- {
		ln := loc.Line[i]
		if ln.Function == nil {
			keys = append(keys, frameKey{function: fmt.Sprintf("0x%x", loc.Address), line: int(ln.Line)})
			continue
		}
		keys = append(keys, frameKey{
			function: ln.Function.Name,
			script:   ln.Function.Filename,
			line:     int(ln.Function.StartLine),
		})
	}
	return keys
}

// sampleIndex picks the "samples" value of a CPU profile, falling back to the
// first value.
func sampleIndex(p *profile.Profile) int {
	for i, st := range p.SampleType {
		if st.Type == "samples" {
			return i
		}
	}
	return 0
}
