package pprofrt

import (
	"testing"
	"time"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/profplugin/internal/prof"
)

// testProfile builds a CPU profile with the stacks (leaf first):
//
//	main.work <- main.main           x3
//	main.helper <- main.work <- main.main  x2 (helper inlined into work)
//	main.idle <- main.main           x1
func testProfile() *profile.Profile {
	fnMain := &profile.Function{ID: 1, Name: "main.main", Filename: "/src/main.go", StartLine: 10}
	fnWork := &profile.Function{ID: 2, Name: "main.work", Filename: "/src/work.go", StartLine: 20}
	fnHelper := &profile.Function{ID: 3, Name: "main.helper", Filename: "/src/work.go", StartLine: 40}
	fnIdle := &profile.Function{ID: 4, Name: "main.idle", Filename: "/src/idle.go", StartLine: 5}

	locMain := &profile.Location{ID: 1, Address: 0x1000, Line: []profile.Line{{Function: fnMain, Line: 12}}}
	locWork := &profile.Location{ID: 2, Address: 0x2000, Line: []profile.Line{{Function: fnWork, Line: 22}}}
	// helper inlined into work: callee first, caller last.
	locInlined := &profile.Location{ID: 3, Address: 0x2100, Line: []profile.Line{
		{Function: fnHelper, Line: 41},
		{Function: fnWork, Line: 25},
	}}
	locIdle := &profile.Location{ID: 4, Address: 0x3000, Line: []profile.Line{{Function: fnIdle, Line: 6}}}

	return &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "samples", Unit: "count"},
			{Type: "cpu", Unit: "nanoseconds"},
		},
		PeriodType:    &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:        int64(10 * time.Millisecond),
		TimeNanos:     time.Now().UnixNano(),
		DurationNanos: int64(time.Second),
		Sample: []*profile.Sample{
			{Location: []*profile.Location{locWork, locMain}, Value: []int64{3, 30_000_000}},
			{Location: []*profile.Location{locInlined, locMain}, Value: []int64{2, 20_000_000}},
			{Location: []*profile.Location{locIdle, locMain}, Value: []int64{1, 10_000_000}},
		},
		Location: []*profile.Location{locMain, locWork, locInlined, locIdle},
		Function: []*profile.Function{fnMain, fnWork, fnHelper, fnIdle},
	}
}

func TestBuildTree(t *testing.T) {
	tree := BuildTree(testProfile())

	root := tree.Top
	require.NotNil(t, root)
	assert.Equal(t, RootName, root.Function)
	assert.Zero(t, root.Hits)
	require.Len(t, root.Children, 1)

	mainFrame := root.Children[0]
	assert.Equal(t, "main.main", mainFrame.Function)
	assert.Equal(t, "/src/main.go", mainFrame.Script)
	assert.Equal(t, 10, mainFrame.Line)
	require.Len(t, mainFrame.Children, 2, "work and idle, in first-seen order")

	work := mainFrame.Children[0]
	assert.Equal(t, "main.work", work.Function)
	assert.Equal(t, 3, work.Hits, "self samples only")
	require.Len(t, work.Children, 1)

	helper := work.Children[0]
	assert.Equal(t, "main.helper", helper.Function)
	assert.Equal(t, 40, helper.Line)
	assert.Equal(t, 2, helper.Hits)

	idle := mainFrame.Children[1]
	assert.Equal(t, "main.idle", idle.Function)
	assert.Equal(t, 1, idle.Hits)

	assert.Equal(t, 5, root.Size())
}

func TestBuildTree_Serializes(t *testing.T) {
	blob, err := prof.Serialize(BuildTree(testProfile()).Root(), time.UnixMilli(1000))
	require.NoError(t, err)

	assert.Equal(t, "NodeProfData,Start,1000\n"+
		"NodeProfData,Node,1,0,,(root),0,0\n"+
		"NodeProfData,Node,2,1,/src/main.go,main.main,10,0\n"+
		"NodeProfData,Node,3,2,/src/work.go,main.work,20,3\n"+
		"NodeProfData,Node,4,3,/src/work.go,main.helper,40,2\n"+
		"NodeProfData,Node,5,2,/src/idle.go,main.idle,5,1\n"+
		"NodeProfData,End\n", string(blob))
}

func TestBuildTree_UnsymbolizedLocation(t *testing.T) {
	loc := &profile.Location{ID: 1, Address: 0xdead}
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "samples", Unit: "count"}},
		Sample:     []*profile.Sample{{Location: []*profile.Location{loc}, Value: []int64{4}}},
		Location:   []*profile.Location{loc},
	}

	root := BuildTree(p).Top
	require.Len(t, root.Children, 1)
	assert.Equal(t, "0xdead", root.Children[0].Function)
	assert.Equal(t, 4, root.Children[0].Hits)
}

func TestBuildTree_EmptyProfile(t *testing.T) {
	root := BuildTree(&profile.Profile{}).Top

	assert.Equal(t, RootName, root.Function)
	assert.Empty(t, root.Children)
}
