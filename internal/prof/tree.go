package prof

import (
	"fmt"
	"unicode/utf8"

	perrors "github.com/coral-mesh/profplugin/internal/errors"
)

// Node is one frame of a call tree as reported by the runtime profiler.
type Node interface {
	// FunctionName returns the frame's function name, or an error when the
	// name cannot be materialized as text.
	FunctionName() (string, error)
	// ScriptName returns the source file of the frame's function.
	ScriptName() (string, error)
	LineNumber() int
	// HitCount is the number of samples in which this frame was the leaf.
	HitCount() int
	ChildrenCount() int
	Child(i int) Node
}

// CallTree is the result of a completed sampling session.
type CallTree interface {
	Root() Node
	// Release frees the tree. The tree must not be used afterwards.
	Release()
}

// Frame is an in-memory Node.
type Frame struct {
	Function string
	Script   string
	Line     int
	Hits     int
	Children []*Frame
}

// AddChild appends a child frame and returns it. A nil child is ignored.
func (f *Frame) AddChild(child *Frame) *Frame {
	if child == nil {
		return nil
	}
	f.Children = append(f.Children, child)
	return child
}

// FunctionName returns the function name; invalid UTF-8 cannot be emitted.
func (f *Frame) FunctionName() (string, error) {
	return text("function", f.Function)
}

// ScriptName returns the script name; invalid UTF-8 cannot be emitted.
func (f *Frame) ScriptName() (string, error) {
	return text("script", f.Script)
}

func (f *Frame) LineNumber() int    { return f.Line }
func (f *Frame) HitCount() int      { return f.Hits }
func (f *Frame) ChildrenCount() int { return len(f.Children) }
func (f *Frame) Child(i int) Node   { return f.Children[i] }

// Size returns the number of frames in the subtree rooted at f.
func (f *Frame) Size() int {
	n := 1
	for _, c := range f.Children {
		n += c.Size()
	}
	return n
}

func text(field, s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: %s name %q is not valid UTF-8", perrors.ErrTextExtraction, field, s)
	}
	return s, nil
}

// Tree is a CallTree over Frames.
type Tree struct {
	Top *Frame
}

// Root returns the top-down root frame, or nil after Release.
func (t *Tree) Root() Node {
	if t.Top == nil {
		return nil
	}
	return t.Top
}

// Release drops the frames.
func (t *Tree) Release() {
	t.Top = nil
}
