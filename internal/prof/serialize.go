package prof

import (
	"fmt"
	"strconv"
	"time"

	perrors "github.com/coral-mesh/profplugin/internal/errors"
)

// Record prefixes of the NodeProfData wire format.
const (
	recordStart = "NodeProfData,Start,"
	recordNode  = "NodeProfData,Node,"
	recordEnd   = "NodeProfData,End\n"
)

// Serialize renders the call tree under root as a NodeProfData blob stamped
// with start (milliseconds since the epoch):
//
//	NodeProfData,Start,<epoch_ms>
//	NodeProfData,Node,<id>,<parentId>,<scriptName>,<functionName>,<line>,<selfSamples>
//	NodeProfData,End
//
// Nodes are numbered 1..N in pre-order and the root's parent is 0. Names are
// written verbatim; commas or newlines inside them are not escaped. If any
// name cannot be extracted the whole blob is dropped and an error wrapping
// ErrSerializationAborted is returned.
func Serialize(root Node, start time.Time) ([]byte, error) {
	return AppendTree(nil, root, start)
}

// AppendTree is like Serialize but appends to dst. On failure dst is
// returned unchanged.
func AppendTree(dst []byte, root Node, start time.Time) ([]byte, error) {
	orig := dst

	dst = append(dst, recordStart...)
	dst = strconv.AppendInt(dst, start.UnixMilli(), 10)
	dst = append(dst, '\n')

	type pending struct {
		node   Node
		parent int
	}

	var stack []pending
	if root != nil {
		stack = append(stack, pending{node: root})
	}

	nextID := 1
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		id := nextID
		nextID++

		var err error
		dst, err = appendNode(dst, top.node, id, top.parent)
		if err != nil {
			return orig, fmt.Errorf("%w: node %d: %w", perrors.ErrSerializationAborted, id, err)
		}

		// Push in reverse so the first child is visited next.
		for i := top.node.ChildrenCount() - 1; i >= 0; i-- {
			stack = append(stack, pending{node: top.node.Child(i), parent: id})
		}
	}

	return append(dst, recordEnd...), nil
}

func appendNode(dst []byte, n Node, id, parent int) ([]byte, error) {
	function, err := n.FunctionName()
	if err != nil {
		return dst, err
	}
	script, err := n.ScriptName()
	if err != nil {
		return dst, err
	}

	dst = append(dst, recordNode...)
	dst = strconv.AppendInt(dst, int64(id), 10)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(parent), 10)
	dst = append(dst, ',')
	dst = append(dst, script...)
	dst = append(dst, ',')
	dst = append(dst, function...)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(n.LineNumber()), 10)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(n.HitCount()), 10)
	return append(dst, '\n'), nil
}
