package snapshot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/domsnap/api/schemas"
	"github.com/xkilldash9x/domsnap/internal/browser/a11y"
	"github.com/xkilldash9x/domsnap/internal/browser/snapshot"
)

func id(frame, backend int) schemas.EncodedID {
	return schemas.NewEncodedID(schemas.FrameOrdinal(frame), cdpBackend(backend))
}

func TestOutlineSplice(t *testing.T) {
	root := snapshot.Outline{Lines: []a11y.Line{
		{Depth: 0, ID: id(0, 1), Text: "RootWebArea: Top"},
		{Depth: 1, ID: id(0, 5), Text: "Iframe"},
		{Depth: 1, ID: id(0, 6), Text: "button: After"},
	}}
	child := snapshot.Outline{Lines: []a11y.Line{
		{Depth: 0, ID: id(1, 1), Text: "RootWebArea: Child"},
		{Depth: 1, ID: id(1, 9), Text: "Iframe"},
	}}
	grandchild := snapshot.Outline{Lines: []a11y.Line{
		{Depth: 0, ID: id(2, 1), Text: "RootWebArea: Grandchild"},
		{Depth: 1, Text: "StaticText: [0-6] not an owner"},
	}}

	got := root.Splice(map[schemas.EncodedID]snapshot.Outline{
		id(0, 5): child,
		id(1, 9): grandchild,
	})

	assert.Equal(t, "[0-1] RootWebArea: Top\n"+
		"  [0-5] Iframe\n"+
		"    [1-1] RootWebArea: Child\n"+
		"      [1-9] Iframe\n"+
		"        [2-1] RootWebArea: Grandchild\n"+
		"          StaticText: [0-6] not an owner\n"+
		"  [0-6] button: After", got.String())
	assert.Len(t, root.Lines, 3, "receiver is not modified")
}

func TestOutlineSplice_OwnerExpandedOnce(t *testing.T) {
	loop := snapshot.Outline{Lines: []a11y.Line{{Depth: 0, ID: id(0, 2), Text: "Iframe"}}}
	root := snapshot.Outline{Lines: []a11y.Line{
		{Depth: 0, ID: id(0, 2), Text: "Iframe"},
	}}

	got := root.Splice(map[schemas.EncodedID]snapshot.Outline{id(0, 2): loop})
	assert.Equal(t, "[0-2] Iframe\n  [0-2] Iframe", got.String())
}

func TestDiffCombinedTrees(t *testing.T) {
	prev := "[0-1] RootWebArea: Shop\n  [0-2] button: Add\n  [0-3] list"
	next := "[0-1] RootWebArea: Shop\n  [0-2] button: Add\n  [0-3] list\n    [0-7] listitem: Apples\n      [0-8] StaticText: 2\n"

	assert.Equal(t, "[0-7] listitem: Apples\n  [0-8] StaticText: 2", snapshot.DiffCombinedTrees(prev, next))
	assert.Equal(t, "", snapshot.DiffCombinedTrees(next, prev))
	assert.Equal(t, "[0-1] a\n[0-2] b", snapshot.DiffCombinedTrees("", "  [0-1] a\n  [0-2] b"))
}
