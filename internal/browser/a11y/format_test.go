package a11y_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/domsnap/api/schemas"
	"github.com/xkilldash9x/domsnap/internal/browser/a11y"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "Sign in", "Sign in"},
		{"icon glyph removed", "\ue001 Settings", "Settings"},
		{"nbsp folded", "a\u00a0\u00a0b", "a b"},
		{"mixed variants fold once", "a\u202f\u2007\ufeffb", "a b"},
		{"nbsp after space", "a \u00a0b", "a b"},
		{"trimmed", "\u00a0 padded \u00a0", "padded"},
		{"only glyphs", "\uf8ff\ue000", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a11y.CleanText(tt.in))
		})
	}
}

func TestNormaliseSpaces(t *testing.T) {
	assert.Equal(t, " a b c ", a11y.NormaliseSpaces("\n a \t\tb\u00a0c  "))
	assert.Equal(t, "x", a11y.NormaliseSpaces("x"))
}

func TestLineString(t *testing.T) {
	l := a11y.Line{Depth: 2, ID: schemas.NewEncodedID(1, 42), Text: "button: Go"}
	assert.Equal(t, "    [1-42] button: Go", l.String())

	anonymous := a11y.Line{Depth: 1, Text: "StaticText: hi"}
	assert.Equal(t, "  StaticText: hi", anonymous.String())
}

func TestRenderLines(t *testing.T) {
	roots := []*a11y.Node{{
		Role:      "RootWebArea",
		Name:      "Home",
		EncodedID: schemas.NewEncodedID(0, 1),
		Children: []*a11y.Node{
			{Role: "link", Name: "About\u00a0us", EncodedID: schemas.NewEncodedID(0, 5)},
			{Role: "list", EncodedID: schemas.NewEncodedID(0, 6), Children: []*a11y.Node{
				{Role: "listitem", Name: "one", EncodedID: schemas.NewEncodedID(0, 7)},
			}},
		},
	}}

	got := a11y.JoinLines(a11y.RenderLines(roots))
	assert.Equal(t, "[0-1] RootWebArea: Home\n"+
		"  [0-5] link: About us\n"+
		"  [0-6] list\n"+
		"    [0-7] listitem: one", got)
}
