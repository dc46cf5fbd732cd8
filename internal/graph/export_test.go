package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stagehand/internal/node"
)

func TestWriteDOT(t *testing.T) {
	a := &testNode{name: "index"}
	b := &testNode{name: "align", deps: []node.Node{a}}
	group := &testNode{name: "all", kind: node.KindComposite, subs: []node.Node{b}}
	g := mustGraph(t, group)

	var buf strings.Builder
	require.NoError(t, g.WriteDOT(&buf))
	dot := buf.String()

	assert.Contains(t, dot, "digraph pipeline {")
	assert.Contains(t, dot, `label="index"`)
	assert.Contains(t, dot, `shape=folder`)
	assert.Contains(t, dot, "style=dashed")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(dot), "}"))
}

func TestDescribe(t *testing.T) {
	a := &testNode{name: "index"}
	b := &testNode{name: "align", deps: []node.Node{a}}
	g := mustGraph(t, b)

	desc := g.Describe(idByName(g, "align"))
	assert.Contains(t, desc, "align")
	assert.Contains(t, desc, "after index")

	desc = g.Describe(idByName(g, "index"))
	assert.Contains(t, desc, "runnable")
	assert.NotContains(t, desc, "after")
}
