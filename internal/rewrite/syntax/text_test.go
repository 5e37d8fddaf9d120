package syntax

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockOf(t *testing.T, src string) *Node {
	t.Helper()
	open := strings.IndexByte(src, '{')
	end := strings.LastIndexByte(src, '}')
	require.True(t, open >= 0 && end > open)
	return NewNode(KindBlock, open, end+1)
}

func TestIndentStart(t *testing.T) {
	src := []byte("void F()\n\t\t{\n\t\t}\nx = y; {")
	open := strings.IndexByte(string(src), '{')
	assert.Equal(t, open-2, IndentStart(src, open))
	assert.Equal(t, "\t\t", Indent(src, open))

	last := strings.LastIndexByte(string(src), '{')
	assert.Equal(t, last, IndentStart(src, last), "brace not at line start has no indent")
	assert.Equal(t, "", Indent(src, last))

	assert.Equal(t, 0, IndentStart([]byte("  {"), 2))
}

func TestStatementsText(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"multi line", "{\n\t\ta();\n\t\tb();\n\t}", "\t\ta();\n\t\tb();\n"},
		{"single line", "{ return; }", "return;\n"},
		{"empty", "{ }", ""},
		{"empty lines", "{\n\t}", ""},
		{"trailing code on open line", "{ a();\n\tb();\n}", "a();\n\tb();\n"},
		{"close after code", "{\n\ta(); }", "\ta();\n"},
		{"crlf", "{\r\n\ta();\r\n}", "\ta();\r\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := []byte(c.src)
			assert.Equal(t, c.want, StatementsText(src, blockOf(t, c.src), Newline(src)))
		})
	}
}

func TestNewFragment(t *testing.T) {
	tree, err := NewFragment("{\n\ttry{\n\t}finally{\n\t}\n}")
	require.NoError(t, err)
	require.Len(t, tree.Root.Children, 1)
	b := tree.Root.Children[0]
	assert.Equal(t, KindBlock, b.Kind)
	assert.Equal(t, 0, b.Pos)
	assert.Equal(t, len(tree.Source), b.End)

	_, err = NewFragment("x {}")
	assert.Error(t, err)
	_, err = NewFragment("no braces")
	assert.Error(t, err)
}

func TestPosition(t *testing.T) {
	src := []byte("ab\ncd")
	line, col := Position(src, 4)
	assert.Equal(t, 2, line)
	assert.Equal(t, 2, col)
}

func TestKind(t *testing.T) {
	assert.True(t, KindAccessor.MethodLike())
	assert.False(t, KindClosure.MethodLike())
	assert.True(t, KindStackAlloc.Creation())
	assert.False(t, KindInvocation.Creation())
	assert.Equal(t, "ImplicitArrayCreation", KindImplicitArrayCreation.String())
}
