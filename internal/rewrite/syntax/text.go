package syntax

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

// Newline returns the line terminator used by src.
func Newline(src []byte) string {
	if bytes.Contains(src, []byte("\r\n")) {
		return "\r\n"
	}
	return "\n"
}

// IndentStart returns the offset of the tab/space run preceding pos when
// that run starts a line, otherwise pos itself.
func IndentStart(src []byte, pos int) int {
	i := pos
	for i > 0 && (src[i-1] == ' ' || src[i-1] == '\t') {
		i--
	}
	if i == 0 || src[i-1] == '\n' {
		return i
	}
	return pos
}

// Indent returns the base indentation of the node starting at pos.
func Indent(src []byte, pos int) string {
	return string(src[IndentStart(src, pos):pos])
}

// StatementsText returns the text between the braces of block, without the
// remainder of the opening brace's line and without the indentation of the
// closing brace's line. Non-empty results end with a line break.
func StatementsText(src []byte, block *Node, nl string) string {
	if block.End-block.Pos < 2 {
		return ""
	}
	inner := string(src[block.Pos+1 : block.End-1])

	if i := strings.IndexByte(inner, '\n'); i >= 0 && isBlank(inner[:i]) {
		inner = inner[i+1:]
	} else {
		inner = strings.TrimLeft(inner, " \t")
	}
	if i := strings.LastIndexByte(inner, '\n'); i >= 0 && isBlank(inner[i+1:]) {
		inner = inner[:i+1]
	} else {
		inner = strings.TrimRight(inner, " \t")
	}
	if inner == "" {
		return ""
	}
	if !strings.HasSuffix(inner, "\n") {
		inner = strings.TrimSuffix(inner, "\r") + nl
	}
	return inner
}

func isBlank(s string) bool {
	return strings.Trim(s, " \t\r") == ""
}

// NewFragment wraps synthesized body text in a tree whose root holds one
// Block spanning the outermost braces. Front ends call it after they have
// checked the text parses.
func NewFragment(text string) (*Tree, error) {
	src := []byte(text)
	open := bytes.IndexByte(src, '{')
	end := bytes.LastIndexByte(src, '}')
	if open < 0 || end < open {
		return nil, errors.Errorf("fragment is not a block: %q", text)
	}
	if strings.TrimSpace(text[:open]) != "" || strings.TrimSpace(text[end+1:]) != "" {
		return nil, errors.Errorf("unexpected text around fragment block: %q", text)
	}
	t := NewTree("", src)
	t.Root.Append(NewNode(KindBlock, open, end+1))
	return t, nil
}
