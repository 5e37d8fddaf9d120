package csharp

import (
	"strings"
	"unicode"
)

var binaryOperators = map[string]string{
	"+":   "op_Addition",
	"-":   "op_Subtraction",
	"*":   "op_Multiply",
	"/":   "op_Division",
	"%":   "op_Modulus",
	"&":   "op_BitwiseAnd",
	"|":   "op_BitwiseOr",
	"^":   "op_ExclusiveOr",
	"<<":  "op_LeftShift",
	">>":  "op_RightShift",
	">>>": "op_UnsignedRightShift",
	"==":  "op_Equality",
	"!=":  "op_Inequality",
	"<":   "op_LessThan",
	">":   "op_GreaterThan",
	"<=":  "op_LessThanOrEqual",
	">=":  "op_GreaterThanOrEqual",
}

var unaryOperators = map[string]string{
	"+":     "op_UnaryPlus",
	"-":     "op_UnaryNegation",
	"!":     "op_LogicalNot",
	"~":     "op_OnesComplement",
	"++":    "op_Increment",
	"--":    "op_Decrement",
	"true":  "op_True",
	"false": "op_False",
}

// operatorName returns the metadata name of a user-defined operator.
func operatorName(op string, params int) string {
	if params == 1 {
		if name, ok := unaryOperators[op]; ok {
			return name
		}
	}
	if name, ok := binaryOperators[op]; ok {
		return name
	}
	if name, ok := unaryOperators[op]; ok {
		return name
	}
	return "op_" + op
}

// accessorName returns the metadata name of an accessor: get_Name,
// set_Name (also for init), add_Name, remove_Name.
func accessorName(m *member, keyword string) string {
	if m == nil {
		return keyword
	}
	switch keyword {
	case "get":
		return "get_" + m.name
	case "set", "init":
		return "set_" + m.name
	case "add":
		return "add_" + m.name
	case "remove":
		return "remove_" + m.name
	}
	return keyword + "_" + m.name
}

// normalizeName strips whitespace, type argument lists and a leading
// global:: from a name or member access expression.
func normalizeName(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			if depth > 0 {
				depth--
			}
		case depth > 0, unicode.IsSpace(r):
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimPrefix(b.String(), "global::")
}

// isDottedName reports whether s is a chain of identifiers joined by dots.
func isDottedName(s string) bool {
	if s == "" {
		return false
	}
	for _, seg := range strings.Split(s, ".") {
		if seg == "" {
			return false
		}
		for i, r := range strings.TrimPrefix(seg, "@") {
			if !(r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r))) {
				return false
			}
		}
	}
	return true
}
