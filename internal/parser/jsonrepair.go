package parser

import (
	"regexp"
	"strings"
)

// The debug section's parameter objects are written by a language model
// and routinely violate strict JSON: bare keys, single-quoted strings,
// trailing commas, inline comments. Each repair rule below fixes one class
// of looseness; Repair chains them before the strict encoding/json parse.

var (
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)(['"])?([a-zA-Z0-9_]+)(['"])?\s*:`)
	singleQuotedRe  = regexp.MustCompile(`:\s*'((?:\\.|[^'\\])*)'`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	lineCommentRe   = regexp.MustCompile(`(?m)\s*//.*$`)
)

// QuoteBareKeys wraps unquoted (or single-quoted) object keys in double
// quotes: `{risk: 0.8}` becomes `{"risk": 0.8}`.
func QuoteBareKeys(s string) string {
	return bareKeyRe.ReplaceAllString(s, `$1"$3":`)
}

// NormalizeSingleQuotes rewrites single-quoted string values as
// double-quoted: `: 'high'` becomes `: "high"`.
func NormalizeSingleQuotes(s string) string {
	return singleQuotedRe.ReplaceAllString(s, `: "$1"`)
}

// DropTrailingCommas removes a comma directly before a closing brace or
// bracket.
func DropTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, `$1`)
}

// StripLineComments removes `//` comments to end of line.
func StripLineComments(s string) string {
	return lineCommentRe.ReplaceAllString(s, "")
}

// Repair applies every repair rule in order and trims the result.
func Repair(s string) string {
	s = QuoteBareKeys(s)
	s = NormalizeSingleQuotes(s)
	s = DropTrailingCommas(s)
	s = StripLineComments(s)
	return strings.TrimSpace(s)
}
