package device

import (
	"strings"

	"github.com/devicelab-dev/uidriver/pkg/agent"
)

// Query is an element selector expression, e.g. `button text:"Sign in"`.
// The selector grammar belongs to the platform backend; the core only
// guards against selectors that could never match anything.
type Query string

// ValidateQuery rejects empty or structurally broken selectors before any
// operation routes. It runs ahead of the managed/local switch so malformed
// input fails identically on both paths.
func ValidateQuery(q Query) error {
	s := strings.TrimSpace(string(q))
	if s == "" {
		return &agent.ValidationError{Code: agent.CodeEmptyQuery, Message: "selector query must not be empty"}
	}
	if strings.Count(s, `"`)%2 != 0 {
		return &agent.ValidationError{Code: agent.CodeMalformedQuery, Message: "selector query has unbalanced quotes: " + s}
	}
	if strings.Count(s, "'")%2 != 0 {
		return &agent.ValidationError{Code: agent.CodeMalformedQuery, Message: "selector query has unbalanced quotes: " + s}
	}
	return nil
}
