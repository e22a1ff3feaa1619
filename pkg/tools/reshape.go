// pkg/tools/reshape.go
package tools

import (
	jmes "github.com/jmespath/go-jmespath"
)

// Reshape projects an upstream response document through a JMESPath
// expression so tool results carry only what the orchestrating model needs.
// A nil projection falls back to the full document rather than erroring;
// upstream payload drift should degrade, not break, the tool.
func Reshape(expr string, doc any) any {
	if expr == "" {
		return doc
	}
	out, err := jmes.Search(expr, doc)
	if err != nil || out == nil {
		return doc
	}
	return out
}
