// Package tool defines the uniform capability an orchestration layer calls:
// a named tool that turns a query into text.
package tool

import "context"

// ResultSeparator joins ranked passages in a tool's text output.
const ResultSeparator = "\n___\n"

type Tool interface {
	// Name is a stable identifier, e.g. "document_search".
	Name() string

	// Description tells a caller when to use the tool.
	Description() string

	// Run answers query with text.
	Run(ctx context.Context, query string) (string, error)
}

// Registry holds tools by name in registration order.
type Registry struct {
	tools []Tool
	index map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{index: make(map[string]Tool)}
	for _, t := range tools {
		r.Add(t)
	}
	return r
}

// Add registers t, replacing any tool with the same name.
func (r *Registry) Add(t Tool) {
	if _, ok := r.index[t.Name()]; ok {
		for i, existing := range r.tools {
			if existing.Name() == t.Name() {
				r.tools[i] = t
			}
		}
	} else {
		r.tools = append(r.tools, t)
	}
	r.index[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

func (r *Registry) All() []Tool {
	return append([]Tool(nil), r.tools...)
}
