package ffmpeg

import (
	"fmt"
	"strings"
)

// Chain is one labeled filter chain of a filter graph
type Chain struct {
	Inputs  []string
	Filters string
	Output  string
}

func (c Chain) String() string {
	var b strings.Builder
	for _, in := range c.Inputs {
		b.WriteString("[" + in + "]")
	}
	b.WriteString(c.Filters)
	if c.Output != "" {
		b.WriteString("[" + c.Output + "]")
	}
	return b.String()
}

// Graph is a filter_complex description: chains separated by semicolons
type Graph struct {
	chains []Chain
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{}
}

// Add appends a chain reading the given labels and writing output
func (g *Graph) Add(inputs []string, filters string, output string) *Graph {
	g.chains = append(g.chains, Chain{
		Inputs:  append([]string(nil), inputs...),
		Filters: filters,
		Output:  output,
	})
	return g
}

// Chains returns a copy of the chains in order
func (g *Graph) Chains() []Chain {
	return append([]Chain(nil), g.chains...)
}

// Len returns the number of chains
func (g *Graph) Len() int {
	return len(g.chains)
}

// Output returns the label written by the last chain
func (g *Graph) Output() string {
	if len(g.chains) == 0 {
		return ""
	}
	return g.chains[len(g.chains)-1].Output
}

func (g *Graph) String() string {
	parts := make([]string, len(g.chains))
	for i, c := range g.chains {
		parts[i] = c.String()
	}
	return strings.Join(parts, ";")
}

// Validate checks label wiring. Stream specifiers such as "0:v" are always
// readable; any other input label must be written by an earlier chain and
// consumed exactly once. Every written label except the final output must
// be consumed.
func (g *Graph) Validate() error {
	produced := make(map[string]bool)
	consumed := make(map[string]bool)

	for i, c := range g.chains {
		for _, in := range c.Inputs {
			if isStreamSpecifier(in) {
				continue
			}
			if !produced[in] {
				return fmt.Errorf("chain %d reads undefined label %q", i, in)
			}
			if consumed[in] {
				return fmt.Errorf("chain %d reads label %q twice", i, in)
			}
			consumed[in] = true
		}
		if c.Output == "" {
			return fmt.Errorf("chain %d has no output label", i)
		}
		if produced[c.Output] {
			return fmt.Errorf("chain %d redefines label %q", i, c.Output)
		}
		produced[c.Output] = true
	}

	last := g.Output()
	for label := range produced {
		if label != last && !consumed[label] {
			return fmt.Errorf("label %q is never consumed", label)
		}
	}
	return nil
}

func isStreamSpecifier(label string) bool {
	return strings.Contains(label, ":")
}
