package plan

import (
	"sort"

	"github.com/stackline-io/stackctl/pkg/errors"
	"github.com/stackline-io/stackctl/pkg/graph"
)

// Synthesizer turns a validated resource graph into a deployment plan.
type Synthesizer struct{}

func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize produces a plan whose resources appear in dependency order.
// Property values carrying reference tokens become deferred values; every
// token must name a resource declared in the graph.
func (s *Synthesizer) Synthesize(stack string, g *graph.Graph) (*Plan, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	p := New(stack)
	p.Resources = make([]ResourceDescription, 0, len(order))

	for _, node := range order {
		desc := ResourceDescription{
			ID:   node.ID,
			Type: node.Type,
		}
		if len(node.DependsOn) > 0 {
			desc.DependsOn = append([]string{}, node.DependsOn...)
			sort.Strings(desc.DependsOn)
		}

		if len(node.Properties) > 0 {
			desc.Properties = make(map[string]PropertyValue, len(node.Properties))
			for name, raw := range node.Properties {
				value, err := s.resolve(g, node.ID, name, raw)
				if err != nil {
					return nil, err
				}
				desc.Properties[name] = value
			}
		}

		p.Resources = append(p.Resources, desc)
	}

	return p, nil
}

func (s *Synthesizer) resolve(g *graph.Graph, resourceID, property string, raw interface{}) (PropertyValue, error) {
	tokens := graph.PropertyTokens(raw)
	if len(tokens) == 0 {
		return Concrete(raw), nil
	}
	for _, token := range tokens {
		if g.GetNode(token.Resource) == nil {
			return PropertyValue{}, errors.UnresolvableProperty(resourceID, property, token.Raw)
		}
	}
	return Deferred(raw), nil
}
