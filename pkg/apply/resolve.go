package apply

import (
	"fmt"
	"strings"

	"github.com/stackline-io/stackctl/pkg/errors"
	"github.com/stackline-io/stackctl/pkg/graph"
	"github.com/stackline-io/stackctl/pkg/plan"
)

// resolveProperties produces the concrete property map sent to the provider,
// substituting reference tokens with outputs from completed dependencies.
func resolveProperties(desc *plan.ResourceDescription, outputs map[string]map[string]interface{}) (map[string]interface{}, error) {
	if len(desc.Properties) == 0 {
		return nil, nil
	}

	resolved := make(map[string]interface{}, len(desc.Properties))
	for name, value := range desc.Properties {
		if !value.IsDeferred() {
			resolved[name] = value.Value()
			continue
		}
		concrete, err := substitute(desc.ID, name, value.Raw(), outputs)
		if err != nil {
			return nil, err
		}
		resolved[name] = concrete
	}
	return resolved, nil
}

func substitute(resourceID, property string, raw interface{}, outputs map[string]map[string]interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case string:
		return substituteString(resourceID, property, v, outputs)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			resolved, err := substitute(resourceID, property, item, outputs)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			resolved, err := substitute(resourceID, property, item, outputs)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	default:
		return raw, nil
	}
}

func substituteString(resourceID, property, value string, outputs map[string]map[string]interface{}) (interface{}, error) {
	tokens := graph.ExtractTokens(value)
	if len(tokens) == 0 {
		return value, nil
	}

	// A value that is exactly one token keeps the output's native type.
	if len(tokens) == 1 && strings.TrimSpace(value) == tokens[0].Raw {
		return lookupOutput(resourceID, property, tokens[0], outputs)
	}

	result := value
	for _, token := range tokens {
		out, err := lookupOutput(resourceID, property, token, outputs)
		if err != nil {
			return nil, err
		}
		result = strings.ReplaceAll(result, token.Raw, fmt.Sprintf("%v", out))
	}
	return result, nil
}

func lookupOutput(resourceID, property string, token graph.Token, outputs map[string]map[string]interface{}) (interface{}, error) {
	attrs, ok := outputs[token.Resource]
	if !ok {
		return nil, errors.UnresolvableProperty(resourceID, property, token.Raw)
	}

	// Attribute paths may descend into nested output maps.
	var current interface{} = map[string]interface{}(attrs)
	for _, segment := range strings.Split(token.Attribute, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, errors.UnresolvableProperty(resourceID, property, token.Raw)
		}
		current, ok = m[segment]
		if !ok {
			return nil, errors.UnresolvableProperty(resourceID, property, token.Raw)
		}
	}
	return current, nil
}
