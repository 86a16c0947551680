package plan

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/stackline-io/stackctl/pkg/graph"
)

// PropertyValue is a tagged union: either a concrete value known at synthesis
// time, or a deferred value whose ${{ id.attr }} tokens reference results only
// produced during deployment.
type PropertyValue struct {
	concrete   interface{}
	deferred   interface{}
	isDeferred bool
}

// Concrete wraps a value that is fully known at synthesis time.
func Concrete(value interface{}) PropertyValue {
	return PropertyValue{concrete: normalize(value)}
}

// Deferred wraps a raw value (string or nested structure) containing reference
// tokens to be substituted by the orchestrator as dependencies complete.
func Deferred(raw interface{}) PropertyValue {
	return PropertyValue{deferred: normalize(raw), isDeferred: true}
}

// normalize canonicalizes a value to the shape encoding/json produces when
// decoding into interface{}: all numbers become float64 and collections become
// []interface{} / map[string]interface{}. Plans held in memory therefore
// compare equal to plans read back from a state backend.
func normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case nil, bool, string, float64:
		return v
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case float32:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		return f
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = normalize(item)
		}
		return out
	case []string:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	case map[string]string:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = item
		}
		return out
	default:
		return v
	}
}

// IsDeferred reports whether the value awaits substitution at apply time.
func (v PropertyValue) IsDeferred() bool {
	return v.isDeferred
}

// Value returns the concrete value. Nil for deferred values.
func (v PropertyValue) Value() interface{} {
	return v.concrete
}

// Raw returns the unresolved raw value of a deferred property. Nil for
// concrete values.
func (v PropertyValue) Raw() interface{} {
	return v.deferred
}

// Tokens returns the reference tokens embedded in a deferred value. Empty for
// concrete values.
func (v PropertyValue) Tokens() []graph.Token {
	if !v.isDeferred {
		return nil
	}
	return graph.PropertyTokens(v.deferred)
}

// Equal reports structural equality of two property values.
func (v PropertyValue) Equal(other PropertyValue) bool {
	if v.isDeferred != other.isDeferred {
		return false
	}
	if v.isDeferred {
		return reflect.DeepEqual(v.deferred, other.deferred)
	}
	return reflect.DeepEqual(v.concrete, other.concrete)
}

// String renders the value for human-facing diff output.
func (v PropertyValue) String() string {
	if v.isDeferred {
		return fmt.Sprintf("%v", v.deferred)
	}
	return fmt.Sprintf("%v", v.concrete)
}

type propertyValueJSON struct {
	Concrete interface{} `json:"concrete,omitempty"`
	Deferred interface{} `json:"deferred,omitempty"`
	IsNull   bool        `json:"null,omitempty"`
}

// MarshalJSON encodes the union with an explicit discriminator so that plans
// round-trip without ambiguity between "concrete nil" and "deferred".
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	out := propertyValueJSON{}
	if v.isDeferred {
		out.Deferred = v.deferred
	} else if v.concrete == nil {
		out.IsNull = true
	} else {
		out.Concrete = v.concrete
	}
	return json.Marshal(out)
}

func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	var in propertyValueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Deferred != nil {
		*v = Deferred(in.Deferred)
		return nil
	}
	if in.IsNull {
		*v = Concrete(nil)
		return nil
	}
	*v = Concrete(in.Concrete)
	return nil
}
