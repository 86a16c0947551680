package graph

import (
	"regexp"
	"strings"
)

// Token is a ${{ resource.attribute }} reference embedded in a property value.
type Token struct {
	// Resource is the identifier of the referenced node.
	Resource string

	// Attribute is the referenced output attribute of that node.
	Attribute string

	// Raw is the full token text as it appears in the property value,
	// including the ${{ }} delimiters.
	Raw string
}

var tokenPattern = regexp.MustCompile(`\$\{\{\s*([^}\s]+)\s*\}\}`)

// ExtractTokens finds ${{ resource.attribute }} references in a string value.
// Malformed references (no attribute part) are ignored.
func ExtractTokens(value string) []Token {
	matches := tokenPattern.FindAllStringSubmatch(value, -1)

	var tokens []Token
	for _, match := range matches {
		ref := strings.TrimSpace(match[1])
		idx := strings.Index(ref, ".")
		if idx <= 0 || idx == len(ref)-1 {
			continue
		}
		tokens = append(tokens, Token{
			Resource:  ref[:idx],
			Attribute: ref[idx+1:],
			Raw:       match[0],
		})
	}
	return tokens
}

// PropertyTokens collects the reference tokens embedded in a property value,
// descending into nested maps and slices.
func PropertyTokens(value interface{}) []Token {
	switch v := value.(type) {
	case string:
		return ExtractTokens(v)
	case []interface{}:
		var tokens []Token
		for _, item := range v {
			tokens = append(tokens, PropertyTokens(item)...)
		}
		return tokens
	case map[string]interface{}:
		var tokens []Token
		for _, item := range v {
			tokens = append(tokens, PropertyTokens(item)...)
		}
		return tokens
	default:
		return nil
	}
}
