package stack

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/stackline-io/stackctl/pkg/errors"
)

// Parser parses stack configuration files.
type Parser struct {
	parser    *hclparse.Parser
	variables map[string]interface{}
}

// NewParser creates a parser. Variables provided with WithVariable override
// declared defaults.
func NewParser() *Parser {
	return &Parser{
		parser:    hclparse.NewParser(),
		variables: map[string]interface{}{},
	}
}

// WithVariable sets an input variable value.
func (p *Parser) WithVariable(name string, value interface{}) *Parser {
	p.variables[name] = value
	return p
}

// ParseFile parses a single configuration file.
func (p *Parser) ParseFile(path string) (*Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, "failed to read "+path, err)
	}
	return p.ParseBytes(data, path)
}

// ParseDir parses every .hcl file in a directory and merges the results into
// a single stack. Files are processed in lexical order.
func (p *Parser) ParseDir(dir string) (*Stack, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.hcl"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, "failed to scan "+dir, err)
	}
	if len(matches) == 0 {
		return nil, errors.New(errors.ErrCodeParse, "no .hcl files in "+dir)
	}
	sort.Strings(matches)

	merged := &Stack{}
	for _, path := range matches {
		s, err := p.ParseFile(path)
		if err != nil {
			return nil, err
		}
		if s.Name != "" {
			merged.Name = s.Name
		}
		merged.Variables = append(merged.Variables, s.Variables...)
		merged.Resources = append(merged.Resources, s.Resources...)
	}
	return merged, nil
}

// ParseBytes parses raw configuration content.
func (p *Parser) ParseBytes(data []byte, filename string) (*Stack, error) {
	// ${{ id.attr }} reference tokens must survive parsing as literal
	// strings, so the opener is escaped before HCL sees it.
	file, diags := p.parser.ParseHCL(escapeTokens(data), filename)
	if diags.HasErrors() {
		return nil, errors.New(errors.ErrCodeParse, diags.Error())
	}

	bodySchema := &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "stack"},
		},
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "variable", LabelNames: []string{"name"}},
			{Type: "resource", LabelNames: []string{"type", "id"}},
		},
	}

	content, diags := file.Body.Content(bodySchema)
	if diags.HasErrors() {
		return nil, errors.New(errors.ErrCodeParse, diags.Error())
	}

	s := &Stack{}

	// Variables first so resource properties can reference them.
	evalCtx := &hcl.EvalContext{Variables: map[string]cty.Value{}}
	for _, block := range content.Blocks.OfType("variable") {
		variable, err := p.parseVariable(block, evalCtx)
		if err != nil {
			return nil, err
		}
		s.Variables = append(s.Variables, *variable)
	}
	p.bindVariables(s.Variables, evalCtx)

	if attr, ok := content.Attributes["stack"]; ok {
		val, valDiags := attr.Expr.Value(evalCtx)
		if valDiags.HasErrors() {
			return nil, errors.New(errors.ErrCodeParse, valDiags.Error())
		}
		s.Name = val.AsString()
	}

	for _, block := range content.Blocks.OfType("resource") {
		resource, err := p.parseResource(block, evalCtx)
		if err != nil {
			return nil, err
		}
		s.Resources = append(s.Resources, *resource)
	}

	return s, nil
}

func (p *Parser) parseVariable(block *hcl.Block, evalCtx *hcl.EvalContext) (*Variable, error) {
	schema := &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "type"},
			{Name: "description"},
			{Name: "default"},
			{Name: "sensitive"},
		},
	}

	content, diags := block.Body.Content(schema)
	if diags.HasErrors() {
		return nil, errors.New(errors.ErrCodeParse, diags.Error())
	}

	variable := &Variable{Name: block.Labels[0]}

	if attr, ok := content.Attributes["type"]; ok {
		variable.Type = hcl.ExprAsKeyword(attr.Expr)
	}
	if attr, ok := content.Attributes["description"]; ok {
		val, valDiags := attr.Expr.Value(evalCtx)
		if valDiags.HasErrors() {
			return nil, errors.New(errors.ErrCodeParse, valDiags.Error())
		}
		variable.Description = val.AsString()
	}
	if attr, ok := content.Attributes["default"]; ok {
		val, valDiags := attr.Expr.Value(evalCtx)
		if valDiags.HasErrors() {
			return nil, errors.New(errors.ErrCodeParse, valDiags.Error())
		}
		variable.Default = ctyToNative(val)
	}
	if attr, ok := content.Attributes["sensitive"]; ok {
		val, valDiags := attr.Expr.Value(evalCtx)
		if valDiags.HasErrors() {
			return nil, errors.New(errors.ErrCodeParse, valDiags.Error())
		}
		variable.Sensitive = val.True()
	}

	return variable, nil
}

// bindVariables exposes variable values under var.<name>. Explicitly
// provided values win over declared defaults; a variable with neither is an
// error surfaced at reference time by HCL.
func (p *Parser) bindVariables(variables []Variable, evalCtx *hcl.EvalContext) {
	values := map[string]cty.Value{}
	for _, variable := range variables {
		if variable.Default != nil {
			values[variable.Name] = nativeToCty(variable.Default)
		}
	}
	for name, value := range p.variables {
		values[name] = nativeToCty(value)
	}
	if len(values) > 0 {
		evalCtx.Variables["var"] = cty.ObjectVal(values)
	}
}

func (p *Parser) parseResource(block *hcl.Block, evalCtx *hcl.EvalContext) (*Resource, error) {
	resource := &Resource{
		Type:       block.Labels[0],
		ID:         block.Labels[1],
		Properties: map[string]interface{}{},
	}

	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, errors.New(errors.ErrCodeParse, diags.Error())
	}

	for name, attr := range attrs {
		val, valDiags := attr.Expr.Value(evalCtx)
		if valDiags.HasErrors() {
			return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf(
				"resource %q attribute %q: %s", resource.ID, name, valDiags.Error()))
		}

		if name == "depends_on" {
			deps, err := stringList(val)
			if err != nil {
				return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf(
					"resource %q: depends_on must be a list of resource ids", resource.ID))
			}
			resource.DependsOn = deps
			continue
		}
		resource.Properties[name] = ctyToNative(val)
	}

	return resource, nil
}

func stringList(val cty.Value) ([]string, error) {
	native := ctyToNative(val)
	items, ok := native.([]interface{})
	if !ok {
		return nil, fmt.Errorf("not a list")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("not a string")
		}
		out = append(out, s)
	}
	return out, nil
}

// escapeTokens rewrites the ${{ opener to its HCL-escaped form so reference
// tokens pass through evaluation as literal text. Already escaped openers
// are left untouched.
func escapeTokens(src []byte) []byte {
	const placeholder = "\x00stackctl-escaped\x00"
	s := string(src)
	s = strings.ReplaceAll(s, "$${{", placeholder)
	s = strings.ReplaceAll(s, "${{", "$${{")
	s = strings.ReplaceAll(s, placeholder, "$${{")
	return []byte(s)
}
