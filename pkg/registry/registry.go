// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed defaults/templates.json
var defaultTemplates []byte

// LoadRegistry reads a registry file. An empty path yields the built-in
// templates.
func LoadRegistry(path string) (*TemplateRegistry, error) {
	data := defaultTemplates
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}
	return Parse(data)
}

func Parse(data []byte) (*TemplateRegistry, error) {
	var reg TemplateRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode template registry: %w", err)
	}
	return &reg, nil
}

// Validate reports the first structural problem in the registry.
func (r *TemplateRegistry) Validate() error {
	if len(r.Templates) == 0 {
		return fmt.Errorf("registry contains no templates")
	}
	seen := make(map[string]bool, len(r.Templates))
	for _, t := range r.Templates {
		if t.Event == "" {
			return fmt.Errorf("template missing required field: event")
		}
		if seen[t.Event] {
			return fmt.Errorf("duplicate template for event: %s", t.Event)
		}
		seen[t.Event] = true
		if strings.TrimSpace(t.Subject) == "" {
			return fmt.Errorf("template %s missing required field: subject", t.Event)
		}
		if strings.TrimSpace(t.Body) == "" {
			return fmt.Errorf("template %s missing required field: body", t.Event)
		}
	}
	return nil
}

// Index maps templates by event type.
func (r *TemplateRegistry) Index() map[string]Template {
	out := make(map[string]Template, len(r.Templates))
	for _, t := range r.Templates {
		out[t.Event] = t
	}
	return out
}

// Render substitutes {{key}} placeholders from data and strips any that
// remain unresolved.
func Render(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		switch x := v.(type) {
		case string:
			value = x
		case nil:
		default:
			value = fmt.Sprintf("%v", x)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}
	return result
}
