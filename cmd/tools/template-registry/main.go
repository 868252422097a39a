// cmd/tools/template-registry/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"internship-portal/pkg/registry"
)

const defaultPath = "configs/notification-templates.json"

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	renderCmd := flag.NewFlagSet("render", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)

	addPath := addCmd.String("path", defaultPath, "Path to registry file")
	event := addCmd.String("event", "", "Event type (e.g., payment.verified)")
	subject := addCmd.String("subject", "", "Email subject")
	body := addCmd.String("body", "", "Email body")
	sms := addCmd.String("sms", "", "SMS text (optional)")
	adminAlert := addCmd.String("adminAlert", "", "Admin alert text (optional)")
	description := addCmd.String("description", "", "Description")

	updatePath := updateCmd.String("path", defaultPath, "Path to registry file")
	eventUpdate := updateCmd.String("event", "", "Event type to update")
	field := updateCmd.String("field", "", "Field to update (subject, body, sms, adminAlert, description)")
	value := updateCmd.String("value", "", "New value for the field")

	validatePath := validateCmd.String("path", "", "Path to registry file (empty for built-in templates)")
	listPath := listCmd.String("path", "", "Path to registry file (empty for built-in templates)")

	renderPath := renderCmd.String("path", "", "Path to registry file (empty for built-in templates)")
	renderEvent := renderCmd.String("event", "", "Event type to render")
	renderVars := renderCmd.String("vars", "", "Comma separated key=value pairs")

	exportPath := exportCmd.String("path", defaultPath, "Destination file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *event == "" || *subject == "" || *body == "" {
			fmt.Println("Error: event, subject, and body are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		err = addTemplate(*addPath, registry.Template{
			Event: *event, Subject: *subject, Body: *body, SMS: *sms, AdminAlert: *adminAlert, Description: *description,
		})
		if err == nil {
			fmt.Printf("Added template: %s\n", *event)
		}

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *eventUpdate == "" || *field == "" {
			fmt.Println("Error: event and field are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err = updateTemplate(*updatePath, *eventUpdate, *field, *value)
		if err == nil {
			fmt.Printf("Updated template %s, field %s\n", *eventUpdate, *field)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		err = validateRegistry(*validatePath)

	case "list":
		listCmd.Parse(os.Args[2:])
		err = listTemplates(*listPath)

	case "render":
		renderCmd.Parse(os.Args[2:])
		err = renderTemplate(*renderPath, *renderEvent, *renderVars)

	case "export":
		exportCmd.Parse(os.Args[2:])
		err = exportDefaults(*exportPath)
		if err == nil {
			fmt.Printf("Built-in templates written to %s\n", *exportPath)
		}

	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func addTemplate(path string, tmpl registry.Template) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		// start a new file from the built-in templates
		if reg, err = registry.LoadRegistry(""); err != nil {
			return err
		}
	}

	for _, existing := range reg.Templates {
		if existing.Event == tmpl.Event {
			return fmt.Errorf("template for event %s already exists", tmpl.Event)
		}
	}
	reg.Templates = append(reg.Templates, tmpl)
	return saveRegistry(reg, path)
}

func updateTemplate(path, event, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	for i := range reg.Templates {
		if reg.Templates[i].Event != event {
			continue
		}
		t := &reg.Templates[i]
		switch field {
		case "subject":
			t.Subject = value
		case "body":
			t.Body = value
		case "sms":
			t.SMS = value
		case "adminAlert":
			t.AdminAlert = value
		case "description":
			t.Description = value
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		return saveRegistry(reg, path)
	}
	return fmt.Errorf("template for event %s not found", event)
}

func validateRegistry(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	fmt.Printf("Registry validation passed. Found %d templates.\n", len(reg.Templates))
	return nil
}

func listTemplates(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	templates := append([]registry.Template(nil), reg.Templates...)
	sort.Slice(templates, func(i, j int) bool { return templates[i].Event < templates[j].Event })
	for _, t := range templates {
		channels := []string{"email"}
		if t.SMS != "" {
			channels = append(channels, "sms")
		}
		if t.AdminAlert != "" {
			channels = append(channels, "admin")
		}
		fmt.Printf("%-28s %-18s %s\n", t.Event, strings.Join(channels, ","), t.Subject)
	}
	return nil
}

func renderTemplate(path, event, vars string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	t, ok := reg.Index()[event]
	if !ok {
		return fmt.Errorf("template for event %s not found", event)
	}

	data := map[string]interface{}{}
	for _, pair := range strings.Split(vars, ",") {
		if k, v, ok := strings.Cut(pair, "="); ok {
			data[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	fmt.Printf("Subject: %s\n\n%s\n", registry.Render(t.Subject, data), registry.Render(t.Body, data))
	if t.SMS != "" {
		fmt.Printf("\nSMS: %s\n", registry.Render(t.SMS, data))
	}
	if t.AdminAlert != "" {
		fmt.Printf("\nAdmin alert: %s\n", registry.Render(t.AdminAlert, data))
	}
	return nil
}

func exportDefaults(path string) error {
	reg, err := registry.LoadRegistry("")
	if err != nil {
		return err
	}
	return saveRegistry(reg, path)
}

// saveRegistry validates and writes the registry to path.
func saveRegistry(reg *registry.TemplateRegistry, path string) error {
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid registry: %w", err)
	}
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: template-registry <command> [flags]

Commands:
  list      List notification templates and their channels
  validate  Validate a registry file (or the built-in templates)
  render    Render one template with sample variables
  export    Write the built-in templates to a file for editing
  add       Add a template for a new event
  update    Update one field of an existing template
  help      Show this help message

Examples:
  template-registry list
  template-registry render -event payment.verified -vars "recipientName=Wanjiru,opportunityTitle=Backend Intern"
  template-registry export -path configs/notification-templates.json
  template-registry update -path configs/notification-templates.json -event payment.rejected -field sms -value "Payment {{transactionCode}} was rejected."
  template-registry validate -path configs/notification-templates.json

Use 'template-registry <command> -h' for more information about a command.
` + "\n")
}
