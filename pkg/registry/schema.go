// pkg/registry/schema.go
package registry

// TemplateRegistry is the on-disk catalogue of notification templates.
type TemplateRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Templates   []Template `json:"templates"`
}

// Template renders one event type. Placeholders use {{name}} and resolve
// against the notification variables; unknown placeholders render empty.
type Template struct {
	Event   string `json:"event"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	// SMS is optional. Events without it never produce a text message.
	SMS         string `json:"sms,omitempty"`
	AdminAlert  string `json:"adminAlert,omitempty"`
	Description string `json:"description,omitempty"`
}
