// pkg/registry/registry_test.go
package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistry_Defaults(t *testing.T) {
	reg, err := LoadRegistry("")
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	idx := reg.Index()
	for _, event := range []string{
		"application.created", "application.status_changed", "payment.submitted",
		"payment.verified", "payment.rejected", "payment.duplicate", "payment.fraud_attempt",
	} {
		assert.Contains(t, idx, event)
	}
	assert.NotEmpty(t, idx["payment.fraud_attempt"].AdminAlert)
}

func TestLoadRegistry_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"templates":[{"event":"payment.verified","subject":"ok","body":"done"}]}`), 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, reg.Templates, 1)

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		reg     TemplateRegistry
		wantErr string
	}{
		{"empty", TemplateRegistry{}, "no templates"},
		{"missing event", TemplateRegistry{Templates: []Template{{Subject: "s", Body: "b"}}}, "event"},
		{"duplicate", TemplateRegistry{Templates: []Template{
			{Event: "a", Subject: "s", Body: "b"}, {Event: "a", Subject: "s", Body: "b"},
		}}, "duplicate"},
		{"missing body", TemplateRegistry{Templates: []Template{{Event: "a", Subject: "s"}}}, "body"},
		{"valid", TemplateRegistry{Templates: []Template{{Event: "a", Subject: "s", Body: "b"}}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRender(t *testing.T) {
	got := Render("Code {{code}} for KES {{amount}}{{missing}}.", map[string]interface{}{
		"code":   "QHG31YRWPF",
		"amount": int64(500),
		"nil":    nil,
	})
	assert.Equal(t, "Code QHG31YRWPF for KES 500.", got)

	assert.Equal(t, "unterminated {{tail", Render("unterminated {{tail", nil))
}
