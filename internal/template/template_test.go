package template

import (
	"testing"

	"github.com/jonlambert/deliver/internal/host"
)

func TestRenderSubstitutesContext(t *testing.T) {
	ctx := NewContext(
		host.Host{Address: "web1.example.com", User: "deploy", Port: 22},
		"myapp", "master", "systemd",
	)

	tests := []struct {
		name    string
		command string
		want    string
	}{
		{
			name:    "plain command passes through",
			command: "uptime",
			want:    "uptime",
		},
		{
			name:    "host and user",
			command: "echo {{.User}}@{{.Host}}",
			want:    "echo deploy@web1.example.com",
		},
		{
			name:    "app branch supervisor",
			command: "deploy {{.App}} {{.Branch}} via {{.Supervisor}}",
			want:    "deploy myapp master via systemd",
		},
		{
			name:    "hostShort helper",
			command: "echo {{hostShort .Host}}",
			want:    "echo web1",
		},
		{
			name:    "title helper",
			command: "echo {{title .App}}",
			want:    "echo Myapp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.command, ctx)
			if err != nil {
				t.Fatalf("Render error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderRejectsInvalidTemplate(t *testing.T) {
	_, err := Render("echo {{.App", Context{App: "x"})
	if err == nil {
		t.Fatal("Render accepted an unterminated template")
	}
}

func TestIsTemplate(t *testing.T) {
	if IsTemplate("uptime") {
		t.Error("plain command reported as template")
	}
	if !IsTemplate("echo {{.Host}}") {
		t.Error("template syntax not detected")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("echo {{.Host}}"); err != nil {
		t.Errorf("Validate rejected a valid template: %v", err)
	}
	if err := Validate("echo {{bogusfunc}}"); err == nil {
		t.Error("Validate accepted an unknown function")
	}
}
