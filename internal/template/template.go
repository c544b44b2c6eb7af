// Package template renders command templates against a host context.
package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jonlambert/deliver/internal/host"
)

// Context provides the data available to command templates.
type Context struct {
	Host       string // Target address
	User       string // Deploy user
	Port       int    // Target port
	App        string // Application name
	Branch     string // Branch being deployed
	Supervisor string // Process supervisor name
}

// NewContext builds a template context for one target host.
func NewContext(h host.Host, app, branch, supervisor string) Context {
	return Context{
		Host:       h.Address,
		User:       h.User,
		Port:       h.Port,
		App:        app,
		Branch:     branch,
		Supervisor: supervisor,
	}
}

// Render renders a command template against the context. Commands without
// template syntax pass through unchanged.
func Render(command string, ctx Context) (string, error) {
	if !IsTemplate(command) {
		return command, nil
	}

	tmpl, err := template.New("command").Funcs(templateFuncs()).Parse(command)
	if err != nil {
		return "", fmt.Errorf("failed to parse command template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to render command template: %w", err)
	}

	return buf.String(), nil
}

// IsTemplate checks if a command string contains template syntax.
func IsTemplate(command string) bool {
	return strings.Contains(command, "{{") && strings.Contains(command, "}}")
}

// Validate parses a template string without executing it.
func Validate(command string) error {
	_, err := template.New("validation").Funcs(templateFuncs()).Parse(command)
	return err
}

// templateFuncs returns the functions available inside command templates.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"upper":   strings.ToUpper,
		"lower":   strings.ToLower,
		"title":   cases.Title(language.English).String,
		"trim":    strings.TrimSpace,
		"replace": strings.ReplaceAll,

		"hostShort": func(h string) string {
			if idx := strings.Index(h, "."); idx != -1 {
				return h[:idx]
			}
			return h
		},

		"hostDomain": func(h string) string {
			if idx := strings.Index(h, "."); idx != -1 {
				return h[idx+1:]
			}
			return ""
		},
	}
}
