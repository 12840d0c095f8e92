package privileges

import (
	"fmt"
	"sort"
	"strings"
)

// Privilege tokens known to ILog.
const (
	// Admin grants full control and implies every other privilege.
	Admin = "ILOG_ADMIN"
	// EnterAdminPanel allows entering the admin panel, also during maintenance.
	EnterAdminPanel = "ENTER_ADMIN_PANEL"
	// EnterAccountPanel allows entering the account panel; granted on activation.
	EnterAccountPanel = "ENTER_ACCOUNT_PANEL"
)

// Definition describes a privilege token.
type Definition struct {
	Name    string   // Token stored in the privileges table.
	Label   string   // Human readable description.
	Implies []string // Tokens implicitly granted with this one.
}

// Names returns every known token in registry order.
func Names() []string {
	out := make([]string, 0, len(definitions))
	for _, def := range definitions {
		out = append(out, def.Name)
	}
	return out
}

// Get returns the definition for name.
func Get(name string) (Definition, bool) {
	def, ok := definitionMap[name]
	return def, ok
}

// List returns the definitions sorted by label with Admin last.
func List() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name == Admin {
			return false
		}
		if out[j].Name == Admin {
			return true
		}
		return strings.ToLower(out[i].Label) < strings.ToLower(out[j].Label)
	})
	return out
}

// Normalize trims, de-duplicates, and sorts privilege names.
func Normalize(names []string) []string {
	if len(names) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(names))
	normalized := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.ToUpper(strings.TrimSpace(name))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	sort.Strings(normalized)
	return normalized
}

// Validate checks that every name is a known privilege.
func Validate(names []string) error {
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := definitionMap[trimmed]; !ok {
			return fmt.Errorf("invalid privilege: %s", trimmed)
		}
	}
	return nil
}

// definitions is the ordered list of privilege definitions.
var definitions = []Definition{
	{Name: EnterAdminPanel, Label: "can enter admin panel"},
	{Name: EnterAccountPanel, Label: "can enter account panel"},
	{Name: Admin, Label: "ILog administrator", Implies: []string{EnterAdminPanel, EnterAccountPanel}},
}

// definitionMap provides fast lookup for privilege definitions.
var definitionMap = func() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		out[def.Name] = def
	}
	return out
}()
