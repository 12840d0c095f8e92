package privileges

import (
	"sort"

	"github.com/UfSoft/ILog-OLD/internal/models"
)

// Set is an effective set of privilege names.
type Set map[string]struct{}

// NewSet builds a set from names and expands implied privileges.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, name := range names {
		s.add(name)
	}
	return s
}

// add inserts name and whatever it implies.
func (s Set) add(name string) {
	if _, ok := s[name]; ok {
		return
	}
	s[name] = struct{}{}
	if def, ok := definitionMap[name]; ok {
		for _, implied := range def.Implies {
			s.add(implied)
		}
	}
}

// Contains reports whether name is in the set.
func (s Set) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the sorted members.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has evaluates expr against the set.
func (s Set) Has(expr Expr) bool {
	if expr == nil {
		return true
	}
	return expr.Eval(s)
}

// Effective returns the union of the user's direct privileges and those of
// every group the user belongs to. Privileges and Groups.Privileges must be loaded.
func Effective(user *models.User) Set {
	s := Set{}
	if user == nil || !user.IsSomebody() {
		return s
	}
	for _, p := range user.Privileges {
		s.add(p.Name)
	}
	for _, group := range user.Groups {
		for _, p := range group.Privileges {
			s.add(p.Name)
		}
	}
	return s
}
