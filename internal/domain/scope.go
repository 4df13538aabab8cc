package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ApplicationScope is a named permission unit, unique within its owning
// application.
type ApplicationScope struct {
	ID            uuid.UUID
	ApplicationID uuid.UUID
	Name          string
	CreatedAt     time.Time
}

// Scopes is a scope set keyed by name. Lookup is by name and iteration via
// Names is always sorted, so insertion order never leaks into responses.
type Scopes map[string]ApplicationScope

// NewScopes builds a scope set from individual scopes. Duplicate names
// collapse to the last entry.
func NewScopes(scopes ...ApplicationScope) Scopes {
	set := make(Scopes, len(scopes))
	for _, s := range scopes {
		set[s.Name] = s
	}
	return set
}

// ScopesFromNames builds a scope set carrying names only. Used where the
// scope identity is already established, such as scopes copied onto tokens.
func ScopesFromNames(names ...string) Scopes {
	set := make(Scopes, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		set[n] = ApplicationScope{Name: n}
	}
	return set
}

// Contains reports whether the set holds the named scope.
func (s Scopes) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the scope names in sorted order.
func (s Scopes) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders the set as the space-delimited form used on the wire.
func (s Scopes) String() string {
	return strings.Join(s.Names(), " ")
}
