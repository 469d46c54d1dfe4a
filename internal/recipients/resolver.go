package recipients

import (
	"rostercal/internal/models"
	"strings"
)

// Table maps a roster name to one or more addresses.
type Table map[string][]string

// Resolver maps assignee names to invite recipients.
type Resolver struct {
	table Table
	owner string
}

// NewResolver creates a Resolver. A nil table behaves as empty and an empty
// owner disables the owner address.
func NewResolver(table Table, owner string) *Resolver {
	if table == nil {
		table = Table{}
	}
	return &Resolver{table: table, owner: strings.TrimSpace(owner)}
}

// Resolve returns the addresses for name followed by the owner address.
// Lookup is exact and case-sensitive; an unknown name yields only the owner.
func (r *Resolver) Resolve(name string) models.RecipientSet {
	var set models.RecipientSet
	for _, addr := range r.table[strings.TrimSpace(name)] {
		set = set.Add(addr)
	}
	return set.Add(r.owner)
}

// Known reports whether name has at least one address in the table.
func (r *Resolver) Known(name string) bool {
	return len(r.table[strings.TrimSpace(name)]) > 0
}
