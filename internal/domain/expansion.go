package domain

// Expansion tracks which listed countries have their details shown. Entries
// are keyed by country name and toggle independently of one another.
// It is not safe for concurrent use.
type Expansion struct {
	expanded map[string]bool
}

func NewExpansion() *Expansion {
	return &Expansion{expanded: make(map[string]bool)}
}

// Toggle flips the entry and returns its new state.
func (e *Expansion) Toggle(name string) bool {
	e.expanded[name] = !e.expanded[name]
	return e.expanded[name]
}

func (e *Expansion) IsExpanded(name string) bool {
	return e.expanded[name]
}
