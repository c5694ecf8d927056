// Package filter implements the Filter Evaluator component (spec §4.6):
// a stateless wrapper over a pre-compiled packet filter program. A zero
// value / empty program means "accept all."
package filter

// Filter evaluates one frame at a time. Execute returns zero if the
// packet is rejected (filtered out), non-zero if it is accepted.
type Filter interface {
	Execute([]byte) int
}

// FilterFunc adapts a plain function to the Filter interface.
type FilterFunc func([]byte) int

// Execute calls f.
func (f FilterFunc) Execute(b []byte) int {
	return f(b)
}

// Accept is a Filter that accepts every packet, used when no filter is
// configured for a worker (spec §4.6 "a zero-length program means
// accept all").
var Accept Filter = FilterFunc(func([]byte) int { return 1 })
