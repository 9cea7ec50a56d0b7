package models

// InvariantError reports a violation of one of the data-model invariants
// (e.g. creator hierarchy, carousel bookkeeping).
type InvariantError string

func (e InvariantError) Error() string { return string(e) }
