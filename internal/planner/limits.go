package planner

// Limits bounds the size of a compiled statement. Zero disables a limit.
type Limits struct {
	// MaxDepth is the deepest table occurrence allowed; the root is depth 1.
	MaxDepth int
	// MaxJoins caps the number of LEFT JOIN clauses.
	MaxJoins int
}

func (l Limits) checkDepth(depth int, field string, path Path) error {
	if l.MaxDepth > 0 && depth > l.MaxDepth {
		return resolutionError(ErrLimitExceeded, field, path, "maximum depth of %d (depth: %d)", l.MaxDepth, depth)
	}
	return nil
}

func (l Limits) checkJoins(joins int, field string, path Path) error {
	if l.MaxJoins > 0 && joins > l.MaxJoins {
		return resolutionError(ErrLimitExceeded, field, path, "maximum join count of %d (joins: %d)", l.MaxJoins, joins)
	}
	return nil
}
