// Package planner compiles a GraphQL selection into a single SQL SELECT.
// It walks the selection tree against a schema.Registry, allocates one table
// alias per (type, path) occurrence, LEFT JOINs every selected relationship,
// and renders the statement with identifiers double-quoted.
package planner
