package database

import (
	"context"
)

type contextKey string

const scopeContextKey contextKey = "db_scope"

// SetScope stores a database scope in the context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey, scope)
}

// GetScope retrieves the database scope from the context.
// Returns nil and false if no scope is present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey).(*Scope)
	return scope, ok && scope != nil
}
