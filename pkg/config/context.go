package config

import "context"

// contextKey is a type for context keys to avoid collisions
type contextKey string

// managerKey is the context key for the config Manager.
const managerKey contextKey = "config-manager"

// WithManager stores the config manager in the context.
func WithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerKey, m)
}

// ManagerFromContext retrieves the config manager from the context, if any.
func ManagerFromContext(ctx context.Context) (*Manager, bool) {
	m, ok := ctx.Value(managerKey).(*Manager)
	return m, ok
}
