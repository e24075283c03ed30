package request

import (
	"context"

	"github.com/google/uuid"
)

// SystemPrincipal is the identity scheduled jobs and maintenance tasks run as.
var SystemPrincipal = &Principal{
	ID:          "system",
	Email:       "system@datacore.local",
	DisplayName: "System",
}

// NewSystemState returns a fresh state owned by SystemPrincipal.
func NewSystemState(opts ...ContextOption) *State {
	base := []ContextOption{
		WithRequestID(uuid.NewString()),
		WithUser(SystemPrincipal),
		WithPlatform("system"),
	}
	return NewState(append(base, opts...)...)
}

// NewTestContext returns a background context inside a scope owned by a
// throwaway test user.
func NewTestContext(opts ...ContextOption) context.Context {
	base := []ContextOption{
		WithTraceID("test-trace-" + uuid.NewString()[:8]),
		WithUser(&Principal{
			ID:          uuid.NewString(),
			Email:       "test@example.com",
			DisplayName: "Test User",
		}),
	}
	return Scope(context.Background(), NewState(append(base, opts...)...))
}
