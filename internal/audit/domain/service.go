package domain

import "context"

type Service interface {
	// AuditLog records an action. Failures are logged, never propagated to
	// the business operation that emitted the entry.
	AuditLog(ctx context.Context, action, targetType, targetID string, metadata map[string]any)
}
