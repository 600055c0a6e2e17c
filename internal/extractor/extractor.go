// Package extractor defines the field extraction capability used by the
// enrollment engine. The engine only depends on the Extractor interface, so
// the backing implementation (rule-based, remote model) can be substituted
// without touching the session logic.
package extractor

import (
	"context"

	"github.com/spec-kit/enrollment-service/internal/domain"
)

// Extractor proposes field updates for a single conversation turn. An empty
// field in the result means "no proposal"; implementations never use empty
// strings to request clearing a collected value.
type Extractor interface {
	Extract(ctx context.Context, message string, current domain.CollectedData, step domain.Step) (domain.FieldUpdates, error)
}
