package domain

import (
	"github.com/google/uuid"
)

// BuildIdempotencyKey scopes a caller key to its sender; the pair is
// unique across all payments.
func BuildIdempotencyKey(senderID uuid.UUID, key string) string {
	return senderID.String() + ":" + key
}
