package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cashbox is the physical cash drawer of a branch.
type Cashbox struct {
	ID            uuid.UUID  `json:"id"`
	BranchID      uuid.UUID  `json:"branch_id"`
	Balance       Money      `json:"balance"`
	LastAuditedAt *time.Time `json:"last_audited_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
