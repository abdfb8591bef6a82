package domain

import (
	"time"

	"github.com/google/uuid"
)

// OwnerType tags the kind of entity a wallet belongs to.
type OwnerType string

const (
	OwnerTypeUserProfile OwnerType = "USER_PROFILE"
	OwnerTypeBranch      OwnerType = "BRANCH"
	OwnerTypeCenter      OwnerType = "CENTER"
	OwnerTypeSystem      OwnerType = "SYSTEM"
)

// SystemOwnerID owns the platform wallet used as counterparty for
// top-ups and external settlements.
var SystemOwnerID = uuid.Nil

func (t OwnerType) Valid() bool {
	switch t {
	case OwnerTypeUserProfile, OwnerTypeBranch, OwnerTypeCenter, OwnerTypeSystem:
		return true
	}
	return false
}

// Owner identifies a wallet holder.
type Owner struct {
	ID   uuid.UUID `json:"id"`
	Type OwnerType `json:"type"`
}

func SystemOwner() Owner {
	return Owner{ID: SystemOwnerID, Type: OwnerTypeSystem}
}

// Wallet holds a spendable balance and the escrowed part of pending payments.
// One wallet exists per (OwnerID, OwnerType).
type Wallet struct {
	ID            uuid.UUID `json:"id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	OwnerType     OwnerType `json:"owner_type"`
	Balance       Money     `json:"balance"`
	LockedBalance Money     `json:"locked_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (w *Wallet) Owner() Owner {
	return Owner{ID: w.OwnerID, Type: w.OwnerType}
}

// Available is what a new payment may reserve. Escrowed funds have already
// left Balance, so nothing is subtracted here.
func (w *Wallet) Available() Money {
	return w.Balance
}

// BookBalance is balance plus escrow: the wallet's total holdings.
func (w *Wallet) BookBalance() Money {
	return w.Balance.Add(w.LockedBalance)
}

func (w *Wallet) IsSystem() bool {
	return w.OwnerType == OwnerTypeSystem
}
