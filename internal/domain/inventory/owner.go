package inventory

import (
	"sort"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// OwnerKind identifies what kind of party holds (or gives up) stock
type OwnerKind string

const (
	OwnerKindStore      OwnerKind = "STORE"
	OwnerKindContractor OwnerKind = "CONTRACTOR"
	// OwnerKindSupplier only ever appears as a ledger counterparty
	OwnerKindSupplier OwnerKind = "SUPPLIER"
)

// IsValid checks if the kind is known
func (k OwnerKind) IsValid() bool {
	switch k {
	case OwnerKindStore, OwnerKindContractor, OwnerKindSupplier:
		return true
	}
	return false
}

// CanHoldStock reports whether the kind can own batch-stock rows
func (k OwnerKind) CanHoldStock() bool {
	return k == OwnerKindStore || k == OwnerKindContractor
}

// String returns the string representation
func (k OwnerKind) String() string {
	return string(k)
}

// Owner is a store or contractor holding batch stock
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// StoreOwner returns the owner reference of a store
func StoreOwner(id uuid.UUID) Owner {
	return Owner{Kind: OwnerKindStore, ID: id}
}

// ContractorOwner returns the owner reference of a contractor
func ContractorOwner(id uuid.UUID) Owner {
	return Owner{Kind: OwnerKindContractor, ID: id}
}

// Key is the stable textual identity used for lock ordering
func (o Owner) Key() string {
	return string(o.Kind) + ":" + o.ID.String()
}

// String implements fmt.Stringer
func (o Owner) String() string {
	return o.Key()
}

// Validate checks that the owner can hold stock
func (o Owner) Validate() error {
	if !o.Kind.CanHoldStock() {
		return shared.NewValidationError("owner kind %q cannot hold stock", o.Kind)
	}
	if o.ID == uuid.Nil {
		return shared.NewValidationError("owner id is required")
	}
	return nil
}

// OwnerItemKey scopes the exclusive lock taken before any batch-stock mutation
type OwnerItemKey struct {
	Owner  Owner
	ItemID uuid.UUID
}

// String returns owner key and item id joined by a slash
func (k OwnerItemKey) String() string {
	return k.Owner.Key() + "/" + k.ItemID.String()
}

// SortedLockKeys removes duplicates and orders keys lexically so that
// concurrent multi-owner moves always acquire locks in the same order
func SortedLockKeys(keys ...OwnerItemKey) []OwnerItemKey {
	seen := make(map[string]struct{}, len(keys))
	out := make([]OwnerItemKey, 0, len(keys))
	for _, k := range keys {
		s := k.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}
