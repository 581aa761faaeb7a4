package inventory

import (
	"strings"

	"github.com/fieldops/stockledger/internal/domain/shared"
)

// StoreKind distinguishes the central store from field sub stores
type StoreKind string

const (
	StoreKindMain StoreKind = "MAIN"
	StoreKindSub  StoreKind = "SUB"
)

// IsValid checks if the store kind is valid
func (k StoreKind) IsValid() bool {
	return k == StoreKindMain || k == StoreKindSub
}

// Store is a warehouse location that owns batch stock
type Store struct {
	shared.BaseEntity
	Code string    `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name string    `gorm:"type:varchar(200);not null"`
	Kind StoreKind `gorm:"type:varchar(10);not null;index"`
}

// TableName returns the table name for GORM
func (Store) TableName() string {
	return "stores"
}

// NewStore creates a new store
func NewStore(code, name string, kind StoreKind) (*Store, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" || name == "" {
		return nil, shared.NewValidationError("store code and name are required")
	}
	if !kind.IsValid() {
		return nil, shared.NewValidationError("invalid store kind %q", kind)
	}
	return &Store{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       name,
		Kind:       kind,
	}, nil
}

// IsMain reports whether this is a MAIN store
func (s *Store) IsMain() bool {
	return s.Kind == StoreKindMain
}

// Owner returns the owner reference for this store
func (s *Store) Owner() Owner {
	return StoreOwner(s.ID)
}

// Contractor is an external execution party holding materials in custody
type Contractor struct {
	shared.BaseEntity
	Code   string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name   string `gorm:"type:varchar(200);not null"`
	Active bool   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Contractor) TableName() string {
	return "contractors"
}

// NewContractor creates a new active contractor
func NewContractor(code, name string) (*Contractor, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" || name == "" {
		return nil, shared.NewValidationError("contractor code and name are required")
	}
	return &Contractor{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       name,
		Active:     true,
	}, nil
}

// Owner returns the owner reference for this contractor
func (c *Contractor) Owner() Owner {
	return ContractorOwner(c.ID)
}
