package inventory

import (
	"strings"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// WastagePolicy limits how much of an item may be written off as wastage
type WastagePolicy struct {
	Allowed           bool            `gorm:"column:wastage_allowed;not null" json:"allowed"`
	MaxWastagePercent decimal.Decimal `gorm:"column:max_wastage_percent;type:decimal(7,4);not null" json:"max_wastage_percent"`
}

// Validate checks the policy bounds
func (p WastagePolicy) Validate() error {
	if p.MaxWastagePercent.IsNegative() {
		return shared.NewValidationError("max wastage percent cannot be negative")
	}
	if p.MaxWastagePercent.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewValidationError("max wastage percent cannot exceed 100")
	}
	return nil
}

// Item is a stock-keeping material
type Item struct {
	shared.BaseEntity
	Code          string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name          string          `gorm:"type:varchar(200);not null"`
	Unit          string          `gorm:"type:varchar(20);not null"`
	CostPrice     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	WastagePolicy WastagePolicy   `gorm:"embedded"`
}

// TableName returns the table name for GORM
func (Item) TableName() string {
	return "items"
}

// NewItem creates a new item
func NewItem(code, name, unit string, costPrice, unitPrice decimal.Decimal, policy WastagePolicy) (*Item, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewValidationError("item code is required")
	}
	item := &Item{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
	}
	if err := item.UpdateDetails(name, unit); err != nil {
		return nil, err
	}
	if err := item.UpdatePrices(costPrice, unitPrice); err != nil {
		return nil, err
	}
	if err := item.SetWastagePolicy(policy); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateDetails changes the descriptive fields
func (i *Item) UpdateDetails(name, unit string) error {
	name = strings.TrimSpace(name)
	unit = strings.TrimSpace(unit)
	if name == "" {
		return shared.NewValidationError("item name is required")
	}
	if unit == "" {
		return shared.NewValidationError("item unit is required")
	}
	i.Name = name
	i.Unit = unit
	i.Touch()
	return nil
}

// UpdatePrices changes the prices stamped onto future batches.
// Existing batches keep the prices they were received at.
func (i *Item) UpdatePrices(costPrice, unitPrice decimal.Decimal) error {
	if costPrice.IsNegative() || unitPrice.IsNegative() {
		return shared.NewValidationError("item prices cannot be negative")
	}
	i.CostPrice = costPrice
	i.UnitPrice = unitPrice
	i.Touch()
	return nil
}

// SetWastagePolicy replaces the wastage policy
func (i *Item) SetWastagePolicy(policy WastagePolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	i.WastagePolicy = policy
	i.Touch()
	return nil
}
