package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Contribution is a sum of money a family member pledges into a period's
// shared fund. Payments consume its capacity through the allocation ledger;
// Consumed is never written from anywhere else.
type Contribution struct {
	DefaultModel
	Period      Period    `json:"-"`
	PeriodID    uuid.UUID `gorm:"index"`
	Contributor string
	Total       decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	Consumed    decimal.Decimal `gorm:"type:DECIMAL(20,8);check:consumed_within_total,consumed >= 0 AND consumed <= total"`
	Note        string
}

var (
	ErrContributorNotSet            = errors.New("the contributor for a contribution must be set")
	ErrContributionTotalNotPositive = errors.New("the contribution total must be larger than zero")
	ErrContributionInUse            = errors.New("the contribution has allocations and can not be deleted, reverse the payments consuming it first")
	ErrContributionOverConsumed     = errors.New("the consumed amount must be between zero and the contribution total")
)

// Available returns the capacity that is still unallocated.
func (c Contribution) Available() decimal.Decimal {
	return c.Total.Sub(c.Consumed)
}

// HasAvailable reports whether any capacity is left.
func (c Contribution) HasAvailable() bool {
	return c.Available().IsPositive()
}

// Utilization returns the consumed fraction of the total, in [0, 1].
func (c Contribution) Utilization() decimal.Decimal {
	if c.Total.IsZero() {
		return decimal.Zero
	}
	return c.Consumed.Div(c.Total)
}

func (c *Contribution) BeforeSave(_ *gorm.DB) error {
	c.Contributor = strings.TrimSpace(c.Contributor)
	c.Note = strings.TrimSpace(c.Note)

	if c.Contributor == "" {
		return ErrContributorNotSet
	}

	if !c.Total.IsPositive() {
		return ErrContributionTotalNotPositive
	}

	if c.Consumed.IsNegative() || c.Consumed.GreaterThan(c.Total) {
		return fmt.Errorf("%w: %s", ErrIntegrity, ErrContributionOverConsumed)
	}

	return nil
}

func (c *Contribution) BeforeCreate(tx *gorm.DB) error {
	_ = c.DefaultModel.BeforeCreate(tx)

	return checkPeriodOpen(tx, c.PeriodID)
}

func (c *Contribution) BeforeUpdate(tx *gorm.DB) error {
	var current Contribution
	err := tx.Session(&gorm.Session{NewDB: true}).First(&current, "id = ?", c.ID).Error
	if err != nil {
		return err
	}

	return checkPeriodOpen(tx, current.PeriodID)
}

// BeforeDelete rejects deleting a contribution that still has allocations.
// A partially consumed contribution can only go away after every payment
// consuming it has been reversed.
func (c *Contribution) BeforeDelete(tx *gorm.DB) error {
	var current Contribution
	err := tx.Session(&gorm.Session{NewDB: true}).First(&current, "id = ?", c.ID).Error
	if err != nil {
		return err
	}

	err = checkPeriodOpen(tx, current.PeriodID)
	if err != nil {
		return err
	}

	if !current.Consumed.IsZero() {
		return ErrContributionInUse
	}

	return nil
}

// Returns all contributions on this instance for export
func (Contribution) Export() (json.RawMessage, error) {
	var contributions []Contribution
	err := DB.Unscoped().Where(&Contribution{}).Find(&contributions).Error
	if err != nil {
		return nil, err
	}

	j, err := json.Marshal(&contributions)
	if err != nil {
		return json.RawMessage{}, err
	}
	return json.RawMessage(j), nil
}
