package models

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/familos/backend/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Period is a monthly accounting window. It owns the contributions pledged
// for the month, the expenses to cover and the payment records spending
// against them.
//
// A period closes exactly once. From that point on none of its resources
// may be created, changed or deleted.
type Period struct {
	DefaultModel
	Month          types.Month `gorm:"uniqueIndex"`
	Name           string
	Note           string
	CreatedBy      string          // Identifier of the family member who opened the period
	Closed         bool            `gorm:"default:false"`
	CarriedSurplus decimal.Decimal `gorm:"type:DECIMAL(20,8)"` // Surplus transferred in from the prior period
}

var (
	ErrPeriodMonthNotUnique  = errors.New("a period for this month already exists")
	ErrPeriodClosed          = errors.New("this period is closed and can no longer be changed")
	ErrPeriodMonthNotSet     = errors.New("the month for the period must be set")
	ErrPeriodNegativeCarried = errors.New("the carried surplus can not be negative")
)

func (p *Period) BeforeSave(_ *gorm.DB) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Note = strings.TrimSpace(p.Note)
	p.CreatedBy = strings.TrimSpace(p.CreatedBy)

	if p.Month.IsZero() {
		return ErrPeriodMonthNotSet
	}

	if p.CarriedSurplus.IsNegative() {
		return ErrPeriodNegativeCarried
	}

	return nil
}

// BeforeUpdate makes closing a one-way transition: an already closed
// period rejects every update, including attempts to reopen it.
func (p *Period) BeforeUpdate(tx *gorm.DB) error {
	var current Period
	err := tx.Session(&gorm.Session{NewDB: true}).First(&current, "id = ?", p.ID).Error
	if err != nil {
		return err
	}

	if current.Closed {
		return ErrPeriodClosed
	}

	return nil
}

func (p *Period) BeforeDelete(tx *gorm.DB) error {
	var current Period
	err := tx.Session(&gorm.Session{NewDB: true}).First(&current, "id = ?", p.ID).Error
	if err != nil {
		return err
	}

	if current.Closed {
		return ErrPeriodClosed
	}

	return nil
}

// Successor returns the period for the month directly after this one.
func (p Period) Successor(db *gorm.DB) (Period, error) {
	var successor Period
	err := db.Where("month >= date(?) AND month < date(?)", p.Month.Next(), p.Month.Next().Next()).First(&successor).Error
	return successor, err
}

// checkPeriodOpen returns ErrPeriodClosed if the referenced period is closed.
// All resources owned by a period call this from their gorm hooks so the
// closed-period invariant holds no matter which caller mutates them.
func checkPeriodOpen(tx *gorm.DB, periodID interface{}) error {
	var period Period
	err := tx.Session(&gorm.Session{NewDB: true}).First(&period, "id = ?", periodID).Error
	if err != nil {
		return err
	}

	if period.Closed {
		return ErrPeriodClosed
	}

	return nil
}

// Returns all periods on this instance for export
func (Period) Export() (json.RawMessage, error) {
	var periods []Period
	err := DB.Unscoped().Where(&Period{}).Find(&periods).Error
	if err != nil {
		return nil, err
	}

	j, err := json.Marshal(&periods)
	if err != nil {
		return json.RawMessage{}, err
	}
	return json.RawMessage(j), nil
}
