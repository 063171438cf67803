package models

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Expense is a debt the household needs to cover within a period.
//
// The Paid flag is owned by the payment processor: it is set on a successful
// commit and cleared when the paying record is reversed.
type Expense struct {
	DefaultModel
	Period      Period    `json:"-"`
	PeriodID    uuid.UUID `gorm:"index"`
	Name        string
	Category    string
	Amount      decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	Paid        bool            `gorm:"default:false"`
	Responsible string          // Family member responsible for this expense
	Note        string
}

var (
	ErrExpenseNameNotSet        = errors.New("the name for an expense must be set")
	ErrExpenseAmountNotPositive = errors.New("the expense amount must be larger than zero")
	ErrExpenseAlreadyPaid       = errors.New("the expense is already paid")
)

func (e *Expense) BeforeSave(_ *gorm.DB) error {
	e.Name = strings.TrimSpace(e.Name)
	e.Category = strings.TrimSpace(e.Category)
	e.Responsible = strings.TrimSpace(e.Responsible)
	e.Note = strings.TrimSpace(e.Note)

	if e.Name == "" {
		return ErrExpenseNameNotSet
	}

	if !e.Amount.IsPositive() {
		return ErrExpenseAmountNotPositive
	}

	return nil
}

func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	_ = e.DefaultModel.BeforeCreate(tx)

	return checkPeriodOpen(tx, e.PeriodID)
}

func (e *Expense) BeforeUpdate(tx *gorm.DB) error {
	var current Expense
	err := tx.Session(&gorm.Session{NewDB: true}).First(&current, "id = ?", e.ID).Error
	if err != nil {
		return err
	}

	return checkPeriodOpen(tx, current.PeriodID)
}

func (e *Expense) BeforeDelete(tx *gorm.DB) error {
	var current Expense
	err := tx.Session(&gorm.Session{NewDB: true}).First(&current, "id = ?", e.ID).Error
	if err != nil {
		return err
	}

	return checkPeriodOpen(tx, current.PeriodID)
}

// Returns all expenses on this instance for export
func (Expense) Export() (json.RawMessage, error) {
	var expenses []Expense
	err := DB.Unscoped().Where(&Expense{}).Find(&expenses).Error
	if err != nil {
		return nil, err
	}

	j, err := json.Marshal(&expenses)
	if err != nil {
		return json.RawMessage{}, err
	}
	return json.RawMessage(j), nil
}
