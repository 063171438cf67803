package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentRecord is the immutable record of money spent against an expense.
//
// A record funded from pooled contributions itemizes the consumed capacity in
// its allocation entries; a record without entries was paid directly. Records
// are never updated after creation. Reversal soft-deletes the record so that
// a second reversal of the same id can be detected.
type PaymentRecord struct {
	DefaultModel
	Period    Period          `json:"-"`
	PeriodID  uuid.UUID       `gorm:"index"`
	Expense   Expense         `json:"-"`
	ExpenseID uuid.UUID       `gorm:"index"`
	Amount    decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	Issuer    string          // Family member who issued the payment
	Date      time.Time
	Note      string
	Entries   []AllocationEntry `gorm:"foreignKey:PaymentRecordID"`
}

// AllocationEntry records how much of one contribution's capacity a payment
// record consumed. Contributor is denormalized for display.
type AllocationEntry struct {
	DefaultModel
	PaymentRecordID uuid.UUID    `gorm:"index"`
	Contribution    Contribution `json:"-"`
	ContributionID  uuid.UUID    `gorm:"index"`
	Contributor     string
	Amount          decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
}

var (
	ErrPaymentAmountNotPositive = errors.New("the payment amount must be larger than zero")
	ErrPaymentIssuerNotSet      = errors.New("the issuer for a payment must be set")
	ErrEntryAmountNotPositive   = errors.New("every allocation entry amount must be larger than zero")
	ErrEntriesSumMismatch       = errors.New("the allocation entries must sum to the payment amount")
)

// EntriesSum returns the total amount allocated from contributions.
func (p PaymentRecord) EntriesSum() decimal.Decimal {
	sum := decimal.Zero
	for _, entry := range p.Entries {
		sum = sum.Add(entry.Amount)
	}
	return sum
}

// Direct reports whether the payment was made without pooled funds.
func (p PaymentRecord) Direct() bool {
	return len(p.Entries) == 0
}

func (p *PaymentRecord) BeforeSave(_ *gorm.DB) error {
	p.Issuer = strings.TrimSpace(p.Issuer)
	p.Note = strings.TrimSpace(p.Note)

	if p.Issuer == "" {
		return ErrPaymentIssuerNotSet
	}

	if !p.Amount.IsPositive() {
		return ErrPaymentAmountNotPositive
	}

	if p.Date.IsZero() {
		p.Date = time.Now().In(time.UTC)
	} else {
		p.Date = p.Date.In(time.UTC)
	}

	for _, entry := range p.Entries {
		if !entry.Amount.IsPositive() {
			return ErrEntryAmountNotPositive
		}
	}

	if !p.Direct() && !p.EntriesSum().Equal(p.Amount) {
		return ErrEntriesSumMismatch
	}

	return nil
}

func (p *PaymentRecord) BeforeCreate(tx *gorm.DB) error {
	_ = p.DefaultModel.BeforeCreate(tx)

	err := checkPeriodOpen(tx, p.PeriodID)
	if err != nil {
		return err
	}

	// The paid expense must exist and belong to the same period
	var expense Expense
	err = tx.Session(&gorm.Session{NewDB: true}).First(&expense, "id = ?", p.ExpenseID).Error
	if err != nil {
		return err
	}

	return nil
}

func (p *PaymentRecord) AfterFind(tx *gorm.DB) (err error) {
	_ = p.DefaultModel.AfterFind(tx)

	p.Date = p.Date.In(time.UTC)
	return nil
}

func (p *PaymentRecord) BeforeDelete(tx *gorm.DB) error {
	var current PaymentRecord
	err := tx.Session(&gorm.Session{NewDB: true}).First(&current, "id = ?", p.ID).Error
	if err != nil {
		return err
	}

	return checkPeriodOpen(tx, current.PeriodID)
}

// Returns all payment records on this instance for export
func (PaymentRecord) Export() (json.RawMessage, error) {
	var records []PaymentRecord
	err := DB.Unscoped().Preload("Entries").Where(&PaymentRecord{}).Find(&records).Error
	if err != nil {
		return nil, err
	}

	j, err := json.Marshal(&records)
	if err != nil {
		return json.RawMessage{}, err
	}
	return json.RawMessage(j), nil
}
