// Package processor implements the payment processor.
//
// A payment attempt either commits completely, recording a payment record
// and consuming contribution capacity, or is rejected without side effects.
// Reversing a committed record restores exactly the capacity it consumed.
package processor

import (
	"errors"
	"fmt"
	"time"

	"github.com/familos/backend/internal/distribution"
	"github.com/familos/backend/internal/ledger"
	"github.com/familos/backend/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrAlreadyReversed reports a reversal of a record that was reversed
	// before. The ledger is not touched a second time.
	ErrAlreadyReversed = errors.New("the payment record was already reversed")
)

// Processor commits and reverses payments against the allocation ledger.
type Processor struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

// New returns a Processor using db and the given ledger.
func New(db *gorm.DB, l *ledger.Ledger) *Processor {
	return &Processor{
		db:     db,
		ledger: l,
	}
}

// Commit pays an expense from pooled contributions according to proposal.
//
// The proposal is re-validated against the live ledger state, protecting
// against balances that changed since it was computed. The capacity of every
// share is then reserved all or nothing, the payment record is created and
// the expense marked paid.
//
// A non-nil id makes the commit idempotent: when a payment record with this
// id already exists no work is done and the existing record is returned, so
// a retried commit can not double-apply.
func (p *Processor) Commit(id uuid.UUID, expenseID uuid.UUID, amount decimal.Decimal, issuer string, note string, proposal distribution.Proposal) (models.PaymentRecord, error) {
	if existing, done, err := p.existing(id); done || err != nil {
		return existing, err
	}

	var expense models.Expense
	err := p.db.First(&expense, "id = ?", expenseID).Error
	if err != nil {
		return models.PaymentRecord{}, err
	}

	// The period lock excludes a concurrent close of the period. Once
	// reservations begin the commit runs to completion, success or full
	// rollback, before yielding the lock.
	unlock, err := p.ledger.LockPeriod(expense.PeriodID)
	if err != nil {
		return models.PaymentRecord{}, err
	}
	defer unlock()

	// The paid flag is only trustworthy under the lock, a concurrent
	// commit may have paid the expense since the read above.
	err = p.db.First(&expense, "id = ?", expenseID).Error
	if err != nil {
		return models.PaymentRecord{}, err
	}

	if expense.Paid {
		return models.PaymentRecord{}, models.ErrExpenseAlreadyPaid
	}

	sources, err := p.ledger.Sources(expense.PeriodID)
	if err != nil {
		return models.PaymentRecord{}, err
	}

	err = distribution.Validate(proposal, amount, sources)
	if err != nil {
		return models.PaymentRecord{}, err
	}

	err = p.ledger.Allocate(proposal.Shares)
	if err != nil {
		return models.PaymentRecord{}, err
	}

	record, err := p.record(id, expense, amount, issuer, note, proposal.Shares)
	if err != nil {
		// Return the reserved capacity, the commit did not happen
		if rbErr := p.ledger.Deallocate(proposal.Shares); rbErr != nil {
			log.Error().Err(rbErr).Str("expense", expenseID.String()).Msg("rollback after failed commit")
			return models.PaymentRecord{}, rbErr
		}
		return models.PaymentRecord{}, err
	}

	return record, nil
}

// CommitDirect pays an expense without pooled funds. No contribution
// capacity is involved; the record carries no allocation entries.
func (p *Processor) CommitDirect(id uuid.UUID, expenseID uuid.UUID, amount decimal.Decimal, issuer string, note string) (models.PaymentRecord, error) {
	if existing, done, err := p.existing(id); done || err != nil {
		return existing, err
	}

	var expense models.Expense
	err := p.db.First(&expense, "id = ?", expenseID).Error
	if err != nil {
		return models.PaymentRecord{}, err
	}

	unlock, err := p.ledger.LockPeriod(expense.PeriodID)
	if err != nil {
		return models.PaymentRecord{}, err
	}
	defer unlock()

	err = p.db.First(&expense, "id = ?", expenseID).Error
	if err != nil {
		return models.PaymentRecord{}, err
	}

	if expense.Paid {
		return models.PaymentRecord{}, models.ErrExpenseAlreadyPaid
	}

	return p.record(id, expense, amount, issuer, note, nil)
}

// Reverse undoes a committed payment: every allocation entry's capacity is
// released, the record is deleted and the expense's paid flag cleared.
//
// Reversing an already reversed record is a no-op reporting
// ErrAlreadyReversed. A release that fails is an integrity fault: the
// reversal is aborted and the ledger left untouched, never forced negative.
func (p *Processor) Reverse(id uuid.UUID) error {
	var record models.PaymentRecord
	err := p.db.Unscoped().Preload("Entries").First(&record, "id = ?", id).Error
	if err != nil {
		return err
	}

	unlock, err := p.ledger.LockPeriod(record.PeriodID)
	if err != nil {
		return err
	}
	defer unlock()

	// Re-read under the lock so a reversal racing with another reversal
	// of the same record reports ErrAlreadyReversed instead of touching
	// the ledger twice.
	err = p.db.Unscoped().Preload("Entries").First(&record, "id = ?", id).Error
	if err != nil {
		return err
	}

	if record.DeletedAt != nil && record.DeletedAt.Valid {
		return ErrAlreadyReversed
	}

	shares := make([]distribution.Share, 0, len(record.Entries))
	for _, entry := range record.Entries {
		shares = append(shares, distribution.Share{
			ContributionID: entry.ContributionID,
			Contributor:    entry.Contributor,
			Amount:         entry.Amount,
		})
	}

	var expense models.Expense
	err = p.db.First(&expense, "id = ?", record.ExpenseID).Error
	if err != nil {
		return fmt.Errorf("%w: the expense of payment record %s: %s", models.ErrIntegrity, record.ID, err)
	}

	err = p.ledger.Deallocate(shares)
	if err != nil {
		return err
	}

	err = p.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Delete(&record).Error
		if err != nil {
			return err
		}

		return tx.Model(&expense).Update("paid", false).Error
	})
	if err != nil {
		// Take the capacity again so the aborted reversal has no effect
		if rbErr := p.ledger.Allocate(shares); rbErr != nil {
			return fmt.Errorf("%w: restoring allocations after failed reversal: %s", models.ErrIntegrity, rbErr)
		}
		return err
	}

	return nil
}

// existing implements commit idempotence: a commit retried with the id of a
// payment record that already exists, reversed or not, is a no-op.
func (p *Processor) existing(id uuid.UUID) (models.PaymentRecord, bool, error) {
	if id == uuid.Nil {
		return models.PaymentRecord{}, false, nil
	}

	var record models.PaymentRecord
	err := p.db.Unscoped().Preload("Entries").First(&record, "id = ?", id).Error
	if err == nil {
		return record, true, nil
	}

	if errors.Is(err, models.ErrResourceNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		return models.PaymentRecord{}, false, nil
	}

	return models.PaymentRecord{}, false, err
}

// record creates the payment record and marks the expense paid in a single
// database transaction.
func (p *Processor) record(id uuid.UUID, expense models.Expense, amount decimal.Decimal, issuer string, note string, shares []distribution.Share) (models.PaymentRecord, error) {
	entries := make([]models.AllocationEntry, 0, len(shares))
	for _, share := range shares {
		entries = append(entries, models.AllocationEntry{
			ContributionID: share.ContributionID,
			Contributor:    share.Contributor,
			Amount:         share.Amount,
		})
	}

	record := models.PaymentRecord{
		DefaultModel: models.DefaultModel{ID: id},
		PeriodID:     expense.PeriodID,
		ExpenseID:    expense.ID,
		Amount:       amount,
		Issuer:       issuer,
		Note:         note,
		Date:         time.Now().In(time.UTC),
		Entries:      entries,
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Create(&record).Error
		if err != nil {
			return err
		}

		return tx.Model(&expense).Update("paid", true).Error
	})
	if err != nil {
		return models.PaymentRecord{}, err
	}

	return record, nil
}
