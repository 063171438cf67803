// Package ledger implements the contribution allocation ledger.
//
// The ledger is the only component that mutates a contribution's consumed
// amount. Reservations and releases on a contribution are serialized through
// a per-contribution lock, so two concurrent reservations can not both
// observe a stale available balance. Operations spanning multiple
// contributions take the involved locks in a fixed global order.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/familos/backend/internal/distribution"
	"github.com/familos/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrAmountNotPositive   = errors.New("the amount must be larger than zero")
	ErrInsufficientBalance = errors.New("the contribution does not have enough available balance")

	// ErrInvalidRelease signals an attempt to release more capacity than a
	// contribution has consumed. This is a data integrity fault, never
	// silently clamped.
	ErrInvalidRelease = fmt.Errorf("%w: the release exceeds the consumed amount", models.ErrIntegrity)

	// ErrContention is returned when a lock can not be acquired within the
	// bounded wait. Callers may retry with a freshly computed proposal.
	ErrContention = errors.New("the resource is locked by another operation, recompute the proposal and retry")
)

// DefaultLockWait bounds how long a ledger operation waits for a
// contribution or period lock.
const DefaultLockWait = 3 * time.Second

// Ledger serializes all capacity changes on contributions.
type Ledger struct {
	db       *gorm.DB
	locks    *lockTable
	lockWait time.Duration
}

// New returns a Ledger operating on db.
func New(db *gorm.DB) *Ledger {
	return &Ledger{
		db:       db,
		locks:    newLockTable(),
		lockWait: DefaultLockWait,
	}
}

// SetLockWait overrides the bounded wait for lock acquisition.
func (l *Ledger) SetLockWait(wait time.Duration) {
	l.lockWait = wait
}

// Reserve atomically consumes amount from the contribution's capacity.
func (l *Ledger) Reserve(contributionID uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}

	if err := l.locks.acquire(contributionID, l.lockWait); err != nil {
		return err
	}
	defer l.locks.release(contributionID)

	return l.reserveHeld(contributionID, amount)
}

// Release atomically returns amount to the contribution's capacity.
func (l *Ledger) Release(contributionID uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}

	if err := l.locks.acquire(contributionID, l.lockWait); err != nil {
		return err
	}
	defer l.locks.release(contributionID)

	return l.releaseHeld(contributionID, amount)
}

// Allocate reserves the capacity of every share, all or nothing: when one
// reservation fails, every reservation already made in this call is released
// again before the error is returned.
func (l *Ledger) Allocate(shares []distribution.Share) error {
	for _, share := range shares {
		if !share.Amount.IsPositive() {
			return ErrAmountNotPositive
		}
	}

	ids := make([]uuid.UUID, 0, len(shares))
	for _, share := range shares {
		ids = append(ids, share.ContributionID)
	}

	unlock, err := l.locks.acquireAll(ids, l.lockWait)
	if err != nil {
		return err
	}
	defer unlock()

	for i, share := range shares {
		err := l.reserveHeld(share.ContributionID, share.Amount)
		if err == nil {
			continue
		}

		// Roll the already reserved shares back. A rollback failure means
		// the ledger invariant is broken, surface it as such.
		for _, reserved := range shares[:i] {
			if rbErr := l.releaseHeld(reserved.ContributionID, reserved.Amount); rbErr != nil {
				return fmt.Errorf("%w: rollback of contribution %s failed: %s", models.ErrIntegrity, reserved.ContributionID, rbErr)
			}
		}

		return err
	}

	return nil
}

// Deallocate releases the capacity of every share, all or nothing. It is the
// inverse of Allocate. When one release fails the shares already released in
// this call are reserved again, so an aborted deallocation leaves every
// consumed amount untouched.
func (l *Ledger) Deallocate(shares []distribution.Share) error {
	ids := make([]uuid.UUID, 0, len(shares))
	for _, share := range shares {
		ids = append(ids, share.ContributionID)
	}

	unlock, err := l.locks.acquireAll(ids, l.lockWait)
	if err != nil {
		return err
	}
	defer unlock()

	for i, share := range shares {
		err := l.releaseHeld(share.ContributionID, share.Amount)
		if err == nil {
			continue
		}

		for _, released := range shares[:i] {
			if rbErr := l.reserveHeld(released.ContributionID, released.Amount); rbErr != nil {
				return fmt.Errorf("%w: rollback of contribution %s failed: %s", models.ErrIntegrity, released.ContributionID, rbErr)
			}
		}

		return err
	}

	return nil
}

// reserveHeld consumes capacity. The caller holds the contribution's lock.
func (l *Ledger) reserveHeld(contributionID uuid.UUID, amount decimal.Decimal) error {
	var contribution models.Contribution
	err := l.db.First(&contribution, "id = ?", contributionID).Error
	if err != nil {
		return err
	}

	if amount.GreaterThan(contribution.Available()) {
		return fmt.Errorf("%w: %s available, %s requested", ErrInsufficientBalance, contribution.Available(), amount)
	}

	contribution.Consumed = contribution.Consumed.Add(amount)
	return l.db.Save(&contribution).Error
}

// releaseHeld returns capacity. The caller holds the contribution's lock.
func (l *Ledger) releaseHeld(contributionID uuid.UUID, amount decimal.Decimal) error {
	var contribution models.Contribution
	err := l.db.First(&contribution, "id = ?", contributionID).Error
	if err != nil {
		return err
	}

	if amount.GreaterThan(contribution.Consumed) {
		return fmt.Errorf("%w (contribution %s: %s consumed, %s released)", ErrInvalidRelease, contributionID, contribution.Consumed, amount)
	}

	contribution.Consumed = contribution.Consumed.Sub(amount)
	return l.db.Save(&contribution).Error
}

// AvailableBalance returns the sum of the available capacity over all
// contributions of the period. Callers use it to short-circuit allocation
// attempts that can not possibly succeed.
func (l *Ledger) AvailableBalance(periodID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal

	err := l.db.Model(&models.Contribution{}).
		Where(&models.Contribution{PeriodID: periodID}).
		Select("SUM(total - consumed)").
		Row().
		Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing available balance for period %s failed: %w", periodID, err)
	}

	return sum.Decimal, nil
}

// ContributionsCoveringAtLeast returns the period's contributions whose
// available capacity covers amount on its own, largest first.
func (l *Ledger) ContributionsCoveringAtLeast(periodID uuid.UUID, amount decimal.Decimal) ([]models.Contribution, error) {
	var contributions []models.Contribution

	err := l.db.
		Where(&models.Contribution{PeriodID: periodID}).
		Where("total - consumed >= ?", amount).
		Order("(total - consumed) DESC").
		Find(&contributions).Error
	if err != nil {
		return nil, err
	}

	return contributions, nil
}

// Sources returns the period's contributions with available capacity as
// inputs for the distribution strategies, largest available first.
func (l *Ledger) Sources(periodID uuid.UUID) ([]distribution.Source, error) {
	var contributions []models.Contribution

	err := l.db.
		Where(&models.Contribution{PeriodID: periodID}).
		Where("total - consumed > 0").
		Order("(total - consumed) DESC").
		Find(&contributions).Error
	if err != nil {
		return nil, err
	}

	sources := make([]distribution.Source, 0, len(contributions))
	for _, contribution := range contributions {
		sources = append(sources, distribution.Source{
			ID:          contribution.ID,
			Contributor: contribution.Contributor,
			Available:   contribution.Available(),
		})
	}

	return sources, nil
}

// LockPeriod takes the period-wide lock. It excludes concurrent commits,
// reversals and the close operation on the same period. The returned
// function releases the lock.
func (l *Ledger) LockPeriod(periodID uuid.UUID) (func(), error) {
	if err := l.locks.acquire(periodID, l.lockWait); err != nil {
		return nil, err
	}

	return func() {
		l.locks.release(periodID)
	}, nil
}
