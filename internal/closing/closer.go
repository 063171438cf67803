// Package closing implements the month closing workflow: computing a
// period's surplus, carrying it forward into the next period and marking
// the closed period immutable.
package closing

import (
	"errors"
	"fmt"

	"github.com/familos/backend/internal/ledger"
	"github.com/familos/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrPeriodAlreadyClosed = errors.New("the period is already closed")
)

// Closer closes periods and carries their surplus forward.
type Closer struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

// New returns a Closer using db and the given ledger.
func New(db *gorm.DB, l *ledger.Ledger) *Closer {
	return &Closer{
		db:     db,
		ledger: l,
	}
}

// Result describes a completed close.
type Result struct {
	Period    models.Period   `json:"period"`    // The closed period
	Successor models.Period   `json:"successor"` // The period the surplus was carried into
	Surplus   decimal.Decimal `json:"surplus"`   // Total contributed minus total spent
	// NoSurplus reports that nothing was carried forward because the
	// surplus was zero or negative. The carried amount floors at zero.
	NoSurplus bool `json:"noSurplus"`
}

// ComputeSurplus returns the period's surplus: the sum of all contribution
// totals minus the sum of all payment record amounts, direct and
// contribution-funded alike.
func (c *Closer) ComputeSurplus(periodID uuid.UUID) (decimal.Decimal, error) {
	// Make sure the period exists so a typo'd id errors instead of
	// reporting a zero surplus
	var period models.Period
	err := c.db.First(&period, "id = ?", periodID).Error
	if err != nil {
		return decimal.Zero, err
	}

	var contributed decimal.NullDecimal
	err = c.db.Model(&models.Contribution{}).
		Where(&models.Contribution{PeriodID: periodID}).
		Select("SUM(total)").
		Row().
		Scan(&contributed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing contributions for period %s failed: %w", periodID, err)
	}

	var spent decimal.NullDecimal
	err = c.db.Model(&models.PaymentRecord{}).
		Where(&models.PaymentRecord{PeriodID: periodID}).
		Select("SUM(amount)").
		Row().
		Scan(&spent)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing payments for period %s failed: %w", periodID, err)
	}

	return contributed.Decimal.Sub(spent.Decimal), nil
}

// Close closes the period and transfers its surplus into the successor
// period, creating the successor if it does not exist yet.
//
// The period lock is held for the duration, so no commit, reversal or
// contribution change can interleave with the transition. Closing is
// one-way; closing an already closed period is rejected.
func (c *Closer) Close(periodID uuid.UUID, createdBy string) (Result, error) {
	unlock, err := c.ledger.LockPeriod(periodID)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	var period models.Period
	err = c.db.First(&period, "id = ?", periodID).Error
	if err != nil {
		return Result{}, err
	}

	if period.Closed {
		return Result{}, ErrPeriodAlreadyClosed
	}

	surplus, err := c.ComputeSurplus(periodID)
	if err != nil {
		return Result{}, err
	}

	carried := surplus
	if carried.IsNegative() {
		carried = decimal.Zero
	}

	var successor models.Period
	err = c.db.Transaction(func(tx *gorm.DB) error {
		successor, err = period.Successor(tx)
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, models.ErrResourceNotFound) {
			successor = models.Period{
				Month:          period.Month.Next(),
				Name:           period.Month.Next().String(),
				CreatedBy:      createdBy,
				CarriedSurplus: carried,
			}
			err = tx.Create(&successor).Error
			if err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else {
			err = tx.Model(&successor).Update("carried_surplus", carried).Error
			if err != nil {
				return err
			}
			successor.CarriedSurplus = carried
		}

		return tx.Model(&period).Update("closed", true).Error
	})
	if err != nil {
		return Result{}, err
	}

	period.Closed = true

	return Result{
		Period:    period,
		Successor: successor,
		Surplus:   surplus,
		NoSurplus: !surplus.IsPositive(),
	}, nil
}
