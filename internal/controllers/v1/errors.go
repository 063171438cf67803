package v1

import (
	"errors"
	"net/http"

	"github.com/familos/backend/internal/closing"
	"github.com/familos/backend/internal/ledger"
	"github.com/familos/backend/internal/models"
	"github.com/familos/backend/internal/processor"
)

type httpError struct {
	Error string `json:"error" example:"the specified resource ID is not a valid UUID"`
}

// status returns the appropriate HTTP status for an error.
//
// Integrity errors map to 500: they report a broken ledger invariant, not
// bad input, and retrying the request can not fix them. Contention maps to
// 409 so callers know to recompute their proposal and retry.
func status(err error) int {
	if errors.Is(err, models.ErrGeneral) || errors.Is(err, models.ErrIntegrity) {
		return http.StatusInternalServerError
	}

	if errors.Is(err, models.ErrResourceNotFound) {
		return http.StatusNotFound
	}

	if errors.Is(err, ledger.ErrContention) {
		return http.StatusConflict
	}

	if errors.Is(err, processor.ErrAlreadyReversed) {
		return http.StatusGone
	}

	if errors.Is(err, closing.ErrPeriodAlreadyClosed) {
		return http.StatusBadRequest
	}

	return http.StatusBadRequest
}

var (
	errStrategyInvalid         = errors.New("the specified distribution strategy is invalid")
	errPeriodNotSet            = errors.New("the periodId parameter must be set")
	errExpenseNotSet           = errors.New("the expenseId parameter must be set")
	errAvailableAtLeastInvalid = errors.New("the availableAtLeast parameter must be a decimal number")
)
