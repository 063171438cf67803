package v1_test

import (
	"fmt"
	"net/http"
	"testing"

	v1 "github.com/familos/backend/internal/controllers/v1"
	fam_uuid "github.com/familos/backend/internal/uuid"
	"github.com/familos/backend/test"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pooledPayment sets up a period with one contribution and one expense and
// commits a payment for the expense from the contribution.
func (suite *TestSuiteStandard) pooledPayment(total, amount decimal.Decimal) (v1.ContributionResponse, v1.ExpenseResponse, v1.PaymentResponse) {
	period := createTestPeriod(suite.T(), v1.PeriodEditable{})
	contribution := createTestContribution(suite.T(), v1.ContributionEditable{
		PeriodID: toParam(period.Data.ID),
		Total:    total,
	})
	expense := createTestExpense(suite.T(), v1.ExpenseEditable{
		PeriodID: toParam(period.Data.ID),
		Amount:   amount,
	})

	payment := createTestPayment(suite.T(), v1.PaymentCreate{
		ExpenseID: toParam(expense.Data.ID),
		Amount:    amount,
		Shares: []v1.ShareEditable{
			{ContributionID: toParam(contribution.Data.ID), Amount: amount},
		},
	})

	return contribution, expense, payment
}

func (suite *TestSuiteStandard) TestPaymentsCommit() {
	contribution, expense, payment := suite.pooledPayment(decimal.NewFromFloat(500), decimal.NewFromFloat(180))

	data := payment.Data
	require.NotNil(suite.T(), data)
	assert.False(suite.T(), data.Direct)
	assert.False(suite.T(), data.Reversed)
	require.Len(suite.T(), data.Entries, 1)
	assert.Equal(suite.T(), contribution.Data.ID, data.Entries[0].ContributionID.UUID)

	// The expense is now paid and the contribution's capacity consumed
	r := test.Request(suite.T(), http.MethodGet, resourceURL("expenses", expense.Data.ID), "")
	var expenseResponse v1.ExpenseResponse
	test.DecodeResponse(suite.T(), &r, &expenseResponse)
	assert.True(suite.T(), expenseResponse.Data.Paid)

	r = test.Request(suite.T(), http.MethodGet, resourceURL("contributions", contribution.Data.ID), "")
	var contributionResponse v1.ContributionResponse
	test.DecodeResponse(suite.T(), &r, &contributionResponse)
	assert.True(suite.T(), contributionResponse.Data.Consumed.Equal(decimal.NewFromFloat(180)))
	assert.True(suite.T(), contributionResponse.Data.Available.Equal(decimal.NewFromFloat(320)))
}

func (suite *TestSuiteStandard) TestPaymentsCommitDirect() {
	expense := createTestExpense(suite.T(), v1.ExpenseEditable{
		Amount: decimal.NewFromFloat(45),
	})

	payment := createTestPayment(suite.T(), v1.PaymentCreate{
		ExpenseID: toParam(expense.Data.ID),
		Amount:    decimal.NewFromFloat(45),
		Issuer:    "Ben",
		Note:      "paid in cash",
	})

	data := payment.Data
	require.NotNil(suite.T(), data)
	assert.True(suite.T(), data.Direct)
	assert.Empty(suite.T(), data.Entries)
	assert.Equal(suite.T(), "Ben", data.Issuer)
}

func (suite *TestSuiteStandard) TestPaymentsCommitIdempotent() {
	period := createTestPeriod(suite.T(), v1.PeriodEditable{})
	contribution := createTestContribution(suite.T(), v1.ContributionEditable{
		PeriodID: toParam(period.Data.ID),
		Total:    decimal.NewFromFloat(500),
	})
	expense := createTestExpense(suite.T(), v1.ExpenseEditable{
		PeriodID: toParam(period.Data.ID),
		Amount:   decimal.NewFromFloat(100),
	})

	create := v1.PaymentCreate{
		ID:        fam_uuid.New(),
		ExpenseID: toParam(expense.Data.ID),
		Amount:    decimal.NewFromFloat(100),
		Issuer:    "Ana",
		Shares: []v1.ShareEditable{
			{ContributionID: toParam(contribution.Data.ID), Amount: decimal.NewFromFloat(100)},
		},
	}

	first := createTestPayment(suite.T(), create)
	second := createTestPayment(suite.T(), create)

	assert.Equal(suite.T(), first.Data.ID, second.Data.ID)

	// The retry must not spend twice
	r := test.Request(suite.T(), http.MethodGet, resourceURL("contributions", contribution.Data.ID), "")
	var contributionResponse v1.ContributionResponse
	test.DecodeResponse(suite.T(), &r, &contributionResponse)
	assert.True(suite.T(), contributionResponse.Data.Consumed.Equal(decimal.NewFromFloat(100)))
}

func (suite *TestSuiteStandard) TestPaymentsCommitInvalid() {
	period := createTestPeriod(suite.T(), v1.PeriodEditable{})
	contribution := createTestContribution(suite.T(), v1.ContributionEditable{
		PeriodID: toParam(period.Data.ID),
		Total:    decimal.NewFromFloat(100),
	})
	expense := createTestExpense(suite.T(), v1.ExpenseEditable{
		PeriodID: toParam(period.Data.ID),
		Amount:   decimal.NewFromFloat(300),
	})

	tests := []struct {
		name   string
		create v1.PaymentCreate
		status int
	}{
		{
			"Expense not set",
			v1.PaymentCreate{Amount: decimal.NewFromFloat(10), Issuer: "Ana"},
			http.StatusBadRequest,
		},
		{
			"Unknown expense",
			v1.PaymentCreate{ExpenseID: toParam(uuid.New()), Amount: decimal.NewFromFloat(10), Issuer: "Ana"},
			http.StatusNotFound,
		},
		{
			"Share exceeds available balance",
			v1.PaymentCreate{
				ExpenseID: toParam(expense.Data.ID),
				Amount:    decimal.NewFromFloat(300),
				Issuer:    "Ana",
				Shares: []v1.ShareEditable{
					{ContributionID: toParam(contribution.Data.ID), Amount: decimal.NewFromFloat(300)},
				},
			},
			http.StatusBadRequest,
		},
		{
			"Shares do not sum to the amount",
			v1.PaymentCreate{
				ExpenseID: toParam(expense.Data.ID),
				Amount:    decimal.NewFromFloat(300),
				Issuer:    "Ana",
				Shares: []v1.ShareEditable{
					{ContributionID: toParam(contribution.Data.ID), Amount: decimal.NewFromFloat(50)},
				},
			},
			http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt
		suite.T().Run(tt.name, func(t *testing.T) {
			r := test.Request(t, http.MethodPost, "http://example.com/v1/payments", tt.create)
			test.AssertHTTPStatus(t, &r, tt.status)
		})
	}
}

func (suite *TestSuiteStandard) TestPaymentsReverse() {
	contribution, expense, payment := suite.pooledPayment(decimal.NewFromFloat(500), decimal.NewFromFloat(180))

	r := test.Request(suite.T(), http.MethodDelete, resourceURL("payments", payment.Data.ID), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNoContent)

	// The reversal restores the consumed capacity and clears the paid flag
	r = test.Request(suite.T(), http.MethodGet, resourceURL("contributions", contribution.Data.ID), "")
	var contributionResponse v1.ContributionResponse
	test.DecodeResponse(suite.T(), &r, &contributionResponse)
	assert.True(suite.T(), contributionResponse.Data.Consumed.IsZero())

	r = test.Request(suite.T(), http.MethodGet, resourceURL("expenses", expense.Data.ID), "")
	var expenseResponse v1.ExpenseResponse
	test.DecodeResponse(suite.T(), &r, &expenseResponse)
	assert.False(suite.T(), expenseResponse.Data.Paid)

	// The record stays readable for the audit trail
	r = test.Request(suite.T(), http.MethodGet, resourceURL("payments", payment.Data.ID), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var paymentResponse v1.PaymentResponse
	test.DecodeResponse(suite.T(), &r, &paymentResponse)
	assert.True(suite.T(), paymentResponse.Data.Reversed)

	// Reversing twice is rejected
	r = test.Request(suite.T(), http.MethodDelete, resourceURL("payments", payment.Data.ID), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusGone)
}

func (suite *TestSuiteStandard) TestPaymentsReverseUnknown() {
	r := test.Request(suite.T(), http.MethodDelete, resourceURL("payments", uuid.New()), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNotFound)
}

func (suite *TestSuiteStandard) TestPaymentsGetList() {
	_, expense, payment := suite.pooledPayment(decimal.NewFromFloat(500), decimal.NewFromFloat(180))

	r := test.Request(suite.T(), http.MethodGet, "http://example.com/v1/payments", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.PaymentListResponse
	test.DecodeResponse(suite.T(), &r, &response)

	require.Len(suite.T(), response.Data, 1)
	assert.Equal(suite.T(), payment.Data.ID, response.Data[0].ID)

	// Filtering by the expense
	r = test.Request(suite.T(), http.MethodGet, fmt.Sprintf("http://example.com/v1/payments?expense=%s", expense.Data.ID), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)
	test.DecodeResponse(suite.T(), &r, &response)
	assert.Len(suite.T(), response.Data, 1)
}

func (suite *TestSuiteStandard) TestPaymentsGetListReversed() {
	_, _, payment := suite.pooledPayment(decimal.NewFromFloat(500), decimal.NewFromFloat(180))

	r := test.Request(suite.T(), http.MethodDelete, resourceURL("payments", payment.Data.ID), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNoContent)

	// Reversed payments are hidden by default
	r = test.Request(suite.T(), http.MethodGet, "http://example.com/v1/payments", "")
	var response v1.PaymentListResponse
	test.DecodeResponse(suite.T(), &r, &response)
	assert.Empty(suite.T(), response.Data)

	r = test.Request(suite.T(), http.MethodGet, "http://example.com/v1/payments?reversed=true", "")
	test.DecodeResponse(suite.T(), &r, &response)
	require.Len(suite.T(), response.Data, 1)
	assert.True(suite.T(), response.Data[0].Reversed)
}
