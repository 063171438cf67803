package v1_test

import (
	"fmt"
	"net/http"
	"testing"

	v1 "github.com/familos/backend/internal/controllers/v1"
	"github.com/familos/backend/test"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExpensesOptions verifies that OPTIONS requests are handled correctly.
func (suite *TestSuiteStandard) TestExpensesOptions() {
	tests := []struct {
		name   string
		id     string // path at the expenses endpoint to test
		status int    // Expected HTTP status code
	}{
		{"No Expense with this ID", uuid.New().String(), http.StatusNotFound},
		{"Not a valid UUID", "NotParseableAsUUID", http.StatusBadRequest},
		{"Expense exists", createTestExpense(suite.T(), v1.ExpenseEditable{}).Data.ID.String(), http.StatusNoContent},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			path := fmt.Sprintf("%s/%s", "http://example.com/v1/expenses", tt.id)
			r := test.Request(t, http.MethodOptions, path, "")
			test.AssertHTTPStatus(t, &r, tt.status)

			if tt.status == http.StatusNoContent {
				assert.Equal(t, "GET, PATCH, DELETE", r.Header().Get("allow"))
			}
		})
	}
}

func (suite *TestSuiteStandard) TestExpensesCreate() {
	expense := createTestExpense(suite.T(), v1.ExpenseEditable{
		Name:        "Electricity",
		Category:    "Utilities",
		Amount:      decimal.NewFromFloat(84.12),
		Responsible: "Ben",
	})

	data := expense.Data
	require.NotNil(suite.T(), data)
	assert.Equal(suite.T(), "Electricity", data.Name)
	assert.Equal(suite.T(), "Utilities", data.Category)
	assert.False(suite.T(), data.Paid)
}

func (suite *TestSuiteStandard) TestExpensesCreateInvalid() {
	period := createTestPeriod(suite.T(), v1.PeriodEditable{})

	tests := []struct {
		name     string
		editable v1.ExpenseEditable
		status   int
	}{
		{"No name", v1.ExpenseEditable{PeriodID: toParam(period.Data.ID), Amount: decimal.NewFromFloat(10)}, http.StatusBadRequest},
		{"Amount zero", v1.ExpenseEditable{PeriodID: toParam(period.Data.ID), Name: "Rent"}, http.StatusBadRequest},
		{"Unknown period", v1.ExpenseEditable{PeriodID: toParam(uuid.New()), Name: "Rent", Amount: decimal.NewFromFloat(10)}, http.StatusNotFound},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			body := []v1.ExpenseEditable{tt.editable}
			r := test.Request(t, http.MethodPost, "http://example.com/v1/expenses", body)
			test.AssertHTTPStatus(t, &r, tt.status)
		})
	}
}

func (suite *TestSuiteStandard) TestExpensesFilterCategory() {
	period := createTestPeriod(suite.T(), v1.PeriodEditable{})

	expense := createTestExpense(suite.T(), v1.ExpenseEditable{
		PeriodID: toParam(period.Data.ID),
		Category: "Utilities",
	})
	createTestExpense(suite.T(), v1.ExpenseEditable{
		PeriodID: toParam(period.Data.ID),
		Category: "Groceries",
	})

	r := test.Request(suite.T(), http.MethodGet, "http://example.com/v1/expenses?category=Utilities", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.ExpenseListResponse
	test.DecodeResponse(suite.T(), &r, &response)

	require.Len(suite.T(), response.Data, 1)
	assert.Equal(suite.T(), expense.Data.ID, response.Data[0].ID)
}

func (suite *TestSuiteStandard) TestExpensesFilterPaid() {
	period := createTestPeriod(suite.T(), v1.PeriodEditable{})

	paid := createTestExpense(suite.T(), v1.ExpenseEditable{
		PeriodID: toParam(period.Data.ID),
		Amount:   decimal.NewFromFloat(100),
	})
	createTestExpense(suite.T(), v1.ExpenseEditable{
		PeriodID: toParam(period.Data.ID),
		Amount:   decimal.NewFromFloat(100),
	})

	createTestPayment(suite.T(), v1.PaymentCreate{
		ExpenseID: toParam(paid.Data.ID),
		Amount:    decimal.NewFromFloat(100),
	})

	r := test.Request(suite.T(), http.MethodGet, "http://example.com/v1/expenses?paid=true", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.ExpenseListResponse
	test.DecodeResponse(suite.T(), &r, &response)

	require.Len(suite.T(), response.Data, 1)
	assert.Equal(suite.T(), paid.Data.ID, response.Data[0].ID)
	assert.True(suite.T(), response.Data[0].Paid)
}

func (suite *TestSuiteStandard) TestExpensesGetSingle() {
	expense := createTestExpense(suite.T(), v1.ExpenseEditable{})

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{"Existing Expense", expense.Data.ID.String(), http.StatusOK},
		{"Unknown ID", uuid.New().String(), http.StatusNotFound},
		{"Invalid ID", "not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			r := test.Request(t, http.MethodGet, fmt.Sprintf("http://example.com/v1/expenses/%s", tt.id), "")
			test.AssertHTTPStatus(t, &r, tt.status)
		})
	}
}

func (suite *TestSuiteStandard) TestExpensesUpdate() {
	expense := createTestExpense(suite.T(), v1.ExpenseEditable{Name: "Electricity"})

	r := test.Request(suite.T(), http.MethodPatch, resourceURL("expenses", expense.Data.ID), map[string]any{
		"name":   "Electricity and gas",
		"amount": decimal.NewFromFloat(120),
	})
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	r = test.Request(suite.T(), http.MethodGet, resourceURL("expenses", expense.Data.ID), "")
	var response v1.ExpenseResponse
	test.DecodeResponse(suite.T(), &r, &response)
	assert.Equal(suite.T(), "Electricity and gas", response.Data.Name)
	assert.True(suite.T(), response.Data.Amount.Equal(decimal.NewFromFloat(120)))
}

func (suite *TestSuiteStandard) TestExpensesDelete() {
	expense := createTestExpense(suite.T(), v1.ExpenseEditable{})

	r := test.Request(suite.T(), http.MethodDelete, resourceURL("expenses", expense.Data.ID), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNoContent)

	r = test.Request(suite.T(), http.MethodGet, resourceURL("expenses", expense.Data.ID), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNotFound)
}
