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

// TestContributionsOptions verifies that OPTIONS requests are handled correctly.
func (suite *TestSuiteStandard) TestContributionsOptions() {
	tests := []struct {
		name   string
		id     string // path at the contributions endpoint to test
		status int    // Expected HTTP status code
	}{
		{"No Contribution with this ID", uuid.New().String(), http.StatusNotFound},
		{"Not a valid UUID", "NotParseableAsUUID", http.StatusBadRequest},
		{"Contribution exists", createTestContribution(suite.T(), v1.ContributionEditable{}).Data.ID.String(), http.StatusNoContent},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			path := fmt.Sprintf("%s/%s", "http://example.com/v1/contributions", tt.id)
			r := test.Request(t, http.MethodOptions, path, "")
			test.AssertHTTPStatus(t, &r, tt.status)

			if tt.status == http.StatusNoContent {
				assert.Equal(t, "GET, PATCH, DELETE", r.Header().Get("allow"))
			}
		})
	}
}

func (suite *TestSuiteStandard) TestContributionsCreate() {
	contribution := createTestContribution(suite.T(), v1.ContributionEditable{
		Contributor: "Ana",
		Total:       decimal.NewFromFloat(500),
		Note:        "Salary",
	})

	data := contribution.Data
	require.NotNil(suite.T(), data)
	assert.Equal(suite.T(), "Ana", data.Contributor)
	assert.True(suite.T(), data.Total.Equal(decimal.NewFromFloat(500)))
	assert.True(suite.T(), data.Consumed.IsZero())
	assert.True(suite.T(), data.Available.Equal(decimal.NewFromFloat(500)))
	assert.True(suite.T(), data.Utilization.IsZero())
}

func (suite *TestSuiteStandard) TestContributionsCreateInvalid() {
	period := createTestPeriod(suite.T(), v1.PeriodEditable{})

	tests := []struct {
		name     string
		editable v1.ContributionEditable
	}{
		{"No contributor", v1.ContributionEditable{PeriodID: toParam(period.Data.ID), Total: decimal.NewFromFloat(100)}},
		{"Total zero", v1.ContributionEditable{PeriodID: toParam(period.Data.ID), Contributor: "Ana"}},
		{"Unknown period", v1.ContributionEditable{PeriodID: toParam(uuid.New()), Contributor: "Ana", Total: decimal.NewFromFloat(100)}},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			body := []v1.ContributionEditable{tt.editable}
			r := test.Request(t, http.MethodPost, "http://example.com/v1/contributions", body)
			test.AssertHTTPStatus(t, &r, http.StatusBadRequest, http.StatusNotFound)
		})
	}
}

func (suite *TestSuiteStandard) TestContributionsGetList() {
	period := createTestPeriod(suite.T(), v1.PeriodEditable{})

	createTestContribution(suite.T(), v1.ContributionEditable{
		PeriodID:    toParam(period.Data.ID),
		Contributor: "Ana",
		Total:       decimal.NewFromFloat(500),
	})
	createTestContribution(suite.T(), v1.ContributionEditable{
		PeriodID:    toParam(period.Data.ID),
		Contributor: "Ben",
		Total:       decimal.NewFromFloat(300),
	})

	r := test.Request(suite.T(), http.MethodGet, "http://example.com/v1/contributions", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.ContributionListResponse
	test.DecodeResponse(suite.T(), &r, &response)

	require.Len(suite.T(), response.Data, 2)

	// Ordered by available balance, largest first
	assert.Equal(suite.T(), "Ana", response.Data[0].Contributor)
	assert.Equal(suite.T(), "Ben", response.Data[1].Contributor)
}

func (suite *TestSuiteStandard) TestContributionsFilterPeriod() {
	contribution := createTestContribution(suite.T(), v1.ContributionEditable{})
	createTestContribution(suite.T(), v1.ContributionEditable{})

	r := test.Request(suite.T(), http.MethodGet, fmt.Sprintf("http://example.com/v1/contributions?period=%s", contribution.Data.PeriodID), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.ContributionListResponse
	test.DecodeResponse(suite.T(), &r, &response)

	require.Len(suite.T(), response.Data, 1)
	assert.Equal(suite.T(), contribution.Data.ID, response.Data[0].ID)
}

func (suite *TestSuiteStandard) TestContributionsFilterContributorGlob() {
	period := createTestPeriod(suite.T(), v1.PeriodEditable{})

	for _, contributor := range []string{"Ana", "Anastasia", "Ben"} {
		createTestContribution(suite.T(), v1.ContributionEditable{
			PeriodID:    toParam(period.Data.ID),
			Contributor: contributor,
		})
	}

	r := test.Request(suite.T(), http.MethodGet, "http://example.com/v1/contributions?contributor=Ana*", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.ContributionListResponse
	test.DecodeResponse(suite.T(), &r, &response)

	assert.Len(suite.T(), response.Data, 2)
	assert.Equal(suite.T(), int64(2), response.Pagination.Total)
}

func (suite *TestSuiteStandard) TestContributionsFilterAvailableAtLeast() {
	period := createTestPeriod(suite.T(), v1.PeriodEditable{})

	createTestContribution(suite.T(), v1.ContributionEditable{
		PeriodID: toParam(period.Data.ID),
		Total:    decimal.NewFromFloat(500),
	})
	small := createTestContribution(suite.T(), v1.ContributionEditable{
		PeriodID: toParam(period.Data.ID),
		Total:    decimal.NewFromFloat(50),
	})

	r := test.Request(suite.T(), http.MethodGet, "http://example.com/v1/contributions?availableAtLeast=100", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.ContributionListResponse
	test.DecodeResponse(suite.T(), &r, &response)

	require.Len(suite.T(), response.Data, 1)
	assert.NotEqual(suite.T(), small.Data.ID, response.Data[0].ID)
}

func (suite *TestSuiteStandard) TestContributionsFilterAvailableAtLeastInvalid() {
	r := test.Request(suite.T(), http.MethodGet, "http://example.com/v1/contributions?availableAtLeast=one-hundred", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)
}

func (suite *TestSuiteStandard) TestContributionsGetSingle() {
	contribution := createTestContribution(suite.T(), v1.ContributionEditable{})

	r := test.Request(suite.T(), http.MethodGet, resourceURL("contributions", contribution.Data.ID), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.ContributionResponse
	test.DecodeResponse(suite.T(), &r, &response)
	assert.Equal(suite.T(), contribution.Data.ID, response.Data.ID)
}

func (suite *TestSuiteStandard) TestContributionsUpdate() {
	contribution := createTestContribution(suite.T(), v1.ContributionEditable{
		Total: decimal.NewFromFloat(500),
	})

	r := test.Request(suite.T(), http.MethodPatch, resourceURL("contributions", contribution.Data.ID), map[string]any{
		"total": decimal.NewFromFloat(750),
	})
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	r = test.Request(suite.T(), http.MethodGet, resourceURL("contributions", contribution.Data.ID), "")
	var response v1.ContributionResponse
	test.DecodeResponse(suite.T(), &r, &response)
	assert.True(suite.T(), response.Data.Total.Equal(decimal.NewFromFloat(750)))
}

func (suite *TestSuiteStandard) TestContributionsDelete() {
	contribution := createTestContribution(suite.T(), v1.ContributionEditable{})

	r := test.Request(suite.T(), http.MethodDelete, resourceURL("contributions", contribution.Data.ID), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNoContent)

	r = test.Request(suite.T(), http.MethodGet, resourceURL("contributions", contribution.Data.ID), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNotFound)
}

func (suite *TestSuiteStandard) TestContributionsDeleteConsumed() {
	period := createTestPeriod(suite.T(), v1.PeriodEditable{})
	contribution := createTestContribution(suite.T(), v1.ContributionEditable{
		PeriodID: toParam(period.Data.ID),
		Total:    decimal.NewFromFloat(500),
	})
	expense := createTestExpense(suite.T(), v1.ExpenseEditable{
		PeriodID: toParam(period.Data.ID),
		Amount:   decimal.NewFromFloat(100),
	})
	createTestPayment(suite.T(), v1.PaymentCreate{
		ExpenseID: toParam(expense.Data.ID),
		Amount:    decimal.NewFromFloat(100),
		Shares: []v1.ShareEditable{
			{ContributionID: toParam(contribution.Data.ID), Amount: decimal.NewFromFloat(100)},
		},
	})

	// A contribution that payments draw from can not be deleted
	r := test.Request(suite.T(), http.MethodDelete, resourceURL("contributions", contribution.Data.ID), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)
}
