package v1_test

import (
	"net/http"

	v1 "github.com/familos/backend/internal/controllers/v1"
	"github.com/familos/backend/test"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestExportOptions() {
	r := test.Request(suite.T(), http.MethodOptions, "http://example.com/v1/export", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNoContent)
	assert.Equal(suite.T(), "GET", r.Header().Get("allow"))
}

func (suite *TestSuiteStandard) TestExport() {
	period := createTestPeriod(suite.T(), v1.PeriodEditable{})
	createTestContribution(suite.T(), v1.ContributionEditable{
		PeriodID: toParam(period.Data.ID),
		Total:    decimal.NewFromFloat(500),
	})

	r := test.Request(suite.T(), http.MethodGet, "http://example.com/v1/export", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.ExportResponse
	test.DecodeResponse(suite.T(), &r, &response)

	assert.False(suite.T(), response.CreationTime.IsZero())

	for _, key := range []string{"Period", "Contribution", "Expense", "PaymentRecord"} {
		require.Contains(suite.T(), response.Data, key)
	}
}

func (suite *TestSuiteStandard) TestExportDBClosed() {
	suite.CloseDB()

	r := test.Request(suite.T(), http.MethodGet, "http://example.com/v1/export", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusInternalServerError)
}
