package models_test

import (
	"strings"
	"testing"

	"github.com/familos/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestContributionTrimWhitespace() {
	period := suite.createTestPeriod(models.Period{})

	contributor := "  ana "
	note := " Salary \t"

	contribution := suite.createTestContribution(models.Contribution{
		PeriodID:    period.ID,
		Contributor: contributor,
		Total:       decimal.NewFromFloat(500),
		Note:        note,
	})

	assert.Equal(suite.T(), strings.TrimSpace(contributor), contribution.Contributor)
	assert.Equal(suite.T(), strings.TrimSpace(note), contribution.Note)
}

func (suite *TestSuiteStandard) TestContributionValidation() {
	period := suite.createTestPeriod(models.Period{})

	tests := []struct {
		name         string
		contribution models.Contribution
		err          error
	}{
		{
			"contributor missing",
			models.Contribution{PeriodID: period.ID, Total: decimal.NewFromFloat(100)},
			models.ErrContributorNotSet,
		},
		{
			"total zero",
			models.Contribution{PeriodID: period.ID, Contributor: "ana"},
			models.ErrContributionTotalNotPositive,
		},
		{
			"total negative",
			models.Contribution{PeriodID: period.ID, Contributor: "ana", Total: decimal.NewFromFloat(-100)},
			models.ErrContributionTotalNotPositive,
		},
		{
			"consumed above total",
			models.Contribution{PeriodID: period.ID, Contributor: "ana", Total: decimal.NewFromFloat(100), Consumed: decimal.NewFromFloat(150)},
			models.ErrIntegrity,
		},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			err := models.DB.Create(&tt.contribution).Error
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func (suite *TestSuiteStandard) TestContributionAvailable() {
	contribution := models.Contribution{
		Total:    decimal.NewFromFloat(500),
		Consumed: decimal.NewFromFloat(180),
	}

	assert.True(suite.T(), contribution.Available().Equal(decimal.NewFromFloat(320)))
	assert.True(suite.T(), contribution.HasAvailable())
	assert.True(suite.T(), contribution.Utilization().Equal(decimal.NewFromFloat(0.36)))
}

func (suite *TestSuiteStandard) TestContributionDeleteGuard() {
	period := suite.createTestPeriod(models.Period{})
	contribution := suite.createTestContribution(models.Contribution{
		PeriodID: period.ID,
		Total:    decimal.NewFromFloat(100),
		Consumed: decimal.NewFromFloat(40),
	})

	err := models.DB.Delete(&contribution).Error
	assert.ErrorIs(suite.T(), err, models.ErrContributionInUse)

	// Once nothing is consumed anymore, deletion works
	require.NoError(suite.T(), models.DB.Model(&contribution).Update("consumed", decimal.Zero).Error)
	assert.NoError(suite.T(), models.DB.Delete(&contribution).Error)
}

func (suite *TestSuiteStandard) TestContributionClosedPeriod() {
	period := suite.createTestPeriod(models.Period{})
	contribution := suite.createTestContribution(models.Contribution{PeriodID: period.ID})

	require.NoError(suite.T(), models.DB.Model(&period).Update("closed", true).Error)

	err := models.DB.Model(&contribution).Update("total", decimal.NewFromFloat(200)).Error
	assert.ErrorIs(suite.T(), err, models.ErrPeriodClosed)

	err = models.DB.Delete(&contribution).Error
	assert.ErrorIs(suite.T(), err, models.ErrPeriodClosed)
}
