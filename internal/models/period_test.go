package models_test

import (
	"strings"
	"time"

	"github.com/familos/backend/internal/models"
	"github.com/familos/backend/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestPeriodTrimWhitespace() {
	name := "  July  "
	note := " Vacation month \t"
	createdBy := " ana "

	period := suite.createTestPeriod(models.Period{
		Name:      name,
		Note:      note,
		CreatedBy: createdBy,
	})

	assert.Equal(suite.T(), strings.TrimSpace(name), period.Name)
	assert.Equal(suite.T(), strings.TrimSpace(note), period.Note)
	assert.Equal(suite.T(), strings.TrimSpace(createdBy), period.CreatedBy)
}

func (suite *TestSuiteStandard) TestPeriodMonthRequired() {
	err := models.DB.Create(&models.Period{Name: "No month"}).Error
	assert.ErrorIs(suite.T(), err, models.ErrPeriodMonthNotSet)
}

func (suite *TestSuiteStandard) TestPeriodMonthUnique() {
	month := types.NewMonth(2026, 7)

	_ = suite.createTestPeriod(models.Period{Month: month})

	err := models.DB.Create(&models.Period{Month: month}).Error
	assert.ErrorIs(suite.T(), err, models.ErrPeriodMonthNotUnique)
}

func (suite *TestSuiteStandard) TestPeriodNegativeCarried() {
	err := models.DB.Create(&models.Period{
		Month:          types.NewMonth(2026, 3),
		CarriedSurplus: decimal.NewFromFloat(-10),
	}).Error
	assert.ErrorIs(suite.T(), err, models.ErrPeriodNegativeCarried)
}

func (suite *TestSuiteStandard) TestPeriodClosedRejectsUpdate() {
	period := suite.createTestPeriod(models.Period{Closed: true})

	err := models.DB.Model(&period).Update("note", "too late").Error
	assert.ErrorIs(suite.T(), err, models.ErrPeriodClosed)
}

func (suite *TestSuiteStandard) TestPeriodClosedRejectsReopen() {
	period := suite.createTestPeriod(models.Period{Closed: true})

	err := models.DB.Model(&period).Update("closed", false).Error
	assert.ErrorIs(suite.T(), err, models.ErrPeriodClosed)
}

func (suite *TestSuiteStandard) TestPeriodClosedRejectsDelete() {
	period := suite.createTestPeriod(models.Period{Closed: true})

	err := models.DB.Delete(&period).Error
	assert.ErrorIs(suite.T(), err, models.ErrPeriodClosed)
}

func (suite *TestSuiteStandard) TestPeriodClosedRejectsResources() {
	period := suite.createTestPeriod(models.Period{Closed: true})

	err := models.DB.Create(&models.Contribution{
		PeriodID:    period.ID,
		Contributor: "ana",
		Total:       decimal.NewFromFloat(100),
	}).Error
	assert.ErrorIs(suite.T(), err, models.ErrPeriodClosed)

	err = models.DB.Create(&models.Expense{
		PeriodID: period.ID,
		Name:     "Electricity",
		Amount:   decimal.NewFromFloat(50),
	}).Error
	assert.ErrorIs(suite.T(), err, models.ErrPeriodClosed)
}

func (suite *TestSuiteStandard) TestPeriodSuccessor() {
	period := suite.createTestPeriod(models.Period{Month: types.NewMonth(2026, 7)})
	next := suite.createTestPeriod(models.Period{Month: types.NewMonth(2026, 8)})
	_ = suite.createTestPeriod(models.Period{Month: types.NewMonth(2026, 9)})

	successor, err := period.Successor(models.DB)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), next.ID, successor.ID)
}

func (suite *TestSuiteStandard) TestPeriodSuccessorMissing() {
	period := suite.createTestPeriod(models.Period{Month: types.NewMonth(2026, 12)})

	_, err := period.Successor(models.DB)
	assert.ErrorIs(suite.T(), err, models.ErrResourceNotFound)
}

func (suite *TestSuiteStandard) TestPeriodTimestampsUTC() {
	period := suite.createTestPeriod(models.Period{})

	var reloaded models.Period
	require.NoError(suite.T(), models.DB.First(&reloaded, "id = ?", period.ID).Error)

	assert.Equal(suite.T(), time.UTC, reloaded.CreatedAt.Location())
	assert.Equal(suite.T(), time.UTC, reloaded.UpdatedAt.Location())
}
