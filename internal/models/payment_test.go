package models_test

import (
	"github.com/familos/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestPaymentRecordValidation() {
	period := suite.createTestPeriod(models.Period{})
	expense := suite.createTestExpense(models.Expense{PeriodID: period.ID})

	err := models.DB.Create(&models.PaymentRecord{
		PeriodID:  period.ID,
		ExpenseID: expense.ID,
		Amount:    decimal.NewFromFloat(10),
	}).Error
	assert.ErrorIs(suite.T(), err, models.ErrPaymentIssuerNotSet)

	err = models.DB.Create(&models.PaymentRecord{
		PeriodID:  period.ID,
		ExpenseID: expense.ID,
		Issuer:    "ana",
	}).Error
	assert.ErrorIs(suite.T(), err, models.ErrPaymentAmountNotPositive)
}

func (suite *TestSuiteStandard) TestPaymentRecordEntriesSum() {
	period := suite.createTestPeriod(models.Period{})
	expense := suite.createTestExpense(models.Expense{PeriodID: period.ID})
	contribution := suite.createTestContribution(models.Contribution{PeriodID: period.ID})

	err := models.DB.Create(&models.PaymentRecord{
		PeriodID:  period.ID,
		ExpenseID: expense.ID,
		Amount:    decimal.NewFromFloat(50),
		Issuer:    "ana",
		Entries: []models.AllocationEntry{
			{ContributionID: contribution.ID, Contributor: "ana", Amount: decimal.NewFromFloat(20)},
		},
	}).Error
	assert.ErrorIs(suite.T(), err, models.ErrEntriesSumMismatch)

	record := suite.createTestPaymentRecord(models.PaymentRecord{
		PeriodID:  period.ID,
		ExpenseID: expense.ID,
		Amount:    decimal.NewFromFloat(50),
		Issuer:    "ana",
		Entries: []models.AllocationEntry{
			{ContributionID: contribution.ID, Contributor: "ana", Amount: decimal.NewFromFloat(30)},
			{ContributionID: contribution.ID, Contributor: "ana", Amount: decimal.NewFromFloat(20)},
		},
	})

	assert.False(suite.T(), record.Direct())
	assert.True(suite.T(), record.EntriesSum().Equal(record.Amount))
}

func (suite *TestSuiteStandard) TestPaymentRecordEntryAmountPositive() {
	period := suite.createTestPeriod(models.Period{})
	expense := suite.createTestExpense(models.Expense{PeriodID: period.ID})
	contribution := suite.createTestContribution(models.Contribution{PeriodID: period.ID})

	err := models.DB.Create(&models.PaymentRecord{
		PeriodID:  period.ID,
		ExpenseID: expense.ID,
		Amount:    decimal.NewFromFloat(50),
		Issuer:    "ana",
		Entries: []models.AllocationEntry{
			{ContributionID: contribution.ID, Contributor: "ana", Amount: decimal.NewFromFloat(-10)},
			{ContributionID: contribution.ID, Contributor: "ana", Amount: decimal.NewFromFloat(60)},
		},
	}).Error
	assert.ErrorIs(suite.T(), err, models.ErrEntryAmountNotPositive)
}

func (suite *TestSuiteStandard) TestPaymentRecordDirect() {
	period := suite.createTestPeriod(models.Period{})
	expense := suite.createTestExpense(models.Expense{PeriodID: period.ID})

	record := suite.createTestPaymentRecord(models.PaymentRecord{
		PeriodID:  period.ID,
		ExpenseID: expense.ID,
		Amount:    decimal.NewFromFloat(84.12),
		Issuer:    "ben",
	})

	assert.True(suite.T(), record.Direct())
	assert.True(suite.T(), record.EntriesSum().IsZero())
	assert.False(suite.T(), record.Date.IsZero(), "payment date must default to the commit time")
}

func (suite *TestSuiteStandard) TestPaymentRecordUnknownExpense() {
	period := suite.createTestPeriod(models.Period{})

	err := models.DB.Create(&models.PaymentRecord{
		PeriodID: period.ID,
		Amount:   decimal.NewFromFloat(10),
		Issuer:   "ana",
	}).Error
	assert.ErrorIs(suite.T(), err, models.ErrResourceNotFound)
}

func (suite *TestSuiteStandard) TestPaymentRecordClosedPeriod() {
	period := suite.createTestPeriod(models.Period{})
	expense := suite.createTestExpense(models.Expense{PeriodID: period.ID})
	record := suite.createTestPaymentRecord(models.PaymentRecord{
		PeriodID:  period.ID,
		ExpenseID: expense.ID,
		Amount:    decimal.NewFromFloat(10),
	})

	require.NoError(suite.T(), models.DB.Model(&period).Update("closed", true).Error)

	err := models.DB.Delete(&record).Error
	assert.ErrorIs(suite.T(), err, models.ErrPeriodClosed)
}
