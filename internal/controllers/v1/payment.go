package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/familos/backend/internal/distribution"
	"github.com/familos/backend/internal/httputil"
	"github.com/familos/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	fam_uuid "github.com/familos/backend/internal/uuid"
)

// RegisterPaymentRoutes registers the routes for payments with
// the RouterGroup that is passed.
func RegisterPaymentRoutes(r *gin.RouterGroup) {
	{
		r.OPTIONS("", OptionsPayments)
		r.GET("", GetPayments)
		r.POST("", CreatePayment)
	}
	{
		r.OPTIONS("/:id", OptionsPaymentDetail)
		r.GET("/:id", GetPayment)
		r.DELETE("/:id", ReversePayment)
	}
}

// PaymentCreate is the request body for committing a payment.
//
// When ID is set, retries of the same request are recognized and answered
// with the already committed record instead of spending twice. When Shares
// is empty the payment is committed directly, without touching the pooled
// contributions.
type PaymentCreate struct {
	ID        fam_uuid.UUID   `json:"id" example:"26b58e0d-3f97-4874-9dd6-7c6c4db131b9" default:"00000000-0000-0000-0000-000000000000"` // Client-supplied ID, used to deduplicate retries
	ExpenseID fam_uuid.UUID   `json:"expenseId" example:"ec1bd144-2f27-49b3-a6fd-6935d9e8dc05"`                                         // ID of the expense being paid
	Amount    decimal.Decimal `json:"amount" example:"84.12"`
	Issuer    string          `json:"issuer" example:"ana"` // The family member who issued the payment
	Note      string          `json:"note" example:"paid at the counter" default:""`
	Shares    []ShareEditable `json:"shares"` // How the amount is split over contributions. Empty for a direct payment.
}

type ShareEditable struct {
	ContributionID fam_uuid.UUID   `json:"contributionId" example:"d1b3ba23-9bd1-4a93-9c00-fb7e9de2f8c5"` // ID of the contribution to consume from
	Contributor    string          `json:"contributor" example:"ana"`                                     // The contributor the capacity belongs to
	Amount         decimal.Decimal `json:"amount" example:"50.00"`
}

// proposal rebuilds the distribution proposal from the request body. The
// processor re-validates it against the live ledger state before spending.
func (create PaymentCreate) proposal() distribution.Proposal {
	shares := make([]distribution.Share, 0, len(create.Shares))
	sum := decimal.Zero
	for _, s := range create.Shares {
		shares = append(shares, distribution.Share{
			ContributionID: s.ContributionID.UUID,
			Contributor:    s.Contributor,
			Amount:         s.Amount,
		})
		sum = sum.Add(s.Amount)
	}

	return distribution.Proposal{
		Shares: shares,
		Total:  sum,
	}
}

type PaymentLinks struct {
	Self    string `json:"self" example:"https://example.com/api/v1/payments/26b58e0d-3f97-4874-9dd6-7c6c4db131b9"`
	Expense string `json:"expense" example:"https://example.com/api/v1/expenses/ec1bd144-2f27-49b3-a6fd-6935d9e8dc05"`
	Period  string `json:"period" example:"https://example.com/api/v1/periods/438cc6c0-9baf-49fd-a75a-d76bd5cab19c"`
}

type Payment struct {
	models.DefaultModel
	PeriodID  fam_uuid.UUID   `json:"periodId" example:"438cc6c0-9baf-49fd-a75a-d76bd5cab19c"`
	ExpenseID fam_uuid.UUID   `json:"expenseId" example:"ec1bd144-2f27-49b3-a6fd-6935d9e8dc05"`
	Amount    decimal.Decimal `json:"amount" example:"84.12"`
	Issuer    string          `json:"issuer" example:"ana"`
	Date      time.Time       `json:"date" example:"2026-07-12T09:11:14.123456Z"`
	Note      string          `json:"note" example:"paid at the counter"`
	Direct    bool            `json:"direct" example:"false"`   // True when the payment did not consume pooled funds
	Reversed  bool            `json:"reversed" example:"false"` // True when the payment has been reversed
	Entries   []Share         `json:"entries"`                  // The consumed capacity per contribution
	Links     PaymentLinks    `json:"links"`
}

type Share struct {
	ContributionID fam_uuid.UUID   `json:"contributionId" example:"d1b3ba23-9bd1-4a93-9c00-fb7e9de2f8c5"`
	Contributor    string          `json:"contributor" example:"ana"`
	Amount         decimal.Decimal `json:"amount" example:"50.00"`
}

// newPayment returns the API v1 representation of the resource
func newPayment(c *gin.Context, model models.PaymentRecord) Payment {
	url := baseURL(c)

	entries := make([]Share, 0, len(model.Entries))
	for _, entry := range model.Entries {
		entries = append(entries, Share{
			ContributionID: fam_uuid.UUID{UUID: entry.ContributionID},
			Contributor:    entry.Contributor,
			Amount:         entry.Amount,
		})
	}

	return Payment{
		DefaultModel: model.DefaultModel,
		PeriodID:     fam_uuid.UUID{UUID: model.PeriodID},
		ExpenseID:    fam_uuid.UUID{UUID: model.ExpenseID},
		Amount:       model.Amount,
		Issuer:       model.Issuer,
		Date:         model.Date,
		Note:         model.Note,
		Direct:       model.Direct(),
		Reversed:     model.DeletedAt != nil && model.DeletedAt.Valid,
		Entries:      entries,
		Links: PaymentLinks{
			Self:    fmt.Sprintf("%s/v1/payments/%s", url, model.ID),
			Expense: fmt.Sprintf("%s/v1/expenses/%s", url, model.ExpenseID),
			Period:  fmt.Sprintf("%s/v1/periods/%s", url, model.PeriodID),
		},
	}
}

type PaymentListResponse struct {
	Data       []Payment   `json:"data"`                                                          // List of resources
	Error      *string     `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Pagination *Pagination `json:"pagination"`                                                    // Pagination information
}

type PaymentResponse struct {
	Error *string  `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Data  *Payment `json:"data"`                                                          // The resource
}

type PaymentQueryFilter struct {
	PeriodID  string `form:"period" filterField:"false"`   // By the ID of the period
	ExpenseID string `form:"expense" filterField:"false"`  // By the ID of the expense
	Issuer    string `form:"issuer"`                       // By the issuer
	Note      string `form:"note" filterField:"false"`     // By the note
	Reversed  bool   `form:"reversed" filterField:"false"` // Include reversed payments?
	Offset    uint   `form:"offset" filterField:"false"`   // The offset of the first payment returned. Defaults to 0.
	Limit     int    `form:"limit" filterField:"false"`    // Maximum number of payments to return. Defaults to 50.
}

func (f PaymentQueryFilter) model() models.PaymentRecord {
	return models.PaymentRecord{
		Issuer: f.Issuer,
	}
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Payments
// @Success		204
// @Router			/v1/payments [options]
func OptionsPayments(c *gin.Context) {
	httputil.OptionsGetPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Payments
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			id	path		URIID	true	"ID of the payment"
// @Router			/v1/payments/{id} [options]
func OptionsPaymentDetail(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	err = models.DB.Unscoped().First(&models.PaymentRecord{}, "id = ?", uri.ID.UUID).Error
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	httputil.OptionsGetDelete(c)
}

// @Summary		Commit payment
// @Description	Commits a payment for an expense. With shares, the amount is spent from the pooled contributions all-or-nothing; without shares, the payment is recorded as paid directly. Supplying an ID makes the request safe to retry.
// @Tags			Payments
// @Accept			json
// @Produce		json
// @Success		201		{object}	PaymentResponse
// @Failure		400		{object}	PaymentResponse
// @Failure		404		{object}	PaymentResponse
// @Failure		409		{object}	PaymentResponse
// @Failure		500		{object}	PaymentResponse
// @Param			payment	body		PaymentCreate	true	"Payment"
// @Router			/v1/payments [post]
func CreatePayment(c *gin.Context) {
	var create PaymentCreate

	err := httputil.BindData(c, &create)
	if err != nil {
		return
	}

	if create.ExpenseID.UUID == uuid.Nil {
		e := errExpenseNotSet.Error()
		c.JSON(http.StatusBadRequest, PaymentResponse{
			Error: &e,
		})
		return
	}

	id := create.ID.UUID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var record models.PaymentRecord
	if len(create.Shares) == 0 {
		record, err = corePayments.CommitDirect(id, create.ExpenseID.UUID, create.Amount, create.Issuer, create.Note)
	} else {
		record, err = corePayments.Commit(id, create.ExpenseID.UUID, create.Amount, create.Issuer, create.Note, create.proposal())
	}
	if err != nil {
		e := err.Error()
		c.JSON(status(err), PaymentResponse{
			Error: &e,
		})
		return
	}

	data := newPayment(c, record)
	c.JSON(http.StatusCreated, PaymentResponse{Data: &data})
}

// @Summary		Get payments
// @Description	Returns a list of payments
// @Tags			Payments
// @Produce		json
// @Success		200	{object}	PaymentListResponse
// @Failure		400	{object}	PaymentListResponse
// @Failure		500	{object}	PaymentListResponse
// @Router			/v1/payments [get]
// @Param			period		query	string	false	"Filter by the ID of the period"
// @Param			expense		query	string	false	"Filter by the ID of the expense"
// @Param			issuer		query	string	false	"Filter by issuer"
// @Param			note		query	string	false	"Filter by note"
// @Param			reversed	query	bool	false	"Include reversed payments?"
// @Param			offset		query	uint	false	"The offset of the first payment returned. Defaults to 0."
// @Param			limit		query	int		false	"Maximum number of payments to return. Defaults to 50."
func GetPayments(c *gin.Context) {
	var filter PaymentQueryFilter
	if err := c.Bind(&filter); err != nil {
		s := err.Error()
		c.JSON(http.StatusBadRequest, PaymentListResponse{
			Error: &s,
		})
		return
	}

	queryFields, setFields := httputil.GetURLFields(c.Request.URL, filter)

	periodID, err := httputil.UUIDFromString(filter.PeriodID)
	if err != nil {
		s := err.Error()
		c.JSON(http.StatusBadRequest, PaymentListResponse{
			Error: &s,
		})
		return
	}

	expenseID, err := httputil.UUIDFromString(filter.ExpenseID)
	if err != nil {
		s := err.Error()
		c.JSON(http.StatusBadRequest, PaymentListResponse{
			Error: &s,
		})
		return
	}

	q := models.DB.
		Preload("Entries").
		Order("date(payment_records.date) DESC, payment_records.created_at DESC").
		Where(filter.model(), queryFields...)

	// Reversed payments are soft deleted. Including them requires an
	// unscoped query.
	if filter.Reversed {
		q = q.Unscoped()
	}

	if periodID != uuid.Nil {
		q = q.Where("period_id = ?", periodID)
	}

	if expenseID != uuid.Nil {
		q = q.Where("expense_id = ?", expenseID)
	}

	if filter.Note != "" {
		q = q.Where("note LIKE ?", fmt.Sprintf("%%%s%%", filter.Note))
	} else if slices.Contains(setFields, "Note") {
		q = q.Where("note = ''")
	}

	q = q.Offset(int(filter.Offset))

	limit := 50
	if slices.Contains(setFields, "Limit") {
		limit = filter.Limit
	}
	q = q.Limit(limit)

	var payments []models.PaymentRecord
	err = q.Find(&payments).Error
	if err != nil {
		s := err.Error()
		c.JSON(status(err), PaymentListResponse{
			Error: &s,
		})
		return
	}

	var count int64
	err = q.Limit(-1).Offset(-1).Count(&count).Error
	if err != nil {
		s := err.Error()
		c.JSON(status(err), PaymentListResponse{
			Error: &s,
		})
		return
	}

	data := make([]Payment, 0, len(payments))
	for _, payment := range payments {
		data = append(data, newPayment(c, payment))
	}

	c.JSON(http.StatusOK, PaymentListResponse{
		Data: data,
		Pagination: &Pagination{
			Count:  len(data),
			Total:  count,
			Offset: filter.Offset,
			Limit:  limit,
		},
	})
}

// @Summary		Get payment
// @Description	Returns a specific payment. Reversed payments are returned as well.
// @Tags			Payments
// @Produce		json
// @Success		200	{object}	PaymentResponse
// @Failure		400	{object}	PaymentResponse
// @Failure		404	{object}	PaymentResponse
// @Failure		500	{object}	PaymentResponse
// @Param			id	path		URIID	true	"ID of the payment"
// @Router			/v1/payments/{id} [get]
func GetPayment(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), PaymentResponse{
			Error: &e,
		})
		return
	}

	var payment models.PaymentRecord
	err = models.DB.Unscoped().Preload("Entries").First(&payment, "id = ?", uri.ID.UUID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), PaymentResponse{
			Error: &e,
		})
		return
	}

	data := newPayment(c, payment)
	c.JSON(http.StatusOK, PaymentResponse{Data: &data})
}

// @Summary		Reverse payment
// @Description	Reverses a payment, returning all consumed capacity to its contributions and marking the expense as unpaid again. Reversing the same payment twice is an error.
// @Tags			Payments
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Failure		410	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			id	path		URIID	true	"ID of the payment"
// @Router			/v1/payments/{id} [delete]
func ReversePayment(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	err = corePayments.Reverse(uri.ID.UUID)
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}
