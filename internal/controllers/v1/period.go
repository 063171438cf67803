package v1

import (
	"fmt"
	"net/http"

	"github.com/familos/backend/internal/httputil"
	"github.com/familos/backend/internal/models"
	"github.com/familos/backend/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// RegisterPeriodRoutes registers the routes for periods with
// the RouterGroup that is passed.
func RegisterPeriodRoutes(r *gin.RouterGroup) {
	{
		r.OPTIONS("", OptionsPeriods)
		r.GET("", GetPeriods)
		r.POST("", CreatePeriods)
	}
	{
		r.OPTIONS("/:id", OptionsPeriodDetail)
		r.GET("/:id", GetPeriod)
		r.PATCH("/:id", UpdatePeriod)
		r.DELETE("/:id", DeletePeriod)
	}
	{
		r.OPTIONS("/:id/close", OptionsPeriodClose)
		r.POST("/:id/close", ClosePeriod)
		r.GET("/:id/balance", GetPeriodBalance)
	}
}

type PeriodEditable struct {
	Month          types.Month     `json:"month" example:"2026-07-01T00:00:00.000000Z"` // The month this period covers
	Name           string          `json:"name" example:"July" default:""`
	Note           string          `json:"note" example:"Vacation month, expect higher spending" default:""`
	CreatedBy      string          `json:"createdBy" example:"ana"` // The family member who opened the period
	CarriedSurplus decimal.Decimal `json:"carriedSurplus" example:"150.75" default:"0"`
}

// model returns the database resource for the API representation of the editable fields
func (editable PeriodEditable) model() models.Period {
	return models.Period{
		Month:          editable.Month,
		Name:           editable.Name,
		Note:           editable.Note,
		CreatedBy:      editable.CreatedBy,
		CarriedSurplus: editable.CarriedSurplus,
	}
}

type PeriodLinks struct {
	Self          string `json:"self" example:"https://example.com/api/v1/periods/438cc6c0-9baf-49fd-a75a-d76bd5cab19c"`
	Close         string `json:"close" example:"https://example.com/api/v1/periods/438cc6c0-9baf-49fd-a75a-d76bd5cab19c/close"`
	Balance       string `json:"balance" example:"https://example.com/api/v1/periods/438cc6c0-9baf-49fd-a75a-d76bd5cab19c/balance"`
	Contributions string `json:"contributions" example:"https://example.com/api/v1/contributions?period=438cc6c0-9baf-49fd-a75a-d76bd5cab19c"`
	Expenses      string `json:"expenses" example:"https://example.com/api/v1/expenses?period=438cc6c0-9baf-49fd-a75a-d76bd5cab19c"`
	Payments      string `json:"payments" example:"https://example.com/api/v1/payments?period=438cc6c0-9baf-49fd-a75a-d76bd5cab19c"`
}

type Period struct {
	models.DefaultModel
	PeriodEditable
	Closed bool        `json:"closed" example:"false"` // A closed period can no longer be changed
	Links  PeriodLinks `json:"links"`
}

// newPeriod returns the API v1 representation of the resource
func newPeriod(c *gin.Context, model models.Period) Period {
	url := baseURL(c)

	return Period{
		DefaultModel: model.DefaultModel,
		PeriodEditable: PeriodEditable{
			Month:          model.Month,
			Name:           model.Name,
			Note:           model.Note,
			CreatedBy:      model.CreatedBy,
			CarriedSurplus: model.CarriedSurplus,
		},
		Closed: model.Closed,
		Links: PeriodLinks{
			Self:          fmt.Sprintf("%s/v1/periods/%s", url, model.ID),
			Close:         fmt.Sprintf("%s/v1/periods/%s/close", url, model.ID),
			Balance:       fmt.Sprintf("%s/v1/periods/%s/balance", url, model.ID),
			Contributions: fmt.Sprintf("%s/v1/contributions?period=%s", url, model.ID),
			Expenses:      fmt.Sprintf("%s/v1/expenses?period=%s", url, model.ID),
			Payments:      fmt.Sprintf("%s/v1/payments?period=%s", url, model.ID),
		},
	}
}

type PeriodListResponse struct {
	Data       []Period    `json:"data"`                                                          // List of resources
	Error      *string     `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Pagination *Pagination `json:"pagination"`                                                    // Pagination information
}

type PeriodCreateResponse struct {
	Error *string          `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Data  []PeriodResponse `json:"data"`                                                          // List of created resources
}

func (p *PeriodCreateResponse) appendError(err error, currentStatus int) int {
	s := err.Error()
	p.Data = append(p.Data, PeriodResponse{Error: &s})

	// The final status code is the highest HTTP status code number
	newStatus := status(err)
	if newStatus > currentStatus {
		return newStatus
	}

	return currentStatus
}

type PeriodResponse struct {
	Error *string `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Data  *Period `json:"data"`                                                          // The resource
}

type PeriodQueryFilter struct {
	Name   string `form:"name" filterField:"false"`   // By name
	Note   string `form:"note" filterField:"false"`   // By the note
	Search string `form:"search" filterField:"false"` // By string in name or note
	Month  string `form:"month" filterField:"false"`  // By month, format YYYY-MM
	Closed bool   `form:"closed"`                     // Is the period closed?
	Offset uint   `form:"offset" filterField:"false"` // The offset of the first period returned. Defaults to 0.
	Limit  int    `form:"limit" filterField:"false"`  // Maximum number of periods to return. Defaults to 50.
}

func (f PeriodQueryFilter) model() models.Period {
	return models.Period{
		Closed: f.Closed,
	}
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Periods
// @Success		204
// @Router			/v1/periods [options]
func OptionsPeriods(c *gin.Context) {
	httputil.OptionsGetPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Periods
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			id	path		URIID	true	"ID of the period"
// @Router			/v1/periods/{id} [options]
func OptionsPeriodDetail(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	err = models.DB.First(&models.Period{}, "id = ?", uri.ID.UUID).Error
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	httputil.OptionsGetPatchDelete(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Periods
// @Success		204
// @Router			/v1/periods/{id}/close [options]
func OptionsPeriodClose(c *gin.Context) {
	httputil.OptionsPost(c)
}

// @Summary		Create periods
// @Description	Creates new periods
// @Tags			Periods
// @Produce		json
// @Success		201		{object}	PeriodCreateResponse
// @Failure		400		{object}	PeriodCreateResponse
// @Failure		500		{object}	PeriodCreateResponse
// @Param			periods	body		[]PeriodEditable	true	"Periods"
// @Router			/v1/periods [post]
func CreatePeriods(c *gin.Context) {
	var editables []PeriodEditable

	err := httputil.BindData(c, &editables)
	if err != nil {
		return
	}

	// The final http status. Will be modified when errors occur
	status := http.StatusCreated
	r := PeriodCreateResponse{}

	for _, editable := range editables {
		period := editable.model()
		err = models.DB.Create(&period).Error
		if err != nil {
			status = r.appendError(err, status)
			continue
		}

		data := newPeriod(c, period)
		r.Data = append(r.Data, PeriodResponse{Data: &data})
	}

	c.JSON(status, r)
}

// @Summary		Get periods
// @Description	Returns a list of periods
// @Tags			Periods
// @Produce		json
// @Success		200	{object}	PeriodListResponse
// @Failure		400	{object}	PeriodListResponse
// @Failure		500	{object}	PeriodListResponse
// @Router			/v1/periods [get]
// @Param			name	query	string	false	"Filter by name"
// @Param			note	query	string	false	"Filter by note"
// @Param			search	query	string	false	"Search for this text in name and note"
// @Param			month	query	string	false	"Filter by month, format YYYY-MM"
// @Param			closed	query	bool	false	"Is the period closed?"
// @Param			offset	query	uint	false	"The offset of the first period returned. Defaults to 0."
// @Param			limit	query	int		false	"Maximum number of periods to return. Defaults to 50."
func GetPeriods(c *gin.Context) {
	var filter PeriodQueryFilter
	if err := c.Bind(&filter); err != nil {
		s := err.Error()
		c.JSON(http.StatusBadRequest, PeriodListResponse{
			Error: &s,
		})
		return
	}

	queryFields, setFields := httputil.GetURLFields(c.Request.URL, filter)

	q := models.DB.
		Order("date(periods.month) DESC").
		Where(filter.model(), queryFields...)

	q = stringFilters(models.DB, q, setFields, filter.Name, filter.Note, filter.Search)

	if filter.Month != "" {
		month, err := types.ParseMonth(filter.Month)
		if err != nil {
			s := err.Error()
			c.JSON(http.StatusBadRequest, PeriodListResponse{
				Error: &s,
			})
			return
		}
		q = q.Where("periods.month >= date(?)", month).Where("periods.month < date(?)", month.Next())
	}

	q = q.Offset(int(filter.Offset))

	limit := 50
	if slices.Contains(setFields, "Limit") {
		limit = filter.Limit
	}
	q = q.Limit(limit)

	var periods []models.Period
	err := q.Find(&periods).Error
	if err != nil {
		s := err.Error()
		c.JSON(status(err), PeriodListResponse{
			Error: &s,
		})
		return
	}

	var count int64
	err = q.Limit(-1).Offset(-1).Count(&count).Error
	if err != nil {
		s := err.Error()
		c.JSON(status(err), PeriodListResponse{
			Error: &s,
		})
		return
	}

	data := make([]Period, 0, len(periods))
	for _, period := range periods {
		data = append(data, newPeriod(c, period))
	}

	c.JSON(http.StatusOK, PeriodListResponse{
		Data: data,
		Pagination: &Pagination{
			Count:  len(data),
			Total:  count,
			Offset: filter.Offset,
			Limit:  limit,
		},
	})
}

// @Summary		Get period
// @Description	Returns a specific period
// @Tags			Periods
// @Produce		json
// @Success		200	{object}	PeriodResponse
// @Failure		400	{object}	PeriodResponse
// @Failure		404	{object}	PeriodResponse
// @Failure		500	{object}	PeriodResponse
// @Param			id	path		URIID	true	"ID of the period"
// @Router			/v1/periods/{id} [get]
func GetPeriod(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), PeriodResponse{
			Error: &e,
		})
		return
	}

	var period models.Period
	err = models.DB.First(&period, "id = ?", uri.ID.UUID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), PeriodResponse{
			Error: &e,
		})
		return
	}

	data := newPeriod(c, period)
	c.JSON(http.StatusOK, PeriodResponse{Data: &data})
}

// @Summary		Update period
// @Description	Updates an existing period. Only values to be updated need to be specified.
// @Tags			Periods
// @Accept			json
// @Produce		json
// @Success		200		{object}	PeriodResponse
// @Failure		400		{object}	PeriodResponse
// @Failure		404		{object}	PeriodResponse
// @Failure		500		{object}	PeriodResponse
// @Param			id		path		URIID			true	"ID of the period"
// @Param			period	body		PeriodEditable	true	"Period"
// @Router			/v1/periods/{id} [patch]
func UpdatePeriod(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), PeriodResponse{
			Error: &e,
		})
		return
	}

	var period models.Period
	err = models.DB.First(&period, "id = ?", uri.ID.UUID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), PeriodResponse{
			Error: &e,
		})
		return
	}

	updateFields, err := httputil.GetBodyFields(c, PeriodEditable{})
	if err != nil {
		e := err.Error()
		c.JSON(status(err), PeriodResponse{
			Error: &e,
		})
		return
	}

	var data PeriodEditable
	err = httputil.BindData(c, &data)
	if err != nil {
		return
	}

	err = models.DB.Model(&period).Select("", updateFields...).Updates(data.model()).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), PeriodResponse{
			Error: &e,
		})
		return
	}

	apiResource := newPeriod(c, period)
	c.JSON(http.StatusOK, PeriodResponse{Data: &apiResource})
}

// @Summary		Delete period
// @Description	Deletes a period
// @Tags			Periods
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			id	path		URIID	true	"ID of the period"
// @Router			/v1/periods/{id} [delete]
func DeletePeriod(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	var period models.Period
	err = models.DB.First(&period, "id = ?", uri.ID.UUID).Error
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	err = models.DB.Delete(&period).Error
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

// CloseResult is the API representation of a completed period close.
type CloseResult struct {
	Period    Period          `json:"period"`    // The closed period
	Successor Period          `json:"successor"` // The period the surplus was carried into
	Surplus   decimal.Decimal `json:"surplus" example:"150.75"`
	NoSurplus bool            `json:"noSurplus" example:"false"` // True when there was no surplus to transfer
}

type CloseResponse struct {
	Error *string      `json:"error" example:"the period is already closed"` // The error, if any occurred
	Data  *CloseResult `json:"data"`                                         // The close result
}

type CloseRequest struct {
	ClosedBy string `json:"closedBy" example:"ana" default:""` // The family member closing the period
}

// @Summary		Close period
// @Description	Closes the period, transferring its surplus into the next period. Closing is permanent.
// @Tags			Periods
// @Accept			json
// @Produce		json
// @Success		200	{object}	CloseResponse
// @Failure		400	{object}	CloseResponse
// @Failure		404	{object}	CloseResponse
// @Failure		409	{object}	CloseResponse
// @Failure		500	{object}	CloseResponse
// @Param			id		path	URIID			true	"ID of the period"
// @Param			close	body	CloseRequest	false	"Close options"
// @Router			/v1/periods/{id}/close [post]
func ClosePeriod(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), CloseResponse{
			Error: &e,
		})
		return
	}

	var request CloseRequest
	// The body is optional
	_ = c.ShouldBindJSON(&request)

	result, err := coreClosing.Close(uri.ID.UUID, request.ClosedBy)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), CloseResponse{
			Error: &e,
		})
		return
	}

	closed := newPeriod(c, result.Period)
	successor := newPeriod(c, result.Successor)

	c.JSON(http.StatusOK, CloseResponse{
		Data: &CloseResult{
			Period:    closed,
			Successor: successor,
			Surplus:   result.Surplus,
			NoSurplus: result.NoSurplus,
		},
	})
}

// PeriodBalance is the computed financial state of a period.
type PeriodBalance struct {
	Available      decimal.Decimal `json:"available" example:"320.50"`      // Unallocated capacity over all contributions
	Surplus        decimal.Decimal `json:"surplus" example:"150.75"`        // Total contributed minus total spent
	CarriedSurplus decimal.Decimal `json:"carriedSurplus" example:"120.00"` // Surplus transferred in from the prior period
}

type PeriodBalanceResponse struct {
	Error *string        `json:"error" example:"there is no period matching your query"` // The error, if any occurred
	Data  *PeriodBalance `json:"data"`                                                   // The balance
}

// @Summary		Get period balance
// @Description	Returns the available balance and the surplus of the period
// @Tags			Periods
// @Produce		json
// @Success		200	{object}	PeriodBalanceResponse
// @Failure		400	{object}	PeriodBalanceResponse
// @Failure		404	{object}	PeriodBalanceResponse
// @Failure		500	{object}	PeriodBalanceResponse
// @Param			id	path		URIID	true	"ID of the period"
// @Router			/v1/periods/{id}/balance [get]
func GetPeriodBalance(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), PeriodBalanceResponse{
			Error: &e,
		})
		return
	}

	var period models.Period
	err = models.DB.First(&period, "id = ?", uri.ID.UUID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), PeriodBalanceResponse{
			Error: &e,
		})
		return
	}

	available, err := coreLedger.AvailableBalance(period.ID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), PeriodBalanceResponse{
			Error: &e,
		})
		return
	}

	surplus, err := coreClosing.ComputeSurplus(period.ID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), PeriodBalanceResponse{
			Error: &e,
		})
		return
	}

	c.JSON(http.StatusOK, PeriodBalanceResponse{
		Data: &PeriodBalance{
			Available:      available,
			Surplus:        surplus,
			CarriedSurplus: period.CarriedSurplus,
		},
	})
}
