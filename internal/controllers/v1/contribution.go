package v1

import (
	"fmt"
	"net/http"

	"github.com/familos/backend/internal/httputil"
	"github.com/familos/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ryanuber/go-glob"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	fam_uuid "github.com/familos/backend/internal/uuid"
)

// RegisterContributionRoutes registers the routes for contributions with
// the RouterGroup that is passed.
func RegisterContributionRoutes(r *gin.RouterGroup) {
	{
		r.OPTIONS("", OptionsContributions)
		r.GET("", GetContributions)
		r.POST("", CreateContributions)
	}
	{
		r.OPTIONS("/:id", OptionsContributionDetail)
		r.GET("/:id", GetContribution)
		r.PATCH("/:id", UpdateContribution)
		r.DELETE("/:id", DeleteContribution)
	}
}

type ContributionEditable struct {
	PeriodID    fam_uuid.UUID   `json:"periodId" example:"438cc6c0-9baf-49fd-a75a-d76bd5cab19c"` // ID of the period the money is pledged into
	Contributor string          `json:"contributor" example:"ana"`                               // The family member providing the money
	Total       decimal.Decimal `json:"total" example:"500.00"`                                  // The pledged amount
	Note        string          `json:"note" example:"Salary, minus the car insurance" default:""`
}

// model returns the database resource for the API representation of the editable fields
func (editable ContributionEditable) model() models.Contribution {
	return models.Contribution{
		PeriodID:    editable.PeriodID.UUID,
		Contributor: editable.Contributor,
		Total:       editable.Total,
		Note:        editable.Note,
	}
}

type ContributionLinks struct {
	Self   string `json:"self" example:"https://example.com/api/v1/contributions/d1b3ba23-9bd1-4a93-9c00-fb7e9de2f8c5"`
	Period string `json:"period" example:"https://example.com/api/v1/periods/438cc6c0-9baf-49fd-a75a-d76bd5cab19c"`
}

type Contribution struct {
	models.DefaultModel
	ContributionEditable
	Consumed    decimal.Decimal   `json:"consumed" example:"180.00"`  // The capacity already taken by payments
	Available   decimal.Decimal   `json:"available" example:"320.00"` // Total minus Consumed
	Utilization decimal.Decimal   `json:"utilization" example:"0.36"` // Consumed fraction of the total, in [0, 1]
	Links       ContributionLinks `json:"links"`
}

// newContribution returns the API v1 representation of the resource
func newContribution(c *gin.Context, model models.Contribution) Contribution {
	url := baseURL(c)

	return Contribution{
		DefaultModel: model.DefaultModel,
		ContributionEditable: ContributionEditable{
			PeriodID:    fam_uuid.UUID{UUID: model.PeriodID},
			Contributor: model.Contributor,
			Total:       model.Total,
			Note:        model.Note,
		},
		Consumed:    model.Consumed,
		Available:   model.Available(),
		Utilization: model.Utilization(),
		Links: ContributionLinks{
			Self:   fmt.Sprintf("%s/v1/contributions/%s", url, model.ID),
			Period: fmt.Sprintf("%s/v1/periods/%s", url, model.PeriodID),
		},
	}
}

type ContributionListResponse struct {
	Data       []Contribution `json:"data"`                                                          // List of resources
	Error      *string        `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Pagination *Pagination    `json:"pagination"`                                                    // Pagination information
}

type ContributionCreateResponse struct {
	Error *string                `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Data  []ContributionResponse `json:"data"`                                                          // List of created resources
}

func (c *ContributionCreateResponse) appendError(err error, currentStatus int) int {
	s := err.Error()
	c.Data = append(c.Data, ContributionResponse{Error: &s})

	newStatus := status(err)
	if newStatus > currentStatus {
		return newStatus
	}

	return currentStatus
}

type ContributionResponse struct {
	Error *string       `json:"error" example:"the specified resource ID is not a valid UUID"` // The error, if any occurred
	Data  *Contribution `json:"data"`                                                          // The resource
}

type ContributionQueryFilter struct {
	PeriodID         string `form:"period" filterField:"false"`           // By the ID of the period
	Contributor      string `form:"contributor" filterField:"false"`      // By contributor, glob patterns are supported
	Note             string `form:"note" filterField:"false"`             // By the note
	Search           string `form:"search" filterField:"false"`           // By string in contributor or note
	AvailableAtLeast string `form:"availableAtLeast" filterField:"false"` // Only contributions with at least this much capacity left
	Offset           uint   `form:"offset" filterField:"false"`           // The offset of the first contribution returned. Defaults to 0.
	Limit            int    `form:"limit" filterField:"false"`            // Maximum number of contributions to return. Defaults to 50.
}

// parse parses the filter fields that need explicit handling.
func (f ContributionQueryFilter) parse() (uuid.UUID, decimal.Decimal, error) {
	periodID, err := httputil.UUIDFromString(f.PeriodID)
	if err != nil {
		return uuid.Nil, decimal.Zero, err
	}

	available := decimal.Zero
	if f.AvailableAtLeast != "" {
		available, err = decimal.NewFromString(f.AvailableAtLeast)
		if err != nil {
			return uuid.Nil, decimal.Zero, errAvailableAtLeastInvalid
		}
	}

	return periodID, available, nil
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Contributions
// @Success		204
// @Router			/v1/contributions [options]
func OptionsContributions(c *gin.Context) {
	httputil.OptionsGetPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Contributions
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			id	path		URIID	true	"ID of the contribution"
// @Router			/v1/contributions/{id} [options]
func OptionsContributionDetail(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	err = models.DB.First(&models.Contribution{}, "id = ?", uri.ID.UUID).Error
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	httputil.OptionsGetPatchDelete(c)
}

// @Summary		Create contributions
// @Description	Creates new contributions
// @Tags			Contributions
// @Produce		json
// @Success		201				{object}	ContributionCreateResponse
// @Failure		400				{object}	ContributionCreateResponse
// @Failure		404				{object}	ContributionCreateResponse
// @Failure		500				{object}	ContributionCreateResponse
// @Param			contributions	body		[]ContributionEditable	true	"Contributions"
// @Router			/v1/contributions [post]
func CreateContributions(c *gin.Context) {
	var editables []ContributionEditable

	err := httputil.BindData(c, &editables)
	if err != nil {
		return
	}

	// The final http status. Will be modified when errors occur
	status := http.StatusCreated
	r := ContributionCreateResponse{}

	for _, editable := range editables {
		contribution := editable.model()

		// A new contribution changes the period's surplus, so it must not
		// interleave with a close of the same period
		unlock, err := coreLedger.LockPeriod(contribution.PeriodID)
		if err != nil {
			status = r.appendError(err, status)
			continue
		}

		err = models.DB.Create(&contribution).Error
		unlock()
		if err != nil {
			status = r.appendError(err, status)
			continue
		}

		data := newContribution(c, contribution)
		r.Data = append(r.Data, ContributionResponse{Data: &data})
	}

	c.JSON(status, r)
}

// @Summary		Get contributions
// @Description	Returns a list of contributions
// @Tags			Contributions
// @Produce		json
// @Success		200	{object}	ContributionListResponse
// @Failure		400	{object}	ContributionListResponse
// @Failure		500	{object}	ContributionListResponse
// @Router			/v1/contributions [get]
// @Param			period				query	string	false	"Filter by the ID of the period"
// @Param			contributor			query	string	false	"Filter by contributor, glob patterns are supported"
// @Param			note				query	string	false	"Filter by note"
// @Param			search				query	string	false	"Search for this text in contributor and note"
// @Param			availableAtLeast	query	string	false	"Only contributions with at least this much capacity left"
// @Param			offset				query	uint	false	"The offset of the first contribution returned. Defaults to 0."
// @Param			limit				query	int		false	"Maximum number of contributions to return. Defaults to 50."
func GetContributions(c *gin.Context) {
	var filter ContributionQueryFilter
	if err := c.Bind(&filter); err != nil {
		s := err.Error()
		c.JSON(http.StatusBadRequest, ContributionListResponse{
			Error: &s,
		})
		return
	}

	_, setFields := httputil.GetURLFields(c.Request.URL, filter)

	periodID, availableAtLeast, err := filter.parse()
	if err != nil {
		s := err.Error()
		c.JSON(http.StatusBadRequest, ContributionListResponse{
			Error: &s,
		})
		return
	}

	q := models.DB.Order("available DESC, contributor ASC").
		Select("contributions.*, total - consumed AS available")

	if periodID != uuid.Nil {
		q = q.Where("period_id = ?", periodID)
	}

	if slices.Contains(setFields, "AvailableAtLeast") {
		q = q.Where("total - consumed >= ?", availableAtLeast)
	}

	if filter.Note != "" {
		q = q.Where("note LIKE ?", fmt.Sprintf("%%%s%%", filter.Note))
	} else if slices.Contains(setFields, "Note") {
		q = q.Where("note = ''")
	}

	if filter.Search != "" {
		q = q.Where(
			models.DB.Where("note LIKE ?", fmt.Sprintf("%%%s%%", filter.Search)).Or(
				models.DB.Where("contributor LIKE ?", fmt.Sprintf("%%%s%%", filter.Search)),
			),
		)
	}

	var contributions []models.Contribution
	err = q.Find(&contributions).Error
	if err != nil {
		s := err.Error()
		c.JSON(status(err), ContributionListResponse{
			Error: &s,
		})
		return
	}

	// The contributor filter supports globbing, which sqlite can not
	// evaluate, so it is applied to the full result set here
	if slices.Contains(setFields, "Contributor") {
		matched := make([]models.Contribution, 0, len(contributions))
		for _, contribution := range contributions {
			if glob.Glob(filter.Contributor, contribution.Contributor) {
				matched = append(matched, contribution)
			}
		}
		contributions = matched
	}

	total := int64(len(contributions))

	limit := 50
	if slices.Contains(setFields, "Limit") {
		limit = filter.Limit
	}

	offset := int(filter.Offset)
	if offset > len(contributions) {
		offset = len(contributions)
	}
	contributions = contributions[offset:]

	if limit >= 0 && limit < len(contributions) {
		contributions = contributions[:limit]
	}

	data := make([]Contribution, 0, len(contributions))
	for _, contribution := range contributions {
		data = append(data, newContribution(c, contribution))
	}

	c.JSON(http.StatusOK, ContributionListResponse{
		Data: data,
		Pagination: &Pagination{
			Count:  len(data),
			Total:  total,
			Offset: filter.Offset,
			Limit:  limit,
		},
	})
}

// @Summary		Get contribution
// @Description	Returns a specific contribution
// @Tags			Contributions
// @Produce		json
// @Success		200	{object}	ContributionResponse
// @Failure		400	{object}	ContributionResponse
// @Failure		404	{object}	ContributionResponse
// @Failure		500	{object}	ContributionResponse
// @Param			id	path		URIID	true	"ID of the contribution"
// @Router			/v1/contributions/{id} [get]
func GetContribution(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ContributionResponse{
			Error: &e,
		})
		return
	}

	var contribution models.Contribution
	err = models.DB.First(&contribution, "id = ?", uri.ID.UUID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ContributionResponse{
			Error: &e,
		})
		return
	}

	data := newContribution(c, contribution)
	c.JSON(http.StatusOK, ContributionResponse{Data: &data})
}

// @Summary		Update contribution
// @Description	Updates an existing contribution. Only values to be updated need to be specified.
// @Tags			Contributions
// @Accept			json
// @Produce		json
// @Success		200				{object}	ContributionResponse
// @Failure		400				{object}	ContributionResponse
// @Failure		404				{object}	ContributionResponse
// @Failure		500				{object}	ContributionResponse
// @Param			id				path		URIID					true	"ID of the contribution"
// @Param			contribution	body		ContributionEditable	true	"Contribution"
// @Router			/v1/contributions/{id} [patch]
func UpdateContribution(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ContributionResponse{
			Error: &e,
		})
		return
	}

	var contribution models.Contribution
	err = models.DB.First(&contribution, "id = ?", uri.ID.UUID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ContributionResponse{
			Error: &e,
		})
		return
	}

	updateFields, err := httputil.GetBodyFields(c, ContributionEditable{})
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ContributionResponse{
			Error: &e,
		})
		return
	}

	var data ContributionEditable
	err = httputil.BindData(c, &data)
	if err != nil {
		return
	}

	// Changing the total changes the period's surplus, keep the close
	// workflow out while the row is written
	unlock, err := coreLedger.LockPeriod(contribution.PeriodID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ContributionResponse{
			Error: &e,
		})
		return
	}

	err = models.DB.Model(&contribution).Select("", updateFields...).Updates(data.model()).Error
	unlock()
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ContributionResponse{
			Error: &e,
		})
		return
	}

	apiResource := newContribution(c, contribution)
	c.JSON(http.StatusOK, ContributionResponse{Data: &apiResource})
}

// @Summary		Delete contribution
// @Description	Deletes a contribution. Contributions with allocated capacity can not be deleted.
// @Tags			Contributions
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Failure		500	{object}	httpError
// @Param			id	path		URIID	true	"ID of the contribution"
// @Router			/v1/contributions/{id} [delete]
func DeleteContribution(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	var contribution models.Contribution
	err = models.DB.First(&contribution, "id = ?", uri.ID.UUID).Error
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	unlock, err := coreLedger.LockPeriod(contribution.PeriodID)
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	err = models.DB.Delete(&contribution).Error
	unlock()
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}
