package v1

import (
	"net/http"

	"github.com/familos/backend/internal/distribution"
	"github.com/familos/backend/internal/httputil"
	"github.com/familos/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	fam_uuid "github.com/familos/backend/internal/uuid"
)

// RegisterProposalRoutes registers the routes for proposals with
// the RouterGroup that is passed.
func RegisterProposalRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", OptionsProposals)
	r.POST("", CreateProposal)
}

// ProposalCreate is the request body for computing a distribution proposal.
type ProposalCreate struct {
	PeriodID fam_uuid.UUID         `json:"periodId" example:"438cc6c0-9baf-49fd-a75a-d76bd5cab19c"` // ID of the period to draw from
	Amount   decimal.Decimal       `json:"amount" example:"84.12"`                                  // The amount to distribute
	Strategy distribution.Strategy `json:"strategy" example:"balanced"`                             // One of: balanced, largest-first, smallest-first, proportional, minimum-sources
}

// Proposal is the API representation of a computed distribution.
//
// A proposal is a snapshot, not a hold: no capacity is reserved until the
// proposal is committed as a payment, and the commit re-validates it against
// the contributions as they are then.
type Proposal struct {
	Shares    []Share         `json:"shares"`                      // The proposed split over contributions
	Total     decimal.Decimal `json:"total" example:"84.12"`       // Sum over all shares
	Shortfall decimal.Decimal `json:"shortfall" example:"0"`       // The uncovered remainder, zero when fully covered
	Covered   bool            `json:"covered" example:"true"`      // True when the shares cover the requested amount
	Strategy  string          `json:"strategy" example:"balanced"` // The strategy that produced the proposal
}

type ProposalResponse struct {
	Error *string   `json:"error" example:"the specified distribution strategy is invalid"` // The error, if any occurred
	Data  *Proposal `json:"data"`                                                           // The computed proposal
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Proposals
// @Success		204
// @Router			/v1/proposals [options]
func OptionsProposals(c *gin.Context) {
	httputil.OptionsPost(c)
}

// @Summary		Compute proposal
// @Description	Computes how an amount could be split over the period's contributions with the requested strategy. An under-funded pool is not an error, the proposal reports the shortfall instead.
// @Tags			Proposals
// @Accept			json
// @Produce		json
// @Success		200			{object}	ProposalResponse
// @Failure		400			{object}	ProposalResponse
// @Failure		404			{object}	ProposalResponse
// @Failure		500			{object}	ProposalResponse
// @Param			proposal	body		ProposalCreate	true	"Proposal parameters"
// @Router			/v1/proposals [post]
func CreateProposal(c *gin.Context) {
	var create ProposalCreate

	err := httputil.BindData(c, &create)
	if err != nil {
		return
	}

	if create.PeriodID.UUID == uuid.Nil {
		e := errPeriodNotSet.Error()
		c.JSON(http.StatusBadRequest, ProposalResponse{
			Error: &e,
		})
		return
	}

	if !slices.Contains(distribution.Strategies, create.Strategy) {
		e := errStrategyInvalid.Error()
		c.JSON(http.StatusBadRequest, ProposalResponse{
			Error: &e,
		})
		return
	}

	// Verify the period exists so an unknown ID is a 404, not an empty
	// proposal
	err = models.DB.First(&models.Period{}, "id = ?", create.PeriodID.UUID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProposalResponse{
			Error: &e,
		})
		return
	}

	sources, err := coreLedger.Sources(create.PeriodID.UUID)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProposalResponse{
			Error: &e,
		})
		return
	}

	proposal, err := distribution.Propose(create.Strategy, create.Amount, sources)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProposalResponse{
			Error: &e,
		})
		return
	}

	shares := make([]Share, 0, len(proposal.Shares))
	for _, s := range proposal.Shares {
		shares = append(shares, Share{
			ContributionID: fam_uuid.UUID{UUID: s.ContributionID},
			Contributor:    s.Contributor,
			Amount:         s.Amount,
		})
	}

	c.JSON(http.StatusOK, ProposalResponse{
		Data: &Proposal{
			Shares:    shares,
			Total:     proposal.Total,
			Shortfall: proposal.Shortfall,
			Covered:   proposal.Covered(),
			Strategy:  string(create.Strategy),
		},
	})
}
