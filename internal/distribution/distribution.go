// Package distribution implements the strategies that propose how to split
// a payment amount over the contributions of a period.
//
// Strategies are pure: they never touch the ledger, never mutate their
// inputs and never fail. Not being able to fully cover the requested amount
// is an expected outcome, reported as the proposal's shortfall, not as an
// error. Callers decide how to handle under-funding.
package distribution

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Strategy names a distribution algorithm.
type Strategy string

const (
	// Balanced splits the amount evenly over up to three contributions
	// with the highest available capacity.
	Balanced Strategy = "balanced"
	// LargestFirst greedily consumes contributions in descending order of
	// available capacity.
	LargestFirst Strategy = "largest-first"
	// SmallestFirst greedily consumes contributions in ascending order of
	// available capacity, retiring small pledges first.
	SmallestFirst Strategy = "smallest-first"
	// Proportional allocates each contribution a share proportional to its
	// part of the total available capacity.
	Proportional Strategy = "proportional"
	// MinimumSources covers the amount with as few contributions as
	// possible, preferring the cover with the least unused slack.
	MinimumSources Strategy = "minimum-sources"
)

// Strategies lists all known strategy names.
var Strategies = []Strategy{Balanced, LargestFirst, SmallestFirst, Proportional, MinimumSources}

var (
	ErrUnknownStrategy   = errors.New("the distribution strategy does not exist")
	ErrAmountNotPositive = errors.New("the amount to distribute must be larger than zero")

	ErrShareNotPositive      = errors.New("every share amount must be larger than zero")
	ErrShareUnknownSource    = errors.New("a share references a contribution that has no available balance")
	ErrShareExceedsAvailable = errors.New("a share exceeds the available balance of its contribution")
	ErrProposalSumMismatch   = errors.New("the proposal does not sum to the required amount")
	ErrProposalShortfall     = errors.New("the available balance does not cover the required amount")
)

// Source is a contribution with available capacity, as seen at proposal time.
type Source struct {
	ID          uuid.UUID       `json:"id"`
	Contributor string          `json:"contributor"`
	Available   decimal.Decimal `json:"available"`
}

// Share assigns a part of the payment amount to one contribution.
type Share struct {
	ContributionID uuid.UUID       `json:"contributionId"`
	Contributor    string          `json:"contributor"`
	Amount         decimal.Decimal `json:"amount"`
}

// Proposal is a proposed split of a payment amount over contributions.
type Proposal struct {
	Shares []Share `json:"shares"`
	// Total is the sum of all share amounts. It equals the requested
	// amount unless the pool could not cover it.
	Total decimal.Decimal `json:"total"`
	// Shortfall is the part of the requested amount the pool could not
	// cover. Zero when the proposal fully funds the payment.
	Shortfall decimal.Decimal `json:"shortfall"`
}

// Covered reports whether the proposal fully funds the requested amount.
func (p Proposal) Covered() bool {
	return p.Shortfall.IsZero()
}

// Propose runs the named strategy for amount over sources.
//
// The only errors are bad caller input: an unknown strategy name or a
// non-positive amount. Shortfall never is an error.
func Propose(strategy Strategy, amount decimal.Decimal, sources []Source) (Proposal, error) {
	if !amount.IsPositive() {
		return Proposal{}, ErrAmountNotPositive
	}

	usable := withAvailable(sources)

	// A pool that can not fully cover the amount is consumed completely by
	// every strategy, the difference only shows in how a sufficient pool
	// is split.
	if total(usable).LessThanOrEqual(amount) {
		return finish(amount, takeAll(usable)), nil
	}

	switch strategy {
	case Balanced:
		return finish(amount, balanced(amount, usable)), nil
	case LargestFirst:
		return finish(amount, greedy(amount, sortedByAvailable(usable, descending))), nil
	case SmallestFirst:
		return finish(amount, greedy(amount, sortedByAvailable(usable, ascending))), nil
	case Proportional:
		return finish(amount, proportional(amount, usable)), nil
	case MinimumSources:
		return finish(amount, minimumSources(amount, usable)), nil
	}

	return Proposal{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
}

// Validate checks a proposal against the required amount and the currently
// available balances. Balances are re-checked at validation time, not just
// at proposal time, to catch staleness.
func Validate(proposal Proposal, required decimal.Decimal, sources []Source) error {
	if !required.IsPositive() {
		return ErrAmountNotPositive
	}

	available := make(map[uuid.UUID]decimal.Decimal, len(sources))
	pool := decimal.Zero
	for _, source := range sources {
		if source.Available.IsPositive() {
			available[source.ID] = source.Available
			pool = pool.Add(source.Available)
		}
	}

	sum := decimal.Zero
	for _, share := range proposal.Shares {
		if !share.Amount.IsPositive() {
			return ErrShareNotPositive
		}

		balance, ok := available[share.ContributionID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrShareUnknownSource, share.ContributionID)
		}

		if share.Amount.GreaterThan(balance) {
			return fmt.Errorf("%w: contribution %s has %s available, share is %s", ErrShareExceedsAvailable, share.ContributionID, balance, share.Amount)
		}

		// Multiple shares may not consume the same capacity twice
		available[share.ContributionID] = balance.Sub(share.Amount)
		sum = sum.Add(share.Amount)
	}

	if !sum.Equal(required) {
		if pool.LessThan(required) {
			return fmt.Errorf("%w: %s short", ErrProposalShortfall, required.Sub(pool))
		}
		return fmt.Errorf("%w: %s proposed, %s required", ErrProposalSumMismatch, sum, required)
	}

	return nil
}

type direction int

const (
	descending direction = iota
	ascending
)

// withAvailable filters out sources without capacity. Strategy inputs come
// from snapshots that may already contain fully consumed contributions.
func withAvailable(sources []Source) []Source {
	usable := make([]Source, 0, len(sources))
	for _, source := range sources {
		if source.Available.IsPositive() {
			usable = append(usable, source)
		}
	}
	return usable
}

func total(sources []Source) decimal.Decimal {
	sum := decimal.Zero
	for _, source := range sources {
		sum = sum.Add(source.Available)
	}
	return sum
}

// sortedByAvailable returns a copy sorted by available capacity. The sort is
// stable so that sources with equal capacity keep their input order.
func sortedByAvailable(sources []Source, dir direction) []Source {
	sorted := make([]Source, len(sources))
	copy(sorted, sources)

	sort.SliceStable(sorted, func(i, j int) bool {
		if dir == ascending {
			return sorted[i].Available.LessThan(sorted[j].Available)
		}
		return sorted[i].Available.GreaterThan(sorted[j].Available)
	})

	return sorted
}

// takeAll consumes every source completely.
func takeAll(sources []Source) []Share {
	shares := make([]Share, 0, len(sources))
	for _, source := range sources {
		shares = append(shares, share(source, source.Available))
	}
	return shares
}

// greedy consumes the sources in the given order until amount is covered.
func greedy(amount decimal.Decimal, sources []Source) []Share {
	var shares []Share

	remaining := amount
	for _, source := range sources {
		if !remaining.IsPositive() {
			break
		}

		take := decimal.Min(remaining, source.Available)
		shares = append(shares, share(source, take))
		remaining = remaining.Sub(take)
	}

	return shares
}

// balanced splits the amount evenly over up to three sources with the
// highest available capacity. The last selected source absorbs the rounding
// remainder. A share that would exceed its source's capacity is capped and
// the residual cascades to the next largest source.
func balanced(amount decimal.Decimal, sources []Source) []Share {
	sorted := sortedByAvailable(sources, descending)

	count := 3
	if len(sorted) < count {
		count = len(sorted)
	}

	even := amount.Div(decimal.NewFromInt(int64(count)))

	wanted := make([]decimal.Decimal, count)
	assigned := decimal.Zero
	for i := 0; i < count-1; i++ {
		wanted[i] = even
		assigned = assigned.Add(even)
	}
	// The last selected source absorbs the rounding remainder
	wanted[count-1] = amount.Sub(assigned)

	return capAndCascade(amount, sorted, wanted)
}

// proportional allocates each source a share proportional to its part of
// the total available capacity. The last source absorbs the rounding
// remainder; capping residuals cascade to the following sources.
func proportional(amount decimal.Decimal, sources []Source) []Share {
	pool := total(sources)

	wanted := make([]decimal.Decimal, len(sources))
	assigned := decimal.Zero
	for i, source := range sources {
		if i == len(sources)-1 {
			wanted[i] = amount.Sub(assigned)
			break
		}

		wanted[i] = amount.Mul(source.Available).Div(pool)
		assigned = assigned.Add(wanted[i])
	}

	return capAndCascade(amount, sources, wanted)
}

// capAndCascade turns wanted amounts into shares, capping every share at its
// source's capacity. Amounts cut off by a cap cascade onto the following
// sources; sources beyond the wanted list may be drawn on as a last resort
// so a sufficient pool always covers the amount in full.
func capAndCascade(amount decimal.Decimal, sources []Source, wanted []decimal.Decimal) []Share {
	shares := make([]Share, 0, len(wanted))
	taken := make([]decimal.Decimal, len(sources))

	assigned := decimal.Zero
	for i := range wanted {
		take := decimal.Min(wanted[i], sources[i].Available)
		if take.IsPositive() {
			shares = append(shares, share(sources[i], take))
			taken[i] = take
			assigned = assigned.Add(take)
		}
	}

	// Cascade whatever the caps cut off onto remaining capacity, in
	// source order.
	residual := amount.Sub(assigned)
	for i := range sources {
		if !residual.IsPositive() {
			break
		}

		capacity := sources[i].Available.Sub(taken[i])
		if !capacity.IsPositive() {
			continue
		}

		take := decimal.Min(residual, capacity)
		residual = residual.Sub(take)

		if taken[i].IsPositive() {
			// Top up the existing share for this source
			for j := range shares {
				if shares[j].ContributionID == sources[i].ID {
					shares[j].Amount = shares[j].Amount.Add(take)
					break
				}
			}
		} else {
			shares = append(shares, share(sources[i], take))
		}
		taken[i] = taken[i].Add(take)
	}

	return shares
}

// Pools beyond this size skip the exhaustive subset search.
const exhaustiveSearchLimit = 20

// minimumSources selects the smallest set of sources whose combined capacity
// covers the amount, preferring, among covers of equal size, the one with
// the least unused slack. For large pools the exhaustive search is skipped
// in favor of the descending greedy, which is optimal in the common case of
// one source covering everything.
func minimumSources(amount decimal.Decimal, sources []Source) []Share {
	sorted := sortedByAvailable(sources, descending)

	if len(sorted) > exhaustiveSearchLimit {
		return greedy(amount, sorted)
	}

	best := bestCover(amount, sorted)
	if best == nil {
		return greedy(amount, sorted)
	}

	return greedy(amount, best)
}

// bestCover searches covers by ascending cardinality and returns the first
// cardinality's cover with minimal total capacity (minimal slack).
func bestCover(amount decimal.Decimal, sources []Source) []Source {
	for size := 1; size <= len(sources); size++ {
		var best []Source
		bestTotal := decimal.Zero

		combinations(len(sources), size, func(indexes []int) {
			sum := decimal.Zero
			for _, index := range indexes {
				sum = sum.Add(sources[index].Available)
			}

			if sum.LessThan(amount) {
				return
			}

			if best == nil || sum.LessThan(bestTotal) {
				best = make([]Source, 0, size)
				for _, index := range indexes {
					best = append(best, sources[index])
				}
				bestTotal = sum
			}
		})

		if best != nil {
			return best
		}
	}

	return nil
}

// combinations calls visit with every k-element index combination of n.
func combinations(n, k int, visit func([]int)) {
	indexes := make([]int, k)

	var recurse func(start, depth int)
	recurse = func(start, depth int) {
		if depth == k {
			visit(indexes)
			return
		}

		for i := start; i < n; i++ {
			indexes[depth] = i
			recurse(i+1, depth+1)
		}
	}

	recurse(0, 0)
}

func share(source Source, amount decimal.Decimal) Share {
	return Share{
		ContributionID: source.ID,
		Contributor:    source.Contributor,
		Amount:         amount,
	}
}

// finish assembles the proposal and computes the shortfall.
func finish(amount decimal.Decimal, shares []Share) Proposal {
	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s.Amount)
	}

	shortfall := amount.Sub(sum)
	if shortfall.IsNegative() {
		shortfall = decimal.Zero
	}

	return Proposal{
		Shares:    shares,
		Total:     sum,
		Shortfall: shortfall,
	}
}
