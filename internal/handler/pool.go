package handler

import (
	"context"
	"net/http"
	"time"

	"stakehub/internal/domain"
	"stakehub/internal/journal"
	"stakehub/internal/pool"
	"stakehub/internal/sequencer"
	"stakehub/pkg/logger"
	"stakehub/pkg/validator"

	"github.com/shopspring/decimal"
)

type CreatePoolBody struct {
	ID            string          `json:"id" validate:"required,max=64"`
	ChoiceCount   uint8           `json:"choice_count" validate:"required"`
	Deadline      time.Time       `json:"deadline" validate:"required"`
	MinStake      decimal.Decimal `json:"min_stake" validate:"decimal_positive"`
	MaxStake      decimal.Decimal `json:"max_stake" validate:"decimal_positive"`
	Seed          decimal.Decimal `json:"seed"`
	CreatorFeeBps uint16          `json:"creator_fee_bps" validate:"lte=10000"`
}

type StakeBody struct {
	Choice uint8           `json:"choice"`
	Amount decimal.Decimal `json:"amount" validate:"decimal_positive"`
}

type ResolveBody struct {
	WinningChoice uint8 `json:"winning_choice"`
}

type CancelBody struct {
	Reason string `json:"reason" validate:"max=256"`
}

// PendingView is what a participant could claim right now.
type PendingView struct {
	Reward decimal.Decimal `json:"reward"`
	Refund decimal.Decimal `json:"refund"`
}

// ClaimResult is returned by every claim endpoint.
type ClaimResult struct {
	Amount decimal.Decimal `json:"amount"`
}

// PoolHandler manages pool endpoints.
type PoolHandler struct {
	base
	service *pool.Service
	events  journal.Sink
}

func NewPoolHandler(service *pool.Service, events journal.Sink, seq *sequencer.Sequencer, val *validator.Validator, log logger.Logger) *PoolHandler {
	return &PoolHandler{
		base:    base{seq: seq, validator: val, logger: log},
		service: service,
		events:  events,
	}
}

func (h *PoolHandler) CreatePool(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var body CreatePoolBody
	if !h.decode(w, r, &body) {
		return
	}

	p, err := sequencer.Do(r.Context(), h.seq, func(ctx context.Context) (*domain.Pool, error) {
		return h.service.CreatePool(ctx, caller, pool.CreatePoolRequest{
			ID:            domain.PoolID(body.ID),
			ChoiceCount:   body.ChoiceCount,
			Deadline:      body.Deadline,
			MinStake:      body.MinStake,
			MaxStake:      body.MaxStake,
			Seed:          body.Seed,
			CreatorFeeBps: body.CreatorFeeBps,
		})
	})
	if err != nil {
		h.fail(w, r, "create_pool", err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *PoolHandler) Stake(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var body StakeBody
	if !h.decode(w, r, &body) {
		return
	}

	st, err := sequencer.Do(r.Context(), h.seq, func(ctx context.Context) (*domain.UserStake, error) {
		return h.service.Stake(ctx, caller, poolID(r), domain.Choice(body.Choice), body.Amount)
	})
	if err != nil {
		h.fail(w, r, "stake", err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (h *PoolHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var body ResolveBody
	if !h.decode(w, r, &body) {
		return
	}

	p, err := sequencer.Do(r.Context(), h.seq, func(ctx context.Context) (*domain.Pool, error) {
		return h.service.Resolve(ctx, caller, poolID(r), domain.Choice(body.WinningChoice))
	})
	if err != nil {
		h.fail(w, r, "resolve", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *PoolHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var body CancelBody
	if !h.decode(w, r, &body) {
		return
	}

	p, err := sequencer.Do(r.Context(), h.seq, func(ctx context.Context) (*domain.Pool, error) {
		return h.service.Cancel(ctx, caller, poolID(r), body.Reason)
	})
	if err != nil {
		h.fail(w, r, "cancel", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *PoolHandler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	h.claimWith(w, r, "claim_reward", h.service.ClaimReward)
}

func (h *PoolHandler) ClaimRefund(w http.ResponseWriter, r *http.Request) {
	h.claimWith(w, r, "claim_refund", h.service.ClaimRefund)
}

func (h *PoolHandler) ReclaimSeed(w http.ResponseWriter, r *http.Request) {
	h.claimWith(w, r, "reclaim_seed", h.service.ReclaimSeed)
}

type claimFunc func(ctx context.Context, caller domain.Address, id domain.PoolID) (decimal.Decimal, error)

func (b *base) claimWith(w http.ResponseWriter, r *http.Request, op string, fn claimFunc) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	amount, err := sequencer.Do(r.Context(), b.seq, func(ctx context.Context) (decimal.Decimal, error) {
		return fn(ctx, caller, poolID(r))
	})
	if err != nil {
		b.fail(w, r, op, err)
		return
	}
	respondJSON(w, http.StatusOK, ClaimResult{Amount: amount})
}

func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	p, err := sequencer.Do(r.Context(), h.seq, func(context.Context) (*domain.Pool, error) {
		return h.service.GetPool(poolID(r))
	})
	if err != nil {
		h.fail(w, r, "get_pool", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *PoolHandler) GetStake(w http.ResponseWriter, r *http.Request) {
	participant, ok := addressVar(w, r, "participant")
	if !ok {
		return
	}
	choice, ok := choiceVar(w, r, "choice")
	if !ok {
		return
	}
	st, err := sequencer.Do(r.Context(), h.seq, func(context.Context) (*domain.UserStake, error) {
		return h.service.GetStake(poolID(r), participant, choice)
	})
	if err != nil {
		h.fail(w, r, "get_stake", err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (h *PoolHandler) Participants(w http.ResponseWriter, r *http.Request) {
	list, err := sequencer.Do(r.Context(), h.seq, func(context.Context) ([]domain.Address, error) {
		return h.service.Participants(poolID(r))
	})
	if err != nil {
		h.fail(w, r, "participants", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"participants": list,
		"count":        len(list),
	})
}

func (h *PoolHandler) ChoiceTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := sequencer.Do(r.Context(), h.seq, func(context.Context) ([]decimal.Decimal, error) {
		return h.service.ChoiceTotals(poolID(r))
	})
	if err != nil {
		h.fail(w, r, "choice_totals", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"choice_totals": totals})
}

func (h *PoolHandler) Pending(w http.ResponseWriter, r *http.Request) {
	participant, ok := addressVar(w, r, "participant")
	if !ok {
		return
	}
	view, err := sequencer.Do(r.Context(), h.seq, func(context.Context) (PendingView, error) {
		reward, err := h.service.PendingReward(poolID(r), participant)
		if err != nil {
			return PendingView{}, err
		}
		refund, err := h.service.PendingRefund(poolID(r), participant)
		if err != nil {
			return PendingView{}, err
		}
		return PendingView{Reward: reward, Refund: refund}, nil
	})
	if err != nil {
		h.fail(w, r, "pending", err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *PoolHandler) Events(w http.ResponseWriter, r *http.Request) {
	listEvents(&h.base, h.events, w, r)
}

func listEvents(b *base, sink journal.Sink, w http.ResponseWriter, r *http.Request) {
	events, err := sequencer.Do(r.Context(), b.seq, func(ctx context.Context) ([]journal.Event, error) {
		return sink.List(ctx, poolID(r))
	})
	if err != nil {
		b.fail(w, r, "events", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
