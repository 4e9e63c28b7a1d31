package handler

import (
	"context"
	"net/http"
	"time"

	"stakehub/internal/commitreveal"
	"stakehub/internal/domain"
	"stakehub/internal/journal"
	"stakehub/internal/sequencer"
	"stakehub/pkg/logger"
	"stakehub/pkg/validator"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type CreateRoundBody struct {
	ID                    string          `json:"id" validate:"required,max=64"`
	ChoiceCount           uint8           `json:"choice_count" validate:"required"`
	CommitDurationSeconds int64           `json:"commit_duration_seconds" validate:"gt=0"`
	RevealDurationSeconds int64           `json:"reveal_duration_seconds" validate:"gt=0"`
	MinStake              decimal.Decimal `json:"min_stake" validate:"decimal_positive"`
	MaxStake              decimal.Decimal `json:"max_stake" validate:"decimal_positive"`
	Seed                  decimal.Decimal `json:"seed"`
	CreatorFeeBps         uint16          `json:"creator_fee_bps" validate:"lte=10000"`
}

type CommitBody struct {
	Hash   string          `json:"hash" validate:"required,hex32"`
	Amount decimal.Decimal `json:"amount" validate:"decimal_positive"`
}

type RevealBody struct {
	Choice uint8  `json:"choice"`
	Secret string `json:"secret" validate:"required,hex32"`
}

// RoundHandler manages commit-reveal round endpoints.
type RoundHandler struct {
	base
	service *commitreveal.Service
	events  journal.Sink
}

func NewRoundHandler(service *commitreveal.Service, events journal.Sink, seq *sequencer.Sequencer, val *validator.Validator, log logger.Logger) *RoundHandler {
	return &RoundHandler{
		base:    base{seq: seq, validator: val, logger: log},
		service: service,
		events:  events,
	}
}

func (h *RoundHandler) CreateRound(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var body CreateRoundBody
	if !h.decode(w, r, &body) {
		return
	}

	round, err := sequencer.Do(r.Context(), h.seq, func(ctx context.Context) (*domain.Round, error) {
		return h.service.CreateRound(ctx, caller, commitreveal.CreateRoundRequest{
			ID:             domain.PoolID(body.ID),
			ChoiceCount:    body.ChoiceCount,
			CommitDuration: time.Duration(body.CommitDurationSeconds) * time.Second,
			RevealDuration: time.Duration(body.RevealDurationSeconds) * time.Second,
			MinStake:       body.MinStake,
			MaxStake:       body.MaxStake,
			Seed:           body.Seed,
			CreatorFeeBps:  body.CreatorFeeBps,
		})
	})
	if err != nil {
		h.fail(w, r, "create_round", err)
		return
	}
	respondJSON(w, http.StatusCreated, round)
}

func (h *RoundHandler) Commit(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var body CommitBody
	if !h.decode(w, r, &body) {
		return
	}

	c, err := sequencer.Do(r.Context(), h.seq, func(ctx context.Context) (*domain.Commitment, error) {
		return h.service.Commit(ctx, caller, poolID(r), common.HexToHash(body.Hash), body.Amount)
	})
	if err != nil {
		h.fail(w, r, "commit", err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *RoundHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var body RevealBody
	if !h.decode(w, r, &body) {
		return
	}

	c, err := sequencer.Do(r.Context(), h.seq, func(ctx context.Context) (*domain.Commitment, error) {
		return h.service.Reveal(ctx, caller, poolID(r), domain.Choice(body.Choice), common.HexToHash(body.Secret))
	})
	if err != nil {
		h.fail(w, r, "reveal", err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *RoundHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var body ResolveBody
	if !h.decode(w, r, &body) {
		return
	}

	round, err := sequencer.Do(r.Context(), h.seq, func(ctx context.Context) (*domain.Round, error) {
		return h.service.Finalize(ctx, caller, poolID(r), domain.Choice(body.WinningChoice))
	})
	if err != nil {
		h.fail(w, r, "finalize", err)
		return
	}
	respondJSON(w, http.StatusOK, round)
}

func (h *RoundHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var body CancelBody
	if !h.decode(w, r, &body) {
		return
	}

	round, err := sequencer.Do(r.Context(), h.seq, func(ctx context.Context) (*domain.Round, error) {
		return h.service.Cancel(ctx, caller, poolID(r), body.Reason)
	})
	if err != nil {
		h.fail(w, r, "cancel_round", err)
		return
	}
	respondJSON(w, http.StatusOK, round)
}

func (h *RoundHandler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	h.claimWith(w, r, "round_claim_reward", h.service.ClaimReward)
}

func (h *RoundHandler) ClaimRefund(w http.ResponseWriter, r *http.Request) {
	h.claimWith(w, r, "round_claim_refund", h.service.ClaimRefund)
}

func (h *RoundHandler) ReclaimSeed(w http.ResponseWriter, r *http.Request) {
	h.claimWith(w, r, "round_reclaim_seed", h.service.ReclaimSeed)
}

func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	round, err := sequencer.Do(r.Context(), h.seq, func(context.Context) (*domain.Round, error) {
		return h.service.GetRound(poolID(r))
	})
	if err != nil {
		h.fail(w, r, "get_round", err)
		return
	}
	respondJSON(w, http.StatusOK, round)
}

func (h *RoundHandler) GetCommitment(w http.ResponseWriter, r *http.Request) {
	participant, ok := addressVar(w, r, "participant")
	if !ok {
		return
	}
	c, err := sequencer.Do(r.Context(), h.seq, func(context.Context) (*domain.Commitment, error) {
		return h.service.GetCommitment(poolID(r), participant)
	})
	if err != nil {
		h.fail(w, r, "get_commitment", err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *RoundHandler) Participants(w http.ResponseWriter, r *http.Request) {
	list, err := sequencer.Do(r.Context(), h.seq, func(context.Context) ([]domain.Address, error) {
		return h.service.Participants(poolID(r))
	})
	if err != nil {
		h.fail(w, r, "round_participants", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"participants": list,
		"count":        len(list),
	})
}

func (h *RoundHandler) ChoiceTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := sequencer.Do(r.Context(), h.seq, func(context.Context) ([]decimal.Decimal, error) {
		return h.service.ChoiceTotals(poolID(r))
	})
	if err != nil {
		h.fail(w, r, "round_choice_totals", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"choice_totals": totals})
}

func (h *RoundHandler) Pending(w http.ResponseWriter, r *http.Request) {
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
		h.fail(w, r, "round_pending", err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *RoundHandler) Events(w http.ResponseWriter, r *http.Request) {
	listEvents(&h.base, h.events, w, r)
}
