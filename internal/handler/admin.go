package handler

import (
	"context"
	"net/http"
	"strconv"

	"stakehub/internal/access"
	"stakehub/internal/domain"
	"stakehub/internal/middleware"
	"stakehub/internal/reputation"
	"stakehub/internal/sequencer"
	"stakehub/pkg/logger"
	"stakehub/pkg/validator"

	"github.com/ethereum/go-ethereum/common"
)

type AccountBody struct {
	Account string `json:"account" validate:"required,eth_addr"`
}

type FeeBody struct {
	PlatformFeeBps uint16 `json:"platform_fee_bps" validate:"lte=10000"`
}

// AdminHandler serves the policy surface and the leaderboard.
type AdminHandler struct {
	base
	policy *access.Policy
	ranker reputation.Ranker
}

func NewAdminHandler(policy *access.Policy, ranker reputation.Ranker, seq *sequencer.Sequencer, val *validator.Validator, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		base:   base{seq: seq, validator: val, logger: log},
		policy: policy,
		ranker: ranker,
	}
}

func (h *AdminHandler) Policy(w http.ResponseWriter, r *http.Request) {
	view, err := sequencer.Do(r.Context(), h.seq, func(context.Context) (access.View, error) {
		return h.policy.Snapshot(), nil
	})
	if err != nil {
		h.fail(w, r, "policy", err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *AdminHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	entries, err := h.ranker.TopN(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "leaderboard", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *AdminHandler) SetPlatformFee(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var body FeeBody
	if !h.decode(w, r, &body) {
		return
	}
	h.apply(w, r, "set_platform_fee", func() error {
		return h.policy.SetPlatformFee(caller, body.PlatformFeeBps)
	})
}

func (h *AdminHandler) SetFeeRecipient(w http.ResponseWriter, r *http.Request) {
	h.withAccount(w, r, "set_fee_recipient", h.policy.SetFeeRecipient)
}

func (h *AdminHandler) GrantAdmin(w http.ResponseWriter, r *http.Request) {
	h.withAccount(w, r, "grant_admin", h.policy.GrantAdmin)
}

func (h *AdminHandler) RevokeAdmin(w http.ResponseWriter, r *http.Request) {
	h.withAccount(w, r, "revoke_admin", h.policy.RevokeAdmin)
}

func (h *AdminHandler) GrantResolver(w http.ResponseWriter, r *http.Request) {
	h.withAccount(w, r, "grant_resolver", h.policy.GrantResolver)
}

func (h *AdminHandler) RevokeResolver(w http.ResponseWriter, r *http.Request) {
	h.withAccount(w, r, "revoke_resolver", h.policy.RevokeResolver)
}

func (h *AdminHandler) Pause(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	h.apply(w, r, "pause", func() error { return h.policy.Pause(caller) })
}

func (h *AdminHandler) Unpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	h.apply(w, r, "unpause", func() error { return h.policy.Unpause(caller) })
}

func (h *AdminHandler) withAccount(w http.ResponseWriter, r *http.Request, op string, fn func(caller, account domain.Address) error) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var body AccountBody
	if !h.decode(w, r, &body) {
		return
	}
	account := common.HexToAddress(body.Account)
	h.apply(w, r, op, func() error { return fn(caller, account) })
}

// apply runs a policy change on the sequencer and answers with the new policy.
func (h *AdminHandler) apply(w http.ResponseWriter, r *http.Request, op string, fn func() error) {
	view, err := sequencer.Do(r.Context(), h.seq, func(context.Context) (access.View, error) {
		if err := fn(); err != nil {
			return access.View{}, err
		}
		return h.policy.Snapshot(), nil
	})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	caller, _ := middleware.CallerFromContext(r.Context())
	h.logger.Info("Policy changed", map[string]interface{}{
		"operation": op,
		"by":        caller,
	})
	respondJSON(w, http.StatusOK, view)
}
