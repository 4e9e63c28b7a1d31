package handler

import (
	"net/http"

	"stakehub/internal/middleware"

	"github.com/gorilla/mux"
)

// Routes binds the handlers to the API. Stream is optional, as are
// Idempotency and RateLimit which need Redis.
type Routes struct {
	Pools       *PoolHandler
	Rounds      *RoundHandler
	Admin       *AdminHandler
	Stream      *StreamHandler
	Auth        *middleware.AuthMiddleware
	Idempotency *middleware.IdempotencyMiddleware
	RateLimit   *middleware.RateLimiter
}

// Register mounts reads without authentication and every mutation behind
// bearer auth.
func (rt Routes) Register(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	reads := api.Methods(http.MethodGet).Subrouter()
	if rt.RateLimit != nil {
		reads.Use(rt.RateLimit.Limit)
	}
	reads.HandleFunc("/policy", rt.Admin.Policy)
	reads.HandleFunc("/leaderboard", rt.Admin.Leaderboard)

	reads.HandleFunc("/pools/{id}", rt.Pools.GetPool)
	reads.HandleFunc("/pools/{id}/participants", rt.Pools.Participants)
	reads.HandleFunc("/pools/{id}/totals", rt.Pools.ChoiceTotals)
	reads.HandleFunc("/pools/{id}/stakes/{participant}/{choice}", rt.Pools.GetStake)
	reads.HandleFunc("/pools/{id}/pending/{participant}", rt.Pools.Pending)
	reads.HandleFunc("/pools/{id}/events", rt.Pools.Events)

	reads.HandleFunc("/rounds/{id}", rt.Rounds.GetRound)
	reads.HandleFunc("/rounds/{id}/participants", rt.Rounds.Participants)
	reads.HandleFunc("/rounds/{id}/totals", rt.Rounds.ChoiceTotals)
	reads.HandleFunc("/rounds/{id}/commitments/{participant}", rt.Rounds.GetCommitment)
	reads.HandleFunc("/rounds/{id}/pending/{participant}", rt.Rounds.Pending)
	reads.HandleFunc("/rounds/{id}/events", rt.Rounds.Events)
	if rt.Stream != nil {
		reads.HandleFunc("/stream", rt.Stream.Stream)
	}

	writes := api.Methods(http.MethodPost).Subrouter()
	writes.Use(rt.Auth.Authenticate)
	if rt.RateLimit != nil {
		writes.Use(rt.RateLimit.Limit)
	}
	if rt.Idempotency != nil {
		writes.Use(rt.Idempotency.Require)
	}

	writes.HandleFunc("/pools", rt.Pools.CreatePool)
	writes.HandleFunc("/pools/{id}/stake", rt.Pools.Stake)
	writes.HandleFunc("/pools/{id}/resolve", rt.Pools.Resolve)
	writes.HandleFunc("/pools/{id}/cancel", rt.Pools.Cancel)
	writes.HandleFunc("/pools/{id}/claim-reward", rt.Pools.ClaimReward)
	writes.HandleFunc("/pools/{id}/claim-refund", rt.Pools.ClaimRefund)
	writes.HandleFunc("/pools/{id}/reclaim-seed", rt.Pools.ReclaimSeed)

	writes.HandleFunc("/rounds", rt.Rounds.CreateRound)
	writes.HandleFunc("/rounds/{id}/commit", rt.Rounds.Commit)
	writes.HandleFunc("/rounds/{id}/reveal", rt.Rounds.Reveal)
	writes.HandleFunc("/rounds/{id}/finalize", rt.Rounds.Finalize)
	writes.HandleFunc("/rounds/{id}/cancel", rt.Rounds.Cancel)
	writes.HandleFunc("/rounds/{id}/claim-reward", rt.Rounds.ClaimReward)
	writes.HandleFunc("/rounds/{id}/claim-refund", rt.Rounds.ClaimRefund)
	writes.HandleFunc("/rounds/{id}/reclaim-seed", rt.Rounds.ReclaimSeed)

	writes.HandleFunc("/admin/platform-fee", rt.Admin.SetPlatformFee)
	writes.HandleFunc("/admin/fee-recipient", rt.Admin.SetFeeRecipient)
	writes.HandleFunc("/admin/admins/grant", rt.Admin.GrantAdmin)
	writes.HandleFunc("/admin/admins/revoke", rt.Admin.RevokeAdmin)
	writes.HandleFunc("/admin/resolvers/grant", rt.Admin.GrantResolver)
	writes.HandleFunc("/admin/resolvers/revoke", rt.Admin.RevokeResolver)
	writes.HandleFunc("/admin/pause", rt.Admin.Pause)
	writes.HandleFunc("/admin/unpause", rt.Admin.Unpause)
}
