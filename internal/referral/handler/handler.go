package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tair/lesson-payments/internal/referral/usecase/command"
	"github.com/tair/lesson-payments/internal/referral/usecase/query"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/httpx"
	"github.com/tair/lesson-payments/pkg/middleware"
)

// Handlers groups the referral use cases served over HTTP
type Handlers struct {
	Profile      *query.GetProfileHandler
	Transactions *query.ListTransactionsHandler
	Referrals    *query.ListReferralsHandler
	BankDetails  *command.UpdateBankDetailsHandler
	Invite       *command.InviteHandler
	Request      *command.RequestPayoutHandler
	Payout       *command.ProcessPayoutHandler
}

// ReferralHandler handles HTTP requests for referrals and payouts
type ReferralHandler struct {
	h    Handlers
	auth *middleware.Authenticator
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(h Handlers, auth *middleware.Authenticator) *ReferralHandler {
	return &ReferralHandler{h: h, auth: auth}
}

type payoutRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

// GetMyProfile handles GET /referrals/me
func (h *ReferralHandler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())

	profile, err := h.h.Profile.Handle(r.Context(), p.ID)
	if err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}
	httpx.RespondOK(w, http.StatusOK, "", profile)
}

// UpdateBankDetails handles PUT /referrals/me/bank-details
func (h *ReferralHandler) UpdateBankDetails(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())

	var cmd command.UpdateBankDetailsCommand
	if err := httpx.DecodeAndValidate(r, &cmd); err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}
	cmd.UserID = p.ID

	profile, err := h.h.BankDetails.Handle(r.Context(), cmd)
	if err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}
	httpx.RespondOK(w, http.StatusOK, "Bank details updated", query.NewProfileView(profile))
}

// ListMyTransactions handles GET /referrals/me/transactions
func (h *ReferralHandler) ListMyTransactions(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())
	limit, offset := httpx.Pagination(r)

	txs, err := h.h.Transactions.Handle(r.Context(), query.ListTransactionsQuery{
		ReferrerID: p.ID,
		Status:     r.URL.Query().Get("status"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}
	httpx.RespondOK(w, http.StatusOK, "", txs)
}

// ListMyReferrals handles GET /referrals/me/referrals
func (h *ReferralHandler) ListMyReferrals(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())
	limit, offset := httpx.Pagination(r)

	refs, err := h.h.Referrals.Handle(r.Context(), p.ID, limit, offset)
	if err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}
	httpx.RespondOK(w, http.StatusOK, "", refs)
}

// Invite handles POST /referrals/invite
func (h *ReferralHandler) Invite(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())

	var cmd command.InviteCommand
	if err := httpx.DecodeAndValidate(r, &cmd); err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}
	cmd.ReferrerID = p.ID
	cmd.ReferrerEmail = p.Email

	ref, err := h.h.Invite.Handle(r.Context(), cmd)
	if err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}
	httpx.RespondOK(w, http.StatusCreated, "Referral created", ref)
}

// RequestPayout handles POST /referrals/me/payout-request
func (h *ReferralHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())

	res, err := h.h.Request.Handle(r.Context(), p.ID)
	if err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}
	httpx.RespondOK(w, http.StatusAccepted, "Payout request sent", res)
}

// ProcessMyPayout handles POST /referrals/me/payout
func (h *ReferralHandler) ProcessMyPayout(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())
	h.processPayout(w, r, p.ID, false)
}

// ProcessPayoutForUser handles POST /referrals/admin/payout/{userId}
func (h *ReferralHandler) ProcessPayoutForUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["userId"], 10, 64)
	if err != nil || id == 0 {
		httpx.RespondError(r.Context(), w, apperror.NewValidation("invalid user id"))
		return
	}
	h.processPayout(w, r, uint(id), true)
}

func (h *ReferralHandler) processPayout(w http.ResponseWriter, r *http.Request, referrerID uint, admin bool) {
	var req payoutRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}

	summary, err := h.h.Payout.Handle(r.Context(), command.ProcessPayoutCommand{
		ReferrerID: referrerID,
		Notes:      req.Notes,
		AdminRun:   admin,
	})
	if err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}
	httpx.RespondOK(w, http.StatusOK, "Payout processed", summary)
}

// RegisterRoutes registers referral routes
func (h *ReferralHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/referrals/me", h.auth.RequireAuth(h.GetMyProfile)).Methods("GET")
	router.HandleFunc("/referrals/me/bank-details", h.auth.RequireAuth(h.UpdateBankDetails)).Methods("PUT")
	router.HandleFunc("/referrals/me/transactions", h.auth.RequireAuth(h.ListMyTransactions)).Methods("GET")
	router.HandleFunc("/referrals/me/referrals", h.auth.RequireAuth(h.ListMyReferrals)).Methods("GET")
	router.HandleFunc("/referrals/me/payout-request", h.auth.RequireAuth(h.RequestPayout)).Methods("POST")
	router.HandleFunc("/referrals/me/payout", h.auth.RequireAuth(h.ProcessMyPayout)).Methods("POST")
	router.HandleFunc("/referrals/invite", h.auth.RequireAuth(h.Invite)).Methods("POST")
	router.HandleFunc("/referrals/admin/payout/{userId}", h.auth.RequireAdmin(h.ProcessPayoutForUser)).Methods("POST")
}
