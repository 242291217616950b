package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tair/lesson-payments/internal/enrollment/usecase/query"
	"github.com/tair/lesson-payments/pkg/httpx"
	"github.com/tair/lesson-payments/pkg/middleware"
)

// EnrollmentHandler handles HTTP requests for enrollments
type EnrollmentHandler struct {
	listHandler *query.ListMyEnrollmentsHandler
	auth        *middleware.Authenticator
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(listHandler *query.ListMyEnrollmentsHandler, auth *middleware.Authenticator) *EnrollmentHandler {
	return &EnrollmentHandler{listHandler: listHandler, auth: auth}
}

// ListMyEnrollments handles GET /enrollments/me
func (h *EnrollmentHandler) ListMyEnrollments(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())

	enrollments, err := h.listHandler.Handle(r.Context(), p.ID)
	if err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}
	httpx.RespondOK(w, http.StatusOK, "", enrollments)
}

// RegisterRoutes registers enrollment routes
func (h *EnrollmentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/enrollments/me", h.auth.RequireAuth(h.ListMyEnrollments)).Methods("GET")
}
