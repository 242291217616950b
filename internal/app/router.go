package app

import (
	"github.com/gorilla/mux"

	paymenthandler "github.com/tair/lesson-payments/internal/payment/handler"
)

// Router registers the middleware chain and every module's routes
func (a *App) Router() *mux.Router {
	router := mux.NewRouter()
	paymenthandler.RegisterMiddlewares(router, a.Middleware)

	a.Payments.RegisterRoutes(router)
	a.Enrollments.RegisterRoutes(router)
	a.Referrals.RegisterRoutes(router)

	return router
}
