package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/billing"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
	"github.com/Cristhianmcc/marketPOS-sub004/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	SubmissionUC *billing.SubmissionUseCase
	Stores       repository.StoreRepository
	JWTSecret    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token y tienda activa)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret), RequireActiveStore(deps.Stores))

	// Envío de comprobantes a SUNAT
	documents := protected.Group("/documents")
	submissionHandler := NewSubmissionHandler(deps.SubmissionUC)
	documents.Post("/:id/submission", submissionHandler.Enqueue)
	documents.Get("/:id/submission", submissionHandler.Status)
	documents.Get("/:id/submission/jobs", submissionHandler.History)
	// El reintento manual reabre un comprobante cerrado: solo admin o supervisor.
	documents.Post("/:id/submission/retry", RequireRole(jwt.RoleAdmin, jwt.RoleSupervisor), submissionHandler.Retry)
}
