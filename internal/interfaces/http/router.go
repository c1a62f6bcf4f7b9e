package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/tu-usuario/mef-invoices/internal/application/invoices"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	ProcessInvoice *invoices.ProcessInvoiceUseCase
	GetInvoice     *invoices.GetInvoiceUseCase
	Messenger      Messenger
	JWTSecret      string
	Log            zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token del servicio de auth)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	invoicesGroup := protected.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.ProcessInvoice, deps.GetInvoice, deps.Messenger, deps.Log)
	invoicesGroup.Post("/scan", invoiceHandler.Scan)
	invoicesGroup.Get("/:cufe", invoiceHandler.Get)
}
