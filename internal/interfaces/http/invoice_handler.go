package http

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/tu-usuario/mef-invoices/internal/application/dto"
	"github.com/tu-usuario/mef-invoices/internal/application/invoices"
	"github.com/tu-usuario/mef-invoices/internal/domain"
	"github.com/tu-usuario/mef-invoices/internal/domain/entity"
)

// Messenger contrato angosto con la mensajería conversacional (WhatsApp).
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
}

// InvoiceHandler recibe las URLs de factura (resueltas del QR por el
// detector aguas arriba), invoca el pipeline y responde al usuario por chat.
type InvoiceHandler struct {
	uc        *invoices.ProcessInvoiceUseCase
	getUC     *invoices.GetInvoiceUseCase
	messenger Messenger
	log       zerolog.Logger
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(uc *invoices.ProcessInvoiceUseCase, getUC *invoices.GetInvoiceUseCase, messenger Messenger, log zerolog.Logger) *InvoiceHandler {
	return &InvoiceHandler{uc: uc, getUC: getUC, messenger: messenger, log: log}
}

// Scan procesa una URL de factura para el usuario autenticado.
// POST /api/invoices/scan
func (h *InvoiceHandler) Scan(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.ScanInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.URL == "" || in.WsID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "url y ws_id son requeridos"})
	}

	outcome, err := h.uc.Process(c.Context(), in.URL, in.WsID, userID)
	if err != nil {
		// Solo llega aquí si falló la propia escritura de recuperación.
		h.log.Error().Err(err).Str("url", in.URL).Msg("la sumisión no pudo registrarse")
		h.notify(c.Context(), in.WsID, "🔧 Tuvimos un problema procesando tu factura. Por favor intenta de nuevo en unos minutos.")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}

	h.notify(c.Context(), in.WsID, outcomeMessage(outcome))

	return c.JSON(dto.ScanInvoiceResponse{
		Status:     string(outcome.Status),
		CUFE:       outcome.CUFE,
		IssuerName: outcome.IssuerName,
		No:         outcome.No,
		TotAmount:  outcome.TotAmount.String(),
		Reason:     outcome.Reason,
	})
}

// Get devuelve una factura persistida (cabecera y líneas) por su CUFE.
// GET /api/invoices/:cufe
func (h *InvoiceHandler) Get(c *fiber.Ctx) error {
	cufe := c.Params("cufe")
	header, details, err := h.getUC.Get(c.Context(), cufe)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
		}
		h.log.Error().Err(err).Str("cufe", cufe).Msg("consulta de factura falló")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(invoiceResponse(header, details))
}

func invoiceResponse(h *entity.InvoiceHeader, details []*entity.InvoiceDetail) dto.InvoiceResponse {
	out := dto.InvoiceResponse{
		CUFE:       h.CUFE,
		No:         h.No,
		Date:       h.Date.Format(time.RFC3339),
		IssuerName: h.IssuerName,
		IssuerRUC:  h.IssuerRUC,
		TotAmount:  h.TotAmount.String(),
		TotITBMS:   h.TotITBMS.String(),
		Tipo:       h.Tipo,
		Details:    make([]dto.InvoiceDetailResponse, 0, len(details)),
	}
	for _, d := range details {
		out.Details = append(out.Details, dto.InvoiceDetailResponse{
			Linea:       d.Linea,
			Code:        d.Code,
			Description: d.Description,
			Quantity:    d.Quantity.String(),
			UnitPrice:   d.UnitPrice.String(),
			Amount:      d.Amount.String(),
			ITBMS:       d.ITBMS.String(),
			Total:       d.Total.String(),
		})
	}
	return out
}

// notify envía el texto por chat; si la mensajería falla solo se loggea, el
// desenlace de la sumisión ya quedó registrado.
func (h *InvoiceHandler) notify(ctx context.Context, wsID, body string) {
	if err := h.messenger.SendText(ctx, wsID, body); err != nil {
		h.log.Error().Err(err).Str("ws_id", wsID).Msg("no se pudo enviar la respuesta por WhatsApp")
	}
}

// outcomeMessage compone el texto al usuario según el desenlace.
func outcomeMessage(o *invoices.Outcome) string {
	switch o.Status {
	case invoices.StatusDuplicate:
		return "¡Estos Lümis ya están en tu cuenta! 🔍 ¿Probamos con otra factura para ganar más Lümis? 💰"
	case invoices.StatusCommitted:
		return fmt.Sprintf(
			"✅ ¡Factura procesada exitosamente!\n\n📋 Detalles:\n🏪 Emisor: %s\n📄 Número: %s\n💰 Total: $%s\n\n🎉 ¡Lümis agregados a tu cuenta!",
			o.IssuerName, o.No, o.TotAmount.String(),
		)
	default:
		// Guardado fallido: la factura sí se leyó, el equipo la reprocesa.
		// Scraping fallido: ni siquiera pudo leerse, la revisión es manual.
		if o.SaveFailed() {
			return "📝 Hemos recibido tu factura. Nuestro equipo la revisará y te confirmaremos cuando esté procesada. ¡Gracias por tu paciencia!"
		}
		return "🔧 No pudimos procesar la factura automáticamente. Nuestro equipo la revisará manualmente. Te notificaremos cuando esté lista."
	}
}
