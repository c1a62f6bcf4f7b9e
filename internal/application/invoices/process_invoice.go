package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tu-usuario/mef-invoices/internal/domain"
	"github.com/tu-usuario/mef-invoices/internal/domain/entity"
	"github.com/tu-usuario/mef-invoices/internal/domain/repository"
	"github.com/tu-usuario/mef-invoices/internal/scraping"
)

// Status es el desenlace terminal de una sumisión.
type Status string

const (
	StatusCommitted       Status = "COMMITTED"        // Factura persistida
	StatusDuplicate       Status = "DUPLICATE"        // CUFE ya registrado; no se escribió nada
	StatusFallbackPending Status = "FALLBACK_PENDING" // Registrada en mef_pending para recuperación
)

// Prefijos de los mensajes de error en mef_pending. Operadores y tooling de
// reproceso triagen por prefijo: no cambiarlos sin migrar esos consumidores.
const (
	prefixScraping      = "Scraping error"
	prefixExtraction    = "Extraction error"
	prefixNormalization = "Normalization error"
	prefixSave          = "Save error"
)

// Outcome lleva el desenlace más el contexto para que el llamador componga el
// mensaje al usuario. Componer y enviar ese mensaje NO es responsabilidad de
// este caso de uso.
type Outcome struct {
	Status     Status
	CUFE       string
	IssuerName string
	No         string
	TotAmount  decimal.Decimal
	Reason     string // solo en FALLBACK_PENDING
}

// SaveFailed distingue la falla de guardado de las fallas de scraping: para
// el usuario no es lo mismo (la factura sí se leyó, solo no pudo guardarse).
func (o *Outcome) SaveFailed() bool {
	return o.Status == StatusFallbackPending && strings.HasPrefix(o.Reason, prefixSave)
}

// ProcessInvoiceUseCase orquesta una sumisión:
// Fetching → Extracting → Normalizing → DeduplicationCheck → Persisting →
// {Committed | FallbackPending}, con el atajo Duplicate tras la verificación.
// Sin estado propio entre llamadas; comparte solo pool y cliente HTTP, ambos
// seguros para sumisiones concurrentes. Sin reintentos: cada sumisión se
// procesa exactamente una vez por llamada.
type ProcessInvoiceUseCase struct {
	scraper     Scraper
	invoiceRepo repository.InvoiceRepository
	pendingRepo repository.MefPendingRepository
	txRunner    InvoiceTxRunner
	txTimeout   time.Duration
	log         zerolog.Logger
}

// NewProcessInvoiceUseCase construye el orquestador. invoiceRepo y
// pendingRepo van atados al pool; el guardado transaccional usa txRunner.
func NewProcessInvoiceUseCase(
	scraper Scraper,
	invoiceRepo repository.InvoiceRepository,
	pendingRepo repository.MefPendingRepository,
	txRunner InvoiceTxRunner,
	txTimeout time.Duration,
	log zerolog.Logger,
) *ProcessInvoiceUseCase {
	return &ProcessInvoiceUseCase{
		scraper:     scraper,
		invoiceRepo: invoiceRepo,
		pendingRepo: pendingRepo,
		txRunner:    txRunner,
		txTimeout:   txTimeout,
		log:         log,
	}
}

// Process ejecuta el pipeline completo para una URL. Toda sumisión termina en
// exactamente uno de tres desenlaces; ninguna falla de fetch/extracción/
// normalización/guardado se propaga como error al llamador — se convierte en
// FallbackPending vía mef_pending. El único error que escapa es que la propia
// escritura de recuperación falle.
func (uc *ProcessInvoiceUseCase) Process(ctx context.Context, url, wsID string, userID int64) (*Outcome, error) {
	uc.log.Info().Str("url", url).Int64("user_id", userID).Msg("procesando factura desde URL")

	header, details, payments, err := uc.scraper.Scrape(ctx, url)
	if err != nil {
		uc.log.Warn().Err(err).Str("url", url).Msg("scraping falló, registrando en mef_pending")
		return uc.fallback(ctx, url, wsID, userID, fmt.Sprintf("%s: %v", scrapeFailurePrefix(err), err))
	}
	header.UserID = userID

	if len(details) == 0 {
		// Válido pero sospechoso: la plantilla matcheó y no se encontró
		// ninguna línea. Se persiste igual y se deja rastro para revisión.
		uc.log.Warn().Str("cufe", header.CUFE).Msg("factura sin líneas de detalle")
	}

	exists, err := uc.invoiceRepo.ExistsByCUFE(ctx, header.CUFE)
	if err != nil {
		uc.log.Error().Err(err).Str("cufe", header.CUFE).Msg("verificación de duplicado falló")
		return uc.fallback(ctx, url, wsID, userID, fmt.Sprintf("%s: verificando duplicado: %v", prefixSave, err))
	}
	if exists {
		uc.log.Info().Str("cufe", header.CUFE).Msg("factura duplicada detectada")
		return uc.duplicateOutcome(header), nil
	}

	txCtx, cancel := context.WithTimeout(ctx, uc.txTimeout)
	defer cancel()

	err = uc.txRunner.RunInvoice(txCtx, func(repo repository.InvoiceRepository) error {
		if err := repo.CreateHeader(txCtx, header); err != nil {
			return err
		}
		for i := range details {
			if err := repo.CreateDetail(txCtx, &details[i]); err != nil {
				return err
			}
		}
		for i := range payments {
			if err := repo.CreatePayment(txCtx, &payments[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// El UNIQUE sobre cufe es el backstop del chequeo read-then-write:
		// dos sumisiones concurrentes del mismo CUFE convergen aquí al mismo
		// desenlace Duplicate que daría el chequeo secuencial.
		if errors.Is(err, domain.ErrDuplicateInvoice) {
			uc.log.Info().Str("cufe", header.CUFE).Msg("duplicado detectado por constraint al insertar")
			return uc.duplicateOutcome(header), nil
		}
		uc.log.Error().Err(err).Str("cufe", header.CUFE).Msg("guardado transaccional falló, registrando en mef_pending")
		reason := fmt.Sprintf("%s: %v (cufe=%s emisor=%s no=%s total=%s)",
			prefixSave, err, header.CUFE, header.IssuerName, header.No, header.TotAmount.String())
		return uc.fallback(ctx, url, wsID, userID, reason)
	}

	uc.log.Info().Str("cufe", header.CUFE).Str("emisor", header.IssuerName).Msg("factura persistida")
	return &Outcome{
		Status:     StatusCommitted,
		CUFE:       header.CUFE,
		IssuerName: header.IssuerName,
		No:         header.No,
		TotAmount:  header.TotAmount,
	}, nil
}

func (uc *ProcessInvoiceUseCase) duplicateOutcome(header *entity.InvoiceHeader) *Outcome {
	return &Outcome{
		Status:     StatusDuplicate,
		CUFE:       header.CUFE,
		IssuerName: header.IssuerName,
		No:         header.No,
		TotAmount:  header.TotAmount,
	}
}

// fallback inserta la entrada de recuperación en su propia transacción,
// independiente de la transacción principal fallida: debe poder confirmarse
// aunque la DB haya rechazado el guardado original por un constraint.
func (uc *ProcessInvoiceUseCase) fallback(ctx context.Context, url, wsID string, userID int64, reason string) (*Outcome, error) {
	entry := &entity.MefPending{
		URL:           url,
		ChatID:        wsID,
		ReceptionDate: time.Now().UTC(),
		TypeDocument:  entity.TipoQRInvoice,
		UserID:        userID,
		ErrorMessage:  reason,
		Origin:        entity.OrigenWhatsApp,
		WsID:          wsID,
	}
	id, err := uc.pendingRepo.Insert(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("guardando en mef_pending: %w", err)
	}
	uc.log.Warn().Int64("pending_id", id).Str("url", url).Msg("sumisión registrada para recuperación")
	return &Outcome{Status: StatusFallbackPending, Reason: reason}, nil
}

// scrapeFailurePrefix distingue en el mensaje la etapa que falló; el
// reproceso manual depende de estos prefijos para el triage.
func scrapeFailurePrefix(err error) string {
	switch {
	case errors.Is(err, scraping.ErrNormalization):
		return prefixNormalization
	case errors.Is(err, scraping.ErrExtraction):
		return prefixExtraction
	default:
		return prefixScraping
	}
}
