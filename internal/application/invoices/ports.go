package invoices

import (
	"context"

	"github.com/tu-usuario/mef-invoices/internal/domain/entity"
	"github.com/tu-usuario/mef-invoices/internal/domain/repository"
)

// Scraper resuelve una URL de consulta MEF al modelo tipado de factura.
// Implementado por internal/scraping.Service.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*entity.InvoiceHeader, []entity.InvoiceDetail, []entity.InvoicePayment, error)
}

// InvoiceTxRunner ejecuta el callback con un repositorio atado a una
// transacción: o se confirma todo el guardado (cabecera + detalles + pagos)
// o nada queda observable.
type InvoiceTxRunner interface {
	RunInvoice(ctx context.Context, fn func(repo repository.InvoiceRepository) error) error
}
