package scraping

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/tu-usuario/mef-invoices/internal/domain/entity"
)

// Service encadena fetch → extract → parse sobre una URL de consulta MEF.
// Computación pura salvo el fetch; seguro para sumisiones concurrentes.
type Service struct {
	fetcher *Fetcher
	log     zerolog.Logger
}

// NewService construye el servicio de scraping.
func NewService(fetcher *Fetcher, log zerolog.Logger) *Service {
	return &Service{fetcher: fetcher, log: log}
}

// Scrape descarga el documento, extrae los campos y los normaliza al modelo
// tipado. El parseo usa la URL final (post-redirección): es la que trae el
// CUFE en los query params en algunos flujos del portal.
func (s *Service) Scrape(ctx context.Context, url string) (*entity.InvoiceHeader, []entity.InvoiceDetail, []entity.InvoicePayment, error) {
	html, finalURL, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, nil, nil, err
	}

	data, err := Extract(html)
	if err != nil {
		return nil, nil, nil, err
	}

	header, details, payments, err := ParseInvoice(data, finalURL)
	if err != nil {
		return nil, nil, nil, err
	}

	s.log.Debug().
		Str("cufe", header.CUFE).
		Int("detalles", len(details)).
		Int("pagos", len(payments)).
		Msg("factura extraída y normalizada")
	return header, details, payments, nil
}
