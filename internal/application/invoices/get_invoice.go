package invoices

import (
	"context"
	"fmt"

	"github.com/tu-usuario/mef-invoices/internal/domain"
	"github.com/tu-usuario/mef-invoices/internal/domain/entity"
	"github.com/tu-usuario/mef-invoices/internal/domain/repository"
)

// GetInvoiceUseCase lee una factura persistida por su CUFE (cabecera más
// líneas). Es la consulta de verificación del operador tras el procesamiento.
type GetInvoiceUseCase struct {
	repo repository.InvoiceRepository
}

// NewGetInvoiceUseCase construye el caso de uso de consulta.
func NewGetInvoiceUseCase(repo repository.InvoiceRepository) *GetInvoiceUseCase {
	return &GetInvoiceUseCase{repo: repo}
}

// Get devuelve la cabecera y los detalles. domain.ErrNotFound si el CUFE no
// está registrado.
func (uc *GetInvoiceUseCase) Get(ctx context.Context, cufe string) (*entity.InvoiceHeader, []*entity.InvoiceDetail, error) {
	header, err := uc.repo.GetHeaderByCUFE(ctx, cufe)
	if err != nil {
		return nil, nil, fmt.Errorf("consultando cabecera: %w", err)
	}
	if header == nil {
		return nil, nil, fmt.Errorf("cufe %s: %w", cufe, domain.ErrNotFound)
	}
	details, err := uc.repo.GetDetailsByCUFE(ctx, cufe)
	if err != nil {
		return nil, nil, fmt.Errorf("consultando detalles: %w", err)
	}
	return header, details, nil
}
