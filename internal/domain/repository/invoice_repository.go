package repository

import (
	"context"

	"github.com/tu-usuario/mef-invoices/internal/domain/entity"
)

// InvoiceRepository persiste y consulta facturas por su clave natural (CUFE).
// Los inserts se usan dentro de una transacción (ver TxRunner); las consultas
// pueden ir directo al pool.
type InvoiceRepository interface {
	// ExistsByCUFE indica si ya hay una cabecera con ese CUFE.
	// Es el fast-path de deduplicación; el backstop real es el UNIQUE en DB.
	ExistsByCUFE(ctx context.Context, cufe string) (bool, error)
	CreateHeader(ctx context.Context, header *entity.InvoiceHeader) error
	CreateDetail(ctx context.Context, detail *entity.InvoiceDetail) error
	CreatePayment(ctx context.Context, payment *entity.InvoicePayment) error
	GetHeaderByCUFE(ctx context.Context, cufe string) (*entity.InvoiceHeader, error)
	GetDetailsByCUFE(ctx context.Context, cufe string) ([]*entity.InvoiceDetail, error)
}

// MefPendingRepository es la cola durable de sumisiones fallidas.
// Contrato append-only: solo inserta; reproceso y limpieza son externos.
type MefPendingRepository interface {
	Insert(ctx context.Context, entry *entity.MefPending) (int64, error)
}
