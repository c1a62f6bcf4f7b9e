package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/mef-invoices/internal/domain"
	"github.com/tu-usuario/mef-invoices/internal/domain/entity"
	"github.com/tu-usuario/mef-invoices/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// ExistsByCUFE fast-path de deduplicación; el UNIQUE de la tabla es el backstop.
func (r *InvoiceRepo) ExistsByCUFE(ctx context.Context, cufe string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM invoice_header WHERE cufe = $1)`, cufe,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("verificar cufe: %w", err)
	}
	return exists, nil
}

// CreateHeader persiste la cabecera. Sin ON CONFLICT a propósito: la
// violación del UNIQUE sobre cufe se reporta como domain.ErrDuplicateInvoice
// para que el orquestador la trate como duplicado, no como falla genérica.
func (r *InvoiceRepo) CreateHeader(ctx context.Context, h *entity.InvoiceHeader) error {
	query := `
		INSERT INTO invoice_header (cufe, no, date, issuer_name, issuer_ruc, issuer_dv, issuer_address, issuer_phone,
		                            tot_amount, tot_itbms, url, type, process_date, reception_date, user_id, origin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.q.Exec(ctx, query,
		h.CUFE, h.No, h.Date, h.IssuerName, h.IssuerRUC, h.IssuerDV, h.IssuerAddress, h.IssuerPhone,
		h.TotAmount, h.TotITBMS, h.URL, h.Tipo, h.ProcessDate, h.ReceptionDate, h.UserID, h.Origin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("cufe %s: %w", h.CUFE, domain.ErrDuplicateInvoice)
		}
		return fmt.Errorf("insert invoice header: %w", err)
	}
	return nil
}

// CreateDetail persiste una línea de detalle.
func (r *InvoiceRepo) CreateDetail(ctx context.Context, d *entity.InvoiceDetail) error {
	query := `
		INSERT INTO invoice_detail (partkey, cufe, date, linea, code, description, quantity, unit_price,
		                            unit_discount, amount, itbms, total, information_of_interest)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		d.PartKey, d.CUFE, d.Date, d.Linea, d.Code, d.Description, d.Quantity, d.UnitPrice,
		d.UnitDiscount, d.Amount, d.ITBMS, d.Total, d.InformationOfInterest,
	)
	if err != nil {
		return fmt.Errorf("insert invoice detail: %w", err)
	}
	return nil
}

// CreatePayment persiste un desglose de pago.
func (r *InvoiceRepo) CreatePayment(ctx context.Context, p *entity.InvoicePayment) error {
	query := `
		INSERT INTO invoice_payment (cufe, forma_de_pago, total_pagado, vuelto)
		VALUES ($1, $2, $3, $4)`
	_, err := r.q.Exec(ctx, query, p.CUFE, p.FormaDePago, p.TotalPagado, p.Vuelto)
	if err != nil {
		return fmt.Errorf("insert invoice payment: %w", err)
	}
	return nil
}

// GetHeaderByCUFE obtiene la cabecera por su clave natural. nil si no existe.
func (r *InvoiceRepo) GetHeaderByCUFE(ctx context.Context, cufe string) (*entity.InvoiceHeader, error) {
	query := `
		SELECT cufe, no, date, issuer_name, issuer_ruc, issuer_dv, issuer_address, issuer_phone,
		       tot_amount, tot_itbms, url, type, process_date, reception_date, user_id, origin
		FROM invoice_header WHERE cufe = $1`
	var h entity.InvoiceHeader
	err := r.q.QueryRow(ctx, query, cufe).Scan(
		&h.CUFE, &h.No, &h.Date, &h.IssuerName, &h.IssuerRUC, &h.IssuerDV, &h.IssuerAddress, &h.IssuerPhone,
		&h.TotAmount, &h.TotITBMS, &h.URL, &h.Tipo, &h.ProcessDate, &h.ReceptionDate, &h.UserID, &h.Origin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice header: %w", err)
	}
	return &h, nil
}

// GetDetailsByCUFE obtiene todas las líneas de una factura, en orden.
func (r *InvoiceRepo) GetDetailsByCUFE(ctx context.Context, cufe string) ([]*entity.InvoiceDetail, error) {
	query := `
		SELECT partkey, cufe, date, linea, code, description, quantity, unit_price,
		       unit_discount, amount, itbms, total, information_of_interest
		FROM invoice_detail WHERE cufe = $1 ORDER BY linea`
	rows, err := r.q.Query(ctx, query, cufe)
	if err != nil {
		return nil, fmt.Errorf("list invoice details: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceDetail
	for rows.Next() {
		var d entity.InvoiceDetail
		if err := rows.Scan(&d.PartKey, &d.CUFE, &d.Date, &d.Linea, &d.Code, &d.Description, &d.Quantity,
			&d.UnitPrice, &d.UnitDiscount, &d.Amount, &d.ITBMS, &d.Total, &d.InformationOfInterest); err != nil {
			return nil, fmt.Errorf("scan detail: %w", err)
		}
		list = append(list, &d)
	}
	return list, rows.Err()
}
