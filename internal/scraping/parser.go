package scraping

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/mef-invoices/internal/domain/entity"
)

// Formato de fecha del portal MEF: día/mes/año hora:minuto:segundo.
// Fijo a propósito: el orden día/mes nunca se adivina por heurística.
const mefDateLayout = "02/01/2006 15:04:05"

// ParseInvoice convierte el resultado crudo de la extracción en el modelo
// tipado (cabecera, detalles, pagos). Es el único punto que decide qué campos
// son obligatorios: cufe, número, fecha, emisor y total. Cualquiera de esos
// faltante o no parseable es falla dura (ErrNormalization) — nunca un guardado
// parcial. finalURL es la URL post-redirección, que es la que lleva el CUFE.
func ParseInvoice(data *ExtractedData, finalURL string) (*entity.InvoiceHeader, []entity.InvoiceDetail, []entity.InvoicePayment, error) {
	h := data.Header

	cufe, ok := h[fieldCUFE]
	if !ok || cufe == "" {
		return nil, nil, nil, missingField("cufe")
	}
	no, ok := h[fieldNo]
	if !ok || no == "" {
		return nil, nil, nil, missingField("numero_factura")
	}
	issuerName, ok := h["emisor_name"]
	if !ok || issuerName == "" {
		return nil, nil, nil, missingField("emisor")
	}

	rawDate, ok := h[fieldDate]
	if !ok || rawDate == "" {
		return nil, nil, nil, missingField("fecha")
	}
	date, err := time.Parse(mefDateLayout, rawDate)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: campo 'fecha' no parseable (%q, se espera DD/MM/YYYY HH:MM:SS)", ErrNormalization, rawDate)
	}

	rawTotal, ok := h[fieldTotAmount]
	if !ok || rawTotal == "" {
		return nil, nil, nil, missingField("total")
	}
	totAmount, err := parseDecimal(rawTotal)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: campo 'total' no parseable (%q)", ErrNormalization, rawTotal)
	}

	// ITBMS total es opcional (facturas exentas lo omiten); ausente = cero.
	totITBMS := decimal.Zero
	if raw, ok := h[fieldTotITBMS]; ok && raw != "" {
		if totITBMS, err = parseDecimal(raw); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: campo 'tot_itbms' no parseable (%q)", ErrNormalization, raw)
		}
	}

	now := time.Now().UTC()
	header := &entity.InvoiceHeader{
		CUFE:          cufe,
		No:            no,
		Date:          date,
		IssuerName:    issuerName,
		IssuerRUC:     h["emisor_ruc"],
		IssuerDV:      h["emisor_dv"],
		IssuerAddress: h["emisor_address"],
		IssuerPhone:   h["emisor_phone"],
		TotAmount:     totAmount,
		TotITBMS:      totITBMS,
		URL:           finalURL,
		Tipo:          classifyInvoiceType(h[fieldDocMarker]),
		ProcessDate:   now,
		ReceptionDate: now,
		Origin:        entity.OrigenWhatsApp,
	}

	details := parseDetails(data.Details, cufe, date)
	payments := parsePayments(data.Payments, cufe)

	return header, details, payments, nil
}

// classifyInvoiceType deriva el tipo de documento del encabezado capturado.
// Set cerrado; lo no clasificable cae en la categoría genérica, no en error.
func classifyInvoiceType(marker string) string {
	m := normalizeLabel(marker)
	switch {
	case strings.Contains(m, "operacion interna"):
		return entity.TipoOperacionInterna
	case strings.Contains(m, "exportacion"):
		return entity.TipoExportacion
	case strings.Contains(m, "nota de credito"):
		return entity.TipoNotaCredito
	default:
		return entity.TipoQRInvoice
	}
}

// parseDetails normaliza las líneas 1:1. Una línea sin descripción y sin
// montos se descarta en vez de persistirse como fila en blanco. Los montos
// que no parsean quedan en cero sin tumbar la factura (son opcionales por línea).
func parseDetails(items []map[string]string, cufe string, date time.Time) []entity.InvoiceDetail {
	details := make([]entity.InvoiceDetail, 0, len(items))
	for i, item := range items {
		if isBlankDetail(item) {
			continue
		}
		linea := item["linea"]
		if linea == "" {
			linea = fmt.Sprintf("%d", i+1)
		}
		details = append(details, entity.InvoiceDetail{
			PartKey:               cufe + "_" + linea,
			CUFE:                  cufe,
			Date:                  date,
			Linea:                 linea,
			Code:                  item["code"],
			Description:           item["description"],
			Quantity:              decimalOrZero(item["quantity"]),
			UnitPrice:             decimalOrZero(item["unit_price"]),
			UnitDiscount:          decimalOrZero(item["unit_discount"]),
			Amount:                decimalOrZero(item["amount"]),
			ITBMS:                 decimalOrZero(item["itbms"]),
			Total:                 decimalOrZero(item["total"]),
			InformationOfInterest: item["information_of_interest"],
		})
	}
	return details
}

func parsePayments(items []map[string]string, cufe string) []entity.InvoicePayment {
	payments := make([]entity.InvoicePayment, 0, len(items))
	for _, item := range items {
		payments = append(payments, entity.InvoicePayment{
			CUFE:        cufe,
			FormaDePago: item["forma_de_pago"],
			TotalPagado: decimalOrZero(item["total_pagado"]),
			Vuelto:      decimalOrZero(item["vuelto"]),
		})
	}
	return payments
}

// isBlankDetail: sin descripción y sin monto ni total no hay línea que guardar.
func isBlankDetail(item map[string]string) bool {
	return item["description"] == "" && item["amount"] == "" && item["total"] == ""
}

// parseDecimal parsea un monto como decimal exacto (nunca float64: la deriva
// binaria de centavos se acumularía en ciclos de persistencia/lectura).
// Acepta separador de miles con coma: "1,234.56".
func parseDecimal(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	clean = strings.TrimPrefix(clean, "$")
	clean = strings.TrimPrefix(clean, "B/.")
	clean = strings.TrimSpace(clean)
	return decimal.NewFromString(clean)
}

func decimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func missingField(name string) error {
	return fmt.Errorf("%w: campo obligatorio '%s' faltante o vacío", ErrNormalization, name)
}
