package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound         = errors.New("recurso no encontrado")
	ErrInvalidInput     = errors.New("entrada inválida")
	ErrDuplicateInvoice = errors.New("la factura ya está registrada")
	ErrUnauthorized     = errors.New("no autorizado")
)
