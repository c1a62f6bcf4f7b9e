package scraping

import "errors"

// Taxonomía de fallas del pipeline de scraping. Cada etapa envuelve su causa
// con el sentinel correspondiente (errors.Is para distinguirlas aguas arriba).
var (
	// ErrFetch: falla de red, timeout, status no exitoso o cuerpo no textual.
	ErrFetch = errors.New("fetch de la URL falló")
	// ErrExtraction: el documento no corresponde a la plantilla MEF esperada
	// (ancla principal ausente o página de error del portal).
	ErrExtraction = errors.New("extracción del documento falló")
	// ErrNormalization: campo obligatorio faltante o no parseable.
	ErrNormalization = errors.New("normalización de la factura falló")
)
