package dto

// ErrorResponse respuesta de error estándar de la API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScanInvoiceRequest sumisión de una URL de factura (resuelta del QR).
type ScanInvoiceRequest struct {
	URL  string `json:"url"`
	WsID string `json:"ws_id"`
}

// ScanInvoiceResponse desenlace de la sumisión para el llamador.
type ScanInvoiceResponse struct {
	Status     string `json:"status"` // COMMITTED | DUPLICATE | FALLBACK_PENDING
	CUFE       string `json:"cufe,omitempty"`
	IssuerName string `json:"issuer_name,omitempty"`
	No         string `json:"no,omitempty"`
	TotAmount  string `json:"tot_amount,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// InvoiceDetailResponse línea de detalle de una factura persistida.
type InvoiceDetailResponse struct {
	Linea       string `json:"linea"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Amount      string `json:"amount"`
	ITBMS       string `json:"itbms"`
	Total       string `json:"total"`
}

// InvoiceResponse factura persistida (consulta por CUFE).
type InvoiceResponse struct {
	CUFE       string                  `json:"cufe"`
	No         string                  `json:"no"`
	Date       string                  `json:"date"`
	IssuerName string                  `json:"issuer_name"`
	IssuerRUC  string                  `json:"issuer_ruc,omitempty"`
	TotAmount  string                  `json:"tot_amount"`
	TotITBMS   string                  `json:"tot_itbms"`
	Tipo       string                  `json:"type"`
	Details    []InvoiceDetailResponse `json:"details"`
}
