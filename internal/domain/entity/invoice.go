package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de factura clasificados a partir del encabezado del documento MEF.
// Documentos no clasificables caen en TipoQRInvoice (categoría genérica).
const (
	TipoQRInvoice        = "QR_INVOICE"                // Genérico: factura electrónica consultada por QR
	TipoOperacionInterna = "FACTURA_OPERACION_INTERNA" // Encabezado "FACTURA DE OPERACIÓN INTERNA"
	TipoExportacion      = "FACTURA_EXPORTACION"       // Encabezado "FACTURA DE EXPORTACIÓN"
	TipoNotaCredito      = "NOTA_CREDITO"              // Encabezado "NOTA DE CRÉDITO"
)

// Origen de la sumisión.
const (
	OrigenWhatsApp = "WHATSAPP"
)

// InvoiceHeader es la cabecera de una factura electrónica del MEF (Panamá).
// CUFE es la clave natural: única a nivel global, con constraint UNIQUE en DB.
// Una vez persistida, la cabecera es inmutable desde este pipeline.
type InvoiceHeader struct {
	CUFE          string
	No            string
	Date          time.Time
	IssuerName    string
	IssuerRUC     string
	IssuerDV      string
	IssuerAddress string
	IssuerPhone   string
	TotAmount     decimal.Decimal
	TotITBMS      decimal.Decimal
	URL           string
	Tipo          string
	ProcessDate   time.Time
	ReceptionDate time.Time
	UserID        int64
	Origin        string
}

// InvoiceDetail es una línea de producto/servicio de la factura.
// Pertenece a exactamente una cabecera vía CUFE. PartKey = "<cufe>_<linea>".
// El documento fuente relaciona Total = Amount + ITBMS (con su propio redondeo).
type InvoiceDetail struct {
	PartKey               string
	CUFE                  string
	Date                  time.Time
	Linea                 string
	Code                  string
	Description           string
	Quantity              decimal.Decimal
	UnitPrice             decimal.Decimal
	UnitDiscount          decimal.Decimal
	Amount                decimal.Decimal
	ITBMS                 decimal.Decimal
	Total                 decimal.Decimal
	InformationOfInterest string
}

// InvoicePayment es el desglose de pago de la factura (cero o más por cabecera).
type InvoicePayment struct {
	CUFE        string
	FormaDePago string
	TotalPagado decimal.Decimal
	Vuelto      decimal.Decimal
}

// MefPending es el registro durable de una sumisión que no pudo convertirse
// en factura persistida. Append-only: cada intento fallido crea una fila
// nueva (pista de auditoría); el reproceso es un colaborador externo.
type MefPending struct {
	ID            int64
	URL           string
	ChatID        string
	ReceptionDate time.Time
	TypeDocument  string
	UserID        int64
	ErrorMessage  string
	Origin        string
	WsID          string
}
