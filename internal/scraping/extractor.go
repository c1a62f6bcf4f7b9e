package scraping

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ExtractedData es el resultado intermedio, sin tipar, de la extracción:
// mapas de campo → valor. Un campo ausente simplemente no está en el mapa
// (nunca se confunde string vacío con cero). Qué campos son obligatorios lo
// decide el Normalizer, no el extractor.
type ExtractedData struct {
	Header   map[string]string
	Details  []map[string]string
	Payments []map[string]string
}

// Claves de encabezado producidas por el extractor.
const (
	fieldCUFE      = "cufe"
	fieldNo        = "no"
	fieldDate      = "date"
	fieldDocMarker = "doc_marker"
	fieldTotAmount = "tot_amount"
	fieldTotITBMS  = "tot_itbms"
)

// Extract recorre el documento HTML de la consulta MEF y saca los campos de
// cabecera, los paneles EMISOR/RECEPTOR, los totales y las líneas de detalle.
// Falla con ErrExtraction solo si el documento no corresponde a la plantilla
// (ancla principal ausente) o si el portal devolvió una página de error.
func Extract(html string) (*ExtractedData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parseando HTML: %v", ErrExtraction, err)
	}

	if msg := detectPortalError(doc); msg != "" {
		return nil, fmt.Errorf("%w: error del portal MEF: %s", ErrExtraction, msg)
	}

	anchor := findAnchorHeading(doc)
	if anchor == nil {
		return nil, fmt.Errorf("%w: el documento no corresponde a la plantilla de factura (sin encabezado FACTURA)", ErrExtraction)
	}

	header := map[string]string{
		fieldDocMarker: strings.TrimSpace(anchor.Text()),
	}
	if no := extractInvoiceNumber(anchor); no != "" {
		header[fieldNo] = no
	}
	if date := extractInvoiceDate(anchor); date != "" {
		header[fieldDate] = date
	}
	if cufe := extractCUFE(doc); cufe != "" {
		header[fieldCUFE] = cufe
	}

	for k, v := range extractPanel(doc, "EMISOR") {
		header[k] = v
	}
	for k, v := range extractPanel(doc, "RECEPTOR") {
		header[k] = v
	}

	totals, payment := extractTotals(doc)
	for k, v := range totals {
		header[k] = v
	}

	data := &ExtractedData{
		Header:  header,
		Details: extractLineItems(doc),
	}
	if len(payment) > 0 {
		data.Payments = append(data.Payments, payment)
	}
	return data, nil
}

// findAnchorHeading ubica el h4 con la palabra FACTURA que ancla la plantilla.
func findAnchorHeading(doc *goquery.Document) *goquery.Selection {
	var anchor *goquery.Selection
	doc.Find("h4").EachWithBreak(func(_ int, h4 *goquery.Selection) bool {
		if strings.Contains(strings.ToUpper(h4.Text()), "FACTURA") {
			anchor = h4
			return false
		}
		return true
	})
	return anchor
}

// extractInvoiceNumber navega del ancla al contenedor .row y busca un h5 con
// "No. NNNNNNNNNN" (o un h5 que sea solo un número de 10 dígitos).
func extractInvoiceNumber(anchor *goquery.Selection) string {
	row := anchor.Closest("div.row")
	if row.Length() == 0 {
		return ""
	}
	var result string
	row.Find("h5").EachWithBreak(func(_ int, h5 *goquery.Selection) bool {
		text := strings.TrimSpace(h5.Text())
		upper := strings.ToUpper(text)
		if idx := strings.Index(upper, "NO."); idx >= 0 {
			candidate := strings.TrimSpace(text[idx+3:])
			if candidate != "" && isDigits(candidate) {
				result = candidate
				return false
			}
		} else if len(text) == 10 && isDigits(text) {
			result = text
			return false
		}
		return true
	})
	return result
}

// extractInvoiceDate busca en el mismo .row un h5 con forma DD/MM/YYYY
// [HH:MM:SS]. Si viene solo la fecha se completa con hora cero; el orden
// día/mes lo resuelve el Normalizer con formato fijo, aquí solo se valida la forma.
func extractInvoiceDate(anchor *goquery.Selection) string {
	row := anchor.Closest("div.row")
	if row.Length() == 0 {
		return ""
	}
	var result string
	row.Find("h5").EachWithBreak(func(_ int, h5 *goquery.Selection) bool {
		text := strings.TrimSpace(h5.Text())
		parts := strings.Fields(text)
		if len(parts) == 0 || !isDateShape(parts[0]) {
			return true
		}
		if len(parts) >= 2 && isTimeShape(parts[1]) {
			result = parts[0] + " " + parts[1]
			return false
		}
		if len(parts) == 1 {
			result = parts[0] + " 00:00:00"
			return false
		}
		return true
	})
	return result
}

// extractCUFE ubica el dt "CÓDIGO ÚNICO DE FACTURA ELECTRÓNICA [CUFE]" y toma
// el dd hermano. El valor debe tener la forma de un CUFE (prefijo FE, largo).
func extractCUFE(doc *goquery.Document) string {
	var cufe string
	doc.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		label := normalizeLabel(dt.Text())
		if !strings.Contains(label, "codigo unico") || !strings.Contains(label, "cufe") {
			return true
		}
		dd := dt.NextAllFiltered("dd").First()
		if dd.Length() == 0 {
			return true
		}
		value := strings.TrimSpace(dd.Text())
		if strings.HasPrefix(value, "FE") && len(value) > 50 {
			cufe = value
			return false
		}
		return true
	})
	return cufe
}

// extractPanel saca los pares dt/dd del panel EMISOR o RECEPTOR. Los dos
// paneles comparten el mismo set de etiquetas, así que cada clave se
// namespacea por rol ("emisor_name", "receptor_ruc", ...) para no mezclarlos.
func extractPanel(doc *goquery.Document, panelTitle string) map[string]string {
	data := make(map[string]string)
	prefix := strings.ToLower(panelTitle)

	doc.Find("div.panel-heading").Each(func(_ int, heading *goquery.Selection) {
		if !strings.Contains(strings.ToUpper(heading.Text()), panelTitle) {
			return
		}
		body := heading.NextAllFiltered("div.panel-body").First()
		if body.Length() == 0 {
			return
		}
		body.Find("dt").Each(func(_ int, dt *goquery.Selection) {
			dd := dt.Next()
			if !dd.Is("dd") {
				return
			}
			value := strings.TrimSpace(dd.Text())
			switch normalizeLabel(dt.Text()) {
			case "nombre":
				data[prefix+"_name"] = value
			case "ruc", "cedula de identidad":
				data[prefix+"_ruc"] = value
			case "dv":
				data[prefix+"_dv"] = value
			case "direccion":
				data[prefix+"_address"] = value
			case "telefono":
				data[prefix+"_phone"] = value
			default:
				data[normalizeLabel(dt.Text())] = value
			}
		})
	})
	return data
}

// extractTotals lee la región de resumen (td.text-right con el valor en un
// div hijo). Devuelve los totales de la factura y, aparte, el mapa de pago
// (total pagado / vuelto) si el documento lo trae.
func extractTotals(doc *goquery.Document) (totals, payment map[string]string) {
	totals = make(map[string]string)
	payment = make(map[string]string)

	doc.Find("td.text-right").Each(func(_ int, td *goquery.Selection) {
		label := strings.ToUpper(td.Text())
		div := td.Find("div").First()
		if div.Length() == 0 {
			return
		}
		value := strings.TrimSpace(div.Text())
		switch {
		case strings.Contains(label, "VALOR TOTAL:"):
			totals[fieldTotAmount] = value
		case strings.Contains(label, "ITBMS TOTAL:"):
			totals[fieldTotITBMS] = value
		case strings.Contains(label, "TOTAL PAGADO:"):
			payment["total_pagado"] = value
		case strings.Contains(label, "VUELTO:"):
			payment["vuelto"] = value
		case strings.Contains(label, "FORMA DE PAGO:"):
			payment["forma_de_pago"] = value
		}
	})
	return totals, payment
}

// extractLineItems itera las filas de la tabla de detalle (td[data-title]).
// Cero filas es un resultado válido aunque sospechoso: se distingue de una
// falla de plantilla porque aquí no se retorna error.
func extractLineItems(doc *goquery.Document) []map[string]string {
	var items []map[string]string

	doc.Find("div.panel-body.collapse.in tbody tr").Each(func(_ int, row *goquery.Selection) {
		item := make(map[string]string)
		row.Find("td[data-title]").Each(func(_ int, td *goquery.Selection) {
			title := td.AttrOr("data-title", "")
			value := strings.TrimSpace(td.Text())
			switch normalizeLabel(title) {
			case "cantidad":
				item["quantity"] = value
			case "codigo":
				item["code"] = value
			case "descripcion":
				item["description"] = value
			case "descuento":
				item["unit_discount"] = value
			case "precio":
				item["unit_price"] = value
			case "impuesto":
				item["itbms"] = value
			case "monto":
				item["amount"] = value
			case "total":
				item["total"] = value
			case "linea":
				item["linea"] = value
			case "informacion de interes":
				item["information_of_interest"] = value
			default:
				item[normalizeLabel(title)] = value
			}
		})
		if len(item) > 0 {
			items = append(items, item)
		}
	})
	return items
}

// Selectores y frases con las que el portal MEF reporta errores dentro de un 200.
var portalErrorSelectors = []string{
	"div.alert-danger",
	"div.alert-warning",
	"div.alert-error",
	"#validacionMensajeCriterioResultado",
	"#cuerpoVentanaMensajes",
	".error-message",
	".validation-summary-errors",
}

var portalErrorPhrases = []string{
	"factura no encontrada",
	"cufe no encontrado",
	"documento no existe",
	"no se pudo procesar",
	"acceso denegado",
	"pagina no encontrada",
	"error interno",
	"servicio no disponible",
	"sesion expirada",
	"error de conexion",
	"servidor no disponible",
}

// detectPortalError revisa si la respuesta es una página de error del MEF.
// Devuelve el mensaje detectado o "" si el documento parece una factura.
func detectPortalError(doc *goquery.Document) string {
	for _, selector := range portalErrorSelectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text != "" {
			return text
		}
	}

	all := normalizeLabel(doc.Text())
	for _, phrase := range portalErrorPhrases {
		if strings.Contains(all, phrase) {
			return "patrón de error detectado: " + phrase
		}
	}

	// Página sospechosamente corta sin mención de factura: probable error.
	if len(all) < 500 && !strings.Contains(all, "factura") && !strings.Contains(all, "invoice") {
		return "documento demasiado corto o sin el contenido esperado"
	}
	return ""
}

var labelNormalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeLabel baja a minúsculas, quita tildes y colapsa espacios, para que
// "Dirección" y "DIRECCION" matcheen la misma etiqueta de la plantilla.
func normalizeLabel(s string) string {
	out, _, err := transform.String(labelNormalizer, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isDateShape valida la forma DD/MM/YYYY (solo forma; el parseo es del Normalizer).
func isDateShape(s string) bool {
	parts := strings.Split(s, "/")
	return len(parts) == 3 &&
		len(parts[0]) == 2 && isDigits(parts[0]) &&
		len(parts[1]) == 2 && isDigits(parts[1]) &&
		len(parts[2]) == 4 && isDigits(parts[2])
}

// isTimeShape valida la forma HH:MM:SS.
func isTimeShape(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if len(p) != 2 || !isDigits(p) {
			return false
		}
	}
	return true
}
