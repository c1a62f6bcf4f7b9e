package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/mef-invoices/internal/application/dto"
	"github.com/tu-usuario/mef-invoices/internal/application/invoices"
	"github.com/tu-usuario/mef-invoices/internal/domain/entity"
	"github.com/tu-usuario/mef-invoices/internal/domain/repository"
	apphttp "github.com/tu-usuario/mef-invoices/internal/interfaces/http"
	"github.com/tu-usuario/mef-invoices/internal/scraping"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes del pipeline y la mensajería
// ──────────────────────────────────────────────────────────────────────────────

type stubScraper struct {
	header *entity.InvoiceHeader
	err    error
}

func (s *stubScraper) Scrape(_ context.Context, _ string) (*entity.InvoiceHeader, []entity.InvoiceDetail, []entity.InvoicePayment, error) {
	if s.err != nil {
		return nil, nil, nil, s.err
	}
	return s.header, nil, nil, nil
}

type stubInvoiceRepo struct {
	exists    bool
	headerErr error

	storedHeader  *entity.InvoiceHeader
	storedDetails []*entity.InvoiceDetail
}

func (s *stubInvoiceRepo) ExistsByCUFE(_ context.Context, _ string) (bool, error) { return s.exists, nil }
func (s *stubInvoiceRepo) CreateHeader(_ context.Context, _ *entity.InvoiceHeader) error {
	return s.headerErr
}
func (s *stubInvoiceRepo) CreateDetail(_ context.Context, _ *entity.InvoiceDetail) error {
	return nil
}
func (s *stubInvoiceRepo) CreatePayment(_ context.Context, _ *entity.InvoicePayment) error {
	return nil
}
func (s *stubInvoiceRepo) GetHeaderByCUFE(_ context.Context, _ string) (*entity.InvoiceHeader, error) {
	return s.storedHeader, nil
}
func (s *stubInvoiceRepo) GetDetailsByCUFE(_ context.Context, _ string) ([]*entity.InvoiceDetail, error) {
	return s.storedDetails, nil
}

type stubPendingRepo struct {
	entries []*entity.MefPending
}

func (s *stubPendingRepo) Insert(_ context.Context, e *entity.MefPending) (int64, error) {
	s.entries = append(s.entries, e)
	return int64(len(s.entries)), nil
}

type stubTxRunner struct {
	repo repository.InvoiceRepository
}

func (s *stubTxRunner) RunInvoice(_ context.Context, fn func(repo repository.InvoiceRepository) error) error {
	return fn(s.repo)
}

// recordingMessenger captura los mensajes salientes de WhatsApp.
type recordingMessenger struct {
	to   []string
	sent []string
}

func (m *recordingMessenger) SendText(_ context.Context, to, body string) error {
	m.to = append(m.to, to)
	m.sent = append(m.sent, body)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func buildScanApp(scraper *stubScraper, repo *stubInvoiceRepo, messenger *recordingMessenger) *fiber.App {
	uc := invoices.NewProcessInvoiceUseCase(
		scraper, repo, &stubPendingRepo{}, &stubTxRunner{repo: repo},
		5*time.Second, zerolog.Nop(),
	)
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		ProcessInvoice: uc,
		GetInvoice:     invoices.NewGetInvoiceUseCase(repo),
		Messenger:      messenger,
		JWTSecret:      testJWTSecret,
		Log:            zerolog.Nop(),
	})
	return app
}

func doScan(t *testing.T, app *fiber.App, token string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/invoices/scan", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeScan(t *testing.T, resp *http.Response) dto.ScanInvoiceResponse {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out dto.ScanInvoiceResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func scanHeader() *entity.InvoiceHeader {
	return &entity.InvoiceHeader{
		CUFE:       "FE0120000155555555220158600000000008920123589786704912",
		No:         "0000000892",
		Date:       time.Date(2025, 5, 15, 9, 50, 4, 0, time.UTC),
		IssuerName: "Lum Corporation",
		TotAmount:  decimal.RequireFromString("107.00"),
		Origin:     entity.OrigenWhatsApp,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests POST /api/invoices/scan
// ──────────────────────────────────────────────────────────────────────────────

func TestScan_FacturaNueva(t *testing.T) {
	messenger := &recordingMessenger{}
	app := buildScanApp(&stubScraper{header: scanHeader()}, &stubInvoiceRepo{}, messenger)

	resp := doScan(t, app, validToken(t), dto.ScanInvoiceRequest{URL: "https://mef.example/qr", WsID: testPhone})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeScan(t, resp)
	assert.Equal(t, "COMMITTED", out.Status)
	assert.Equal(t, "0000000892", out.No)
	assert.Equal(t, "Lum Corporation", out.IssuerName)

	// El mensaje de éxito lleva emisor, número y total.
	require.Len(t, messenger.sent, 1)
	assert.Equal(t, testPhone, messenger.to[0])
	assert.Contains(t, messenger.sent[0], "Lum Corporation")
	assert.Contains(t, messenger.sent[0], "0000000892")
	assert.Contains(t, messenger.sent[0], "107")
}

func TestScan_FacturaDuplicada(t *testing.T) {
	messenger := &recordingMessenger{}
	app := buildScanApp(&stubScraper{header: scanHeader()}, &stubInvoiceRepo{exists: true}, messenger)

	resp := doScan(t, app, validToken(t), dto.ScanInvoiceRequest{URL: "https://mef.example/qr", WsID: testPhone})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeScan(t, resp)
	assert.Equal(t, "DUPLICATE", out.Status)

	require.Len(t, messenger.sent, 1)
	assert.Contains(t, messenger.sent[0], "ya están en tu cuenta")
}

func TestScan_FallaDeScraping(t *testing.T) {
	messenger := &recordingMessenger{}
	scraper := &stubScraper{err: fmt.Errorf("%w: portal caído", scraping.ErrFetch)}
	app := buildScanApp(scraper, &stubInvoiceRepo{}, messenger)

	resp := doScan(t, app, validToken(t), dto.ScanInvoiceRequest{URL: "https://mef.example/qr", WsID: testPhone})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode, "la falla queda registrada, la API responde 200")
	out := decodeScan(t, resp)
	assert.Equal(t, "FALLBACK_PENDING", out.Status)
	assert.Contains(t, out.Reason, "Scraping error")

	// Scraping fallido: el usuario recibe el texto de revisión manual, no el
	// de factura recibida (ese es para guardados fallidos).
	require.Len(t, messenger.sent, 1)
	assert.Contains(t, messenger.sent[0], "No pudimos procesar la factura automáticamente")
}

// Guardado fallido: la factura sí se leyó, el mensaje es el de reproceso.
func TestScan_FallaDeGuardado(t *testing.T) {
	messenger := &recordingMessenger{}
	repo := &stubInvoiceRepo{headerErr: fmt.Errorf("connection reset by peer")}
	app := buildScanApp(&stubScraper{header: scanHeader()}, repo, messenger)

	resp := doScan(t, app, validToken(t), dto.ScanInvoiceRequest{URL: "https://mef.example/qr", WsID: testPhone})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeScan(t, resp)
	assert.Equal(t, "FALLBACK_PENDING", out.Status)
	assert.Contains(t, out.Reason, "Save error")

	require.Len(t, messenger.sent, 1)
	assert.Contains(t, messenger.sent[0], "Hemos recibido tu factura")
}

func TestScan_SinToken(t *testing.T) {
	app := buildScanApp(&stubScraper{header: scanHeader()}, &stubInvoiceRepo{}, &recordingMessenger{})
	resp := doScan(t, app, "", dto.ScanInvoiceRequest{URL: "https://mef.example/qr", WsID: testPhone})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestScan_CuerpoIncompleto(t *testing.T) {
	app := buildScanApp(&stubScraper{header: scanHeader()}, &stubInvoiceRepo{}, &recordingMessenger{})
	resp := doScan(t, app, validToken(t), dto.ScanInvoiceRequest{URL: "", WsID: ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests GET /api/invoices/:cufe
// ──────────────────────────────────────────────────────────────────────────────

func TestGetInvoice_FacturaPersistida(t *testing.T) {
	header := scanHeader()
	repo := &stubInvoiceRepo{
		storedHeader: header,
		storedDetails: []*entity.InvoiceDetail{
			{PartKey: header.CUFE + "_1-A", CUFE: header.CUFE, Linea: "1-A",
				Description: "Servicio profesional", Total: decimal.RequireFromString("107.00")},
		},
	}
	app := buildScanApp(&stubScraper{header: header}, repo, &recordingMessenger{})

	req := httptest.NewRequest(http.MethodGet, "/api/invoices/"+header.CUFE, nil)
	req.Header.Set("Authorization", validToken(t))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out dto.InvoiceResponse
	require.NoError(t, json.Unmarshal(body, &out))

	assert.Equal(t, header.CUFE, out.CUFE)
	assert.Equal(t, "Lum Corporation", out.IssuerName)
	assert.Equal(t, "107", out.TotAmount)
	require.Len(t, out.Details, 1)
	// La línea es texto en todo el camino (entidad, columna, respuesta).
	assert.Equal(t, "1-A", out.Details[0].Linea)
}

func TestGetInvoice_CUFENoRegistrado(t *testing.T) {
	app := buildScanApp(&stubScraper{header: scanHeader()}, &stubInvoiceRepo{}, &recordingMessenger{})

	req := httptest.NewRequest(http.MethodGet, "/api/invoices/FE-inexistente", nil)
	req.Header.Set("Authorization", validToken(t))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
