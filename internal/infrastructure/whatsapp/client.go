package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tu-usuario/mef-invoices/pkg/config"
)

// Client envía mensajes de texto por la WhatsApp Cloud API. Contrato angosto
// a propósito: el pipeline nunca lo llama directo, solo el handler que
// compone el mensaje según el desenlace.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	token         string
	phoneNumberID string
	log           zerolog.Logger
}

// NewClient construye el cliente. El *http.Client interno es seguro para uso
// concurrente entre sumisiones.
func NewClient(cfg config.WhatsAppConfig, log zerolog.Logger) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		baseURL:       cfg.APIBaseURL,
		token:         cfg.Token,
		phoneNumberID: cfg.PhoneNumberID,
		log:           log,
	}
}

type textMessageRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// SendText envía un mensaje de texto al chat indicado.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	reqBody := textMessageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
	}
	reqBody.Text.Body = body

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("whatsapp: serializando mensaje: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("whatsapp: creando request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	// Clave de idempotencia por mensaje: un reintento de red no duplica el texto.
	req.Header.Set("X-Idempotency-Key", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: enviando mensaje: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp: status %d: %s", resp.StatusCode, string(errBody))
	}

	c.log.Debug().Str("to", to).Msg("mensaje de WhatsApp enviado")
	return nil
}
