package scraping

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Fetcher resuelve una URL siguiendo redirecciones y devuelve el cuerpo junto
// con la URL final. La URL final importa: el portal MEF mete el CUFE en los
// query params del destino de la redirección en algunos flujos.
//
// No reintenta; la política de reintentos (si la hay) vive en el orquestador.
type Fetcher struct {
	client    *http.Client
	userAgent string
	log       zerolog.Logger
}

// NewFetcher construye el fetcher con timeout acotado (el portal puede colgarse).
// El http.Client es seguro para uso concurrente entre sumisiones.
func NewFetcher(timeout time.Duration, userAgent string, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		log:       log,
	}
}

// Fetch hace GET a la URL, sigue redirecciones y devuelve (cuerpo, URL final).
// Todas las fallas (red, timeout, status, cuerpo no textual) envuelven ErrFetch
// conservando la URL original y la causa.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s: %v", ErrFetch, url, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s: %v", ErrFetch, url, err)
	}
	defer resp.Body.Close()

	// resp.Request apunta a la última petición de la cadena de redirecciones.
	finalURL := resp.Request.URL.String()
	if finalURL != url {
		f.log.Info().Str("url", url).Str("final_url", finalURL).Msg("redirección detectada")
	} else {
		f.log.Debug().Str("url", url).Msg("sin redirección")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("%w: %s: status %d", ErrFetch, url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isTextContentType(ct) {
		return "", "", fmt.Errorf("%w: %s: content-type no textual %q", ErrFetch, url, ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s: leyendo cuerpo: %v", ErrFetch, url, err)
	}

	f.log.Debug().Str("final_url", finalURL).Int("bytes", len(body)).Msg("documento descargado")
	return string(body), finalURL, nil
}

func isTextContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.HasPrefix(ct, "text/") ||
		strings.Contains(ct, "html") ||
		strings.Contains(ct, "xml") ||
		strings.Contains(ct, "json")
}
