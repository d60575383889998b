package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/palona/shopchat/backend/internal/config"
	"github.com/palona/shopchat/backend/internal/metrics"
)

// HTTPClient calls the recommendation backend over HTTP/JSON.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPClient creates a client for the backend at cfg.BaseURL.
func NewHTTPClient(cfg config.BackendConfig, logger zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "backend").Logger(),
	}
}

// ClassifyIntent asks whether the message is about shopping for a product.
func (c *HTTPClient) ClassifyIntent(ctx context.Context, message string) (bool, error) {
	var out intentResponse
	if err := c.postJSON(ctx, EndpointClassifyIntent, messageRequest{Message: message}, &out); err != nil {
		return false, err
	}
	return out.IsProduct, nil
}

// SearchProducts returns the products matching the message.
func (c *HTTPClient) SearchProducts(ctx context.Context, message string) ([]Product, error) {
	var out searchResponse
	if err := c.postJSON(ctx, EndpointSearchProducts, messageRequest{Message: message}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Chat returns the conversational reply for the message.
func (c *HTTPClient) Chat(ctx context.Context, message string) (string, error) {
	var out chatResponse
	if err := c.postJSON(ctx, EndpointChat, messageRequest{Message: message}, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// SearchImage uploads the image as multipart field "file".
func (c *HTTPClient) SearchImage(ctx context.Context, file File) (ImageResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName(file)))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return ImageResult{}, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return ImageResult{}, fmt.Errorf("write multipart part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return ImageResult{}, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+EndpointImageSearch, &body)
	if err != nil {
		return ImageResult{}, fmt.Errorf("build %s request: %w", EndpointImageSearch, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out ImageResult
	if err := c.do(req, EndpointImageSearch, &out); err != nil {
		return ImageResult{}, err
	}
	return out, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, endpoint, out)
}

func (c *HTTPClient) do(req *http.Request, endpoint string, out any) error {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.BackendRequestDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("backend call completed")
	return nil
}

func fileName(file File) string {
	if file.Name == "" {
		return "upload"
	}
	return file.Name
}
