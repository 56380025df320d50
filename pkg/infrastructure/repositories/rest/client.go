package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Endpoint paths of the production backend
const (
	AcceptedOrdersPath   = "/gestion-linea-produccion/get-all-productos-aceptados-por-linea-produccion"
	CreateBatchPath      = "/tanda-produccion/post-crear-tandas-produccion-manual"
	BatchesByStatePath   = "/tanda-produccion/post-obtener-tanda-produccion-por-estado"
	UpdateBatchStatePath = "/tanda-produccion/post-update-tandas-produccion-estado"
)

// DefaultTimeout bounds every backend call unless configured otherwise
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx answer from the backend
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s (%s)", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// HTTPClient performs JSON calls against the backend base URL
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
	Headers map[string]string
}

// NewHTTPClient creates a client with the given per-call timeout
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		Headers: map[string]string{},
	}
}

// Call sends body as JSON and decodes a 2xx answer into out. out may be nil.
func (c *HTTPClient) Call(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		bodyReader = bytes.NewBuffer(bodyJSON)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, bodyReader)
	if err != nil {
		return err
	}
	for key, value := range c.Headers {
		req.Header.Set(key, value)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w", method, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, endpoint, err)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = payload.Error
		if apiErr.Message == "" {
			apiErr.Message = payload.Message
		}
		apiErr.Detail = payload.Detail
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
