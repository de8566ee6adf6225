package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/medledger/medledger/pkg/apperr"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// Client calls a running relay on behalf of the wallet client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Text generation can take a while.
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Insight string `json:"insight"`
}

// GenerateInsight asks the relay for advice on the record at patientAddress.
func (c *Client) GenerateInsight(ctx context.Context, patientAddress string) (string, error) {
	payload, _ := json.Marshal(insightRequest{PatientAddress: patientAddress})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-insight", bytes.NewReader(payload))
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstreamAPI, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstreamAPI, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", apperr.Newf(apperr.KindUpstreamAPI, "unexpected relay response (%d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("relay returned %d", resp.StatusCode)
		}
		if resp.StatusCode == http.StatusBadRequest {
			return "", apperr.Validation(msg)
		}
		return "", apperr.New(apperr.KindUpstreamAPI, msg)
	}
	return env.Insight, nil
}
