// Package reputation talks to the optional backend reputation service. The
// service is advisory: every failure path degrades to "no data" so scoring
// keeps working offline.
package reputation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sentineltk/sentinel/internal/interfaces"
	"github.com/sentineltk/sentinel/internal/logging"
	"github.com/sentineltk/sentinel/internal/model"
)

// Config holds the backend endpoint settings.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the backend client defaults. The empty BaseURL means
// "no backend configured".
func DefaultConfig() Config {
	return Config{Timeout: 3 * time.Second}
}

// Client is the net/http backed reputation lookup.
type Client struct {
	baseURL string
	client  *http.Client
	logger  logging.Logger
}

var _ interfaces.ReputationLookup = (*Client)(nil)

// NewClient constructs the backend client. httpClient may be nil, in which
// case one is built from the configured timeout.
func NewClient(cfg Config, logger logging.Logger, httpClient *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("reputation: empty base URL")
	}
	if logger == nil {
		return nil, errors.New("reputation: nil logger")
	}

	componentLogger := logger.With(logging.Field{Key: "component", Value: "reputation"})

	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultConfig().Timeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	componentLogger.Info("created reputation client",
		logging.Field{Key: "base_url", Value: cfg.BaseURL},
		logging.Field{Key: "timeout", Value: httpClient.Timeout.String()})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
		logger:  componentLogger,
	}, nil
}

type scoreRequest struct {
	Domain string `json:"domain"`
}

type scoreResponse struct {
	Score int `json:"score"`
}

type reportRequest struct {
	Domain string `json:"domain"`
	Reason string `json:"reason"`
}

// Score queries the backend for a domain's reputation penalty. The second
// return value is false whenever no usable answer was obtained; callers must
// treat that as "no data", never as "score zero means clean".
func (c *Client) Score(ctx context.Context, domain string) (int, bool) {
	body, err := json.Marshal(scoreRequest{Domain: domain})
	if err != nil {
		return 0, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return 0, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("reputation lookup failed",
			logging.Field{Key: "domain", Value: domain},
			logging.Field{Key: "error", Value: err.Error()})
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("reputation lookup rejected",
			logging.Field{Key: "domain", Value: domain},
			logging.Field{Key: "status", Value: resp.StatusCode})
		return 0, false
	}

	var parsed scoreResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&parsed); err != nil {
		c.logger.Warn("reputation response malformed",
			logging.Field{Key: "domain", Value: domain},
			logging.Field{Key: "error", Value: err.Error()})
		return 0, false
	}

	return parsed.Score, true
}

// Report submits a user report. Fire-and-forget: transport failures surface
// as errors, but a server-side rejection (rate limit, validation) is logged
// and swallowed so the caller's flow is never blocked on backend policy.
func (c *Client) Report(ctx context.Context, domain string, reason model.ReportReason) error {
	body, err := json.Marshal(reportRequest{Domain: domain, Reason: string(reason)})
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/report", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		c.logger.Warn("report rejected by backend",
			logging.Field{Key: "domain", Value: domain},
			logging.Field{Key: "status", Value: resp.StatusCode})
	}
	return nil
}

// Noop is the reputation lookup used when no backend is configured.
type Noop struct{}

var _ interfaces.ReputationLookup = Noop{}

func (Noop) Score(context.Context, string) (int, bool) { return 0, false }

func (Noop) Report(context.Context, string, model.ReportReason) error {
	return errors.New("reputation: no backend configured")
}
