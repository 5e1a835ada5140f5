// Package hostclient implements the host ad server transport over HTTP. It
// requests ads from an ad server endpoint and replays the server's response
// as host callbacks: app events, then "loaded", or a load failure.
package hostclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/models"
	"github.com/patrickwarner/openbidbridge/internal/observability"
	"github.com/patrickwarner/openbidbridge/internal/outcome"
	"github.com/patrickwarner/openbidbridge/internal/targeting"
)

const defaultTimeout = 2 * time.Second

// Client talks to the host ad server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	clock      clock.Clock
	logger     *zap.Logger
	metrics    observability.MetricsRegistry
}

// NewClient creates a host ad server client. The clock schedules delayed
// app events; nil uses the wall clock.
func NewClient(baseURL string, timeout time.Duration, clk clock.Clock, logger *zap.Logger, metrics observability.MetricsRegistry) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if clk == nil {
		clk = clock.New()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		clock:   clk,
		logger:  observability.OrNop(logger),
		metrics: metrics,
	}
}

// adRequest is the body POSTed to {base}/ad.
type adRequest struct {
	RequestID string         `json:"request_id"`
	AdUnitID  string         `json:"ad_unit_id"`
	Format    string         `json:"format"`
	Sizes     []string       `json:"sizes,omitempty"`
	Targeting *targeting.Map `json:"targeting,omitempty"`
	Keywords  string         `json:"keywords,omitempty"`
	Bid       *models.Bid    `json:"bid,omitempty"`
}

// AdResponse is the host ad server's answer to a filled request.
type AdResponse struct {
	CreativeID string     `json:"creative_id"`
	HTML       string     `json:"html"`
	Width      int        `json:"w"`
	Height     int        `json:"h"`
	AppEvents  []AppEvent `json:"app_events,omitempty"`
}

// AppEvent is an app event fired by the served creative. Events with no
// delay fire before the load completes, the rest after DelayMS.
type AppEvent struct {
	Name    string `json:"name"`
	Data    string `json:"data,omitempty"`
	DelayMS int    `json:"delay_ms,omitempty"`
}

// StatusError is returned for any response other than 200.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("host ad server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("host ad server returned %d: %s", e.StatusCode, e.Body)
}

func (c *Client) fetch(ctx context.Context, integration string, body *adRequest) (*AdResponse, error) {
	start := time.Now()
	status := "error"
	defer func() {
		c.metrics.RecordHostRequestLatency(integration, status, time.Since(start))
	}()

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ad", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()
	status = strconv.Itoa(resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var ad AdResponse
	if err := json.NewDecoder(resp.Body).Decode(&ad); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &ad, nil
}

// HostCode classifies a fetch error with the host ad server's codes.
func HostCode(err error) outcome.HostCode {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		switch se.StatusCode {
		case http.StatusNoContent:
			return outcome.HostNoFill
		case http.StatusBadRequest:
			return outcome.HostInvalidRequest
		default:
			return outcome.HostInternalError
		}
	case isTimeout(err) || isTransport(err):
		return outcome.HostNetworkError
	default:
		return outcome.HostInternalError
	}
}

// NetworkCode classifies a fetch error with the mediation network's codes.
func NetworkCode(err error) outcome.NetworkCode {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		switch {
		case se.StatusCode == http.StatusNoContent:
			return outcome.NetworkNetworkNoFill
		case se.StatusCode == http.StatusBadRequest:
			return outcome.NetworkInvalidState
		case se.StatusCode >= 500:
			return outcome.NetworkServerError
		default:
			return outcome.NetworkUnspecified
		}
	case errors.Is(err, context.Canceled):
		return outcome.NetworkCancelled
	case isTimeout(err):
		return outcome.NetworkTimeout
	case isTransport(err):
		return outcome.NetworkNoConnection
	default:
		return outcome.NetworkInternalError
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isTransport(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue)
}

func formatSizes(sizes []models.AdSize) []string {
	if len(sizes) == 0 {
		return nil
	}
	out := make([]string, len(sizes))
	for i, s := range sizes {
		out[i] = s.String()
	}
	return out
}
