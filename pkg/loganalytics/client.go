// Package loganalytics submits structured log records to the Azure Log
// Analytics Data Collector API.
package loganalytics

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiVersion    = "2016-04-01"
	defaultDomain = "ods.opinsights.azure.com"
)

// Client submits record batches to one Log Analytics workspace. Every
// call builds its own request, so a single Client is safe for
// concurrent use.
type Client struct {
	workspaceID        string
	key                []byte
	endpoint           string
	timeGeneratedField string
	httpClient         *http.Client
	log                *zap.Logger
	now                func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default outbound HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoint overrides the derived ingestion URL. Useful for
// sovereign clouds and tests.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithLogger attaches a zap logger. The default is a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTimeGeneratedField names the record field Log Analytics should
// use as TimeGenerated instead of the ingestion time.
func WithTimeGeneratedField(field string) Option {
	return func(c *Client) { c.timeGeneratedField = field }
}

// New creates a Client for the given workspace. The shared key is the
// base64-encoded primary or secondary key of the workspace; it is
// decoded once here.
func New(workspaceID, sharedKey string, opts ...Option) (*Client, error) {
	if workspaceID == "" {
		return nil, ErrMissingWorkspaceID
	}
	if sharedKey == "" {
		return nil, ErrMissingSharedKey
	}
	key, err := base64.StdEncoding.DecodeString(sharedKey)
	if err != nil {
		return nil, fmt.Errorf("loganalytics: shared key is not valid base64: %w", err)
	}

	c := &Client{
		workspaceID: workspaceID,
		key:         key,
		endpoint:    fmt.Sprintf("https://%s.%s/api/logs?api-version=%s", workspaceID, defaultDomain, apiVersion),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		log:         zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SubmitOne submits a single record under the given log type.
func (c *Client) SubmitOne(ctx context.Context, record any, logType string) (string, error) {
	if record == nil {
		return "", ErrNilRecords
	}
	return c.SubmitBatch(ctx, []any{record}, logType)
}

// SubmitBatch validates, serializes and submits a batch of records.
// records must be a non-empty slice or array; every element must be a
// struct or string-keyed map whose fields are strings, bools, floats,
// time.Time or uuid.UUID values. All validation happens before any
// network I/O.
//
// On a 2xx response the raw response body is returned. On any other
// status the error is a *StatusError carrying the code and body.
func (c *Client) SubmitBatch(ctx context.Context, records any, logType string) (string, error) {
	if err := validateLogType(logType); err != nil {
		return "", err
	}
	batch, err := validateBatch(records)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(batch.Interface())
	if err != nil {
		return "", fmt.Errorf("loganalytics: marshaling batch: %w", err)
	}

	date := c.now().UTC().Format(http.TimeFormat)
	auth := buildSignature(c.workspaceID, c.key, len(payload), date)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("loganalytics: building request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Log-Type", logType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-ms-date", date)
	req.Header.Set("time-generated-field", c.timeGeneratedField)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	c.log.Debug("submitting batch",
		zap.String("logType", logType),
		zap.Int("records", batch.Len()),
		zap.Int("bytes", len(payload)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("loganalytics: sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("loganalytics: reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("ingestion request rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("logType", logType))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}
