// Package erp talks to the plant ERP's datasource execution API.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/containerflow/pkg/config"
	pkgerrors "github.com/angelmondragon/containerflow/pkg/errors"
)

const (
	defaultTimeout              = 60 * time.Second
	responseBodyReadLimit int64 = 1024

	columnLocation = "Location"
)

var (
	errBaseURLRequired     = errors.New("erp base url is required")
	errCredentialsRequired = errors.New("erp credentials are required")
)

// Datasources identifies the ERP datasources used by the service.
type Datasources struct {
	ContainerBySerial      int
	ProductionLocations    int
	ContainersByPart       int
	ProductionLocationType string
}

// Client wraps the datasource execute endpoint.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	username    string
	password    string
	datasources Datasources
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the ERP client from configuration.
func NewClient(cfg config.ERPConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if strings.TrimSpace(cfg.Username) == "" || cfg.Password == "" {
		return nil, errCredentialsRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		username:   strings.TrimSpace(cfg.Username),
		password:   cfg.Password,
		datasources: Datasources{
			ContainerBySerial:      cfg.ContainerBySerialSource,
			ProductionLocations:    cfg.ProductionLocationSource,
			ContainersByPart:       cfg.ContainersByPartSource,
			ProductionLocationType: cfg.ProductionLocationType,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// CurrentLocation returns where the ERP currently sees the container. found
// is false when the ERP has no row (or no location) for the serial.
func (c *Client) CurrentLocation(ctx context.Context, serialNo string) (string, bool, error) {
	serialNo = strings.TrimSpace(serialNo)
	if serialNo == "" {
		return "", false, pkgerrors.New(pkgerrors.CodeValidation, "serial number is required")
	}

	table, err := c.execute(ctx, c.datasources.ContainerBySerial, map[string]any{"Serial_No": serialNo})
	if err != nil {
		return "", false, err
	}
	rows := table.Records()
	if len(rows) == 0 {
		return "", false, nil
	}
	location := rows[0].String(columnLocation)
	if location == "" {
		return "", false, nil
	}
	return location, true, nil
}

// ProductionLocations lists locations classified as production storage.
func (c *Client) ProductionLocations(ctx context.Context) ([]string, error) {
	table, err := c.execute(ctx, c.datasources.ProductionLocations, map[string]any{
		"Location_Type": c.datasources.ProductionLocationType,
	})
	if err != nil {
		return nil, err
	}
	rows := table.Records()
	locations := make([]string, 0, len(rows))
	for _, row := range rows {
		if loc := row.String(columnLocation); loc != "" {
			locations = append(locations, loc)
		}
	}
	return locations, nil
}

func (c *Client) execute(ctx context.Context, datasourceID int, inputs map[string]any) (*Table, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "erp client not configured")
	}

	payload, err := json.Marshal(map[string]any{"inputs": inputs})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal erp request")
	}

	url := c.buildURL(datasourceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build erp request")
	}
	httpReq.SetBasicAuth(c.username, c.password)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeTimeout, err, fmt.Sprintf("erp datasource %d timed out", datasourceID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("execute erp datasource %d", datasourceID))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), fmt.Sprintf("erp datasource %d failed", datasourceID))
	}

	var result executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode erp response")
	}
	if len(result.Tables) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("erp datasource %d returned no tables", datasourceID))
	}
	return &result.Tables[0], nil
}

func (c *Client) buildURL(datasourceID int) string {
	return fmt.Sprintf("%s/%d/execute", strings.TrimRight(c.baseURL, "/"), datasourceID)
}

// isTimeout covers both context deadlines and http.Client timeouts, which
// surface as a *url.Error reporting Timeout().
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
