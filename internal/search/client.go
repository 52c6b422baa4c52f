package search

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/tordrt/metaharvest/internal/catalog"
	"github.com/tordrt/metaharvest/internal/templates"
)

// DefaultTimeout bounds a single search request
const DefaultTimeout = 30 * time.Second

// Client issues connection and database queries against the search endpoint
type Client struct {
	http     *resty.Client
	registry *templates.Registry
	logger   *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithTransport replaces the underlying HTTP transport
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.SetTransport(rt)
	}
}

// NewClient creates a search client. If logger is nil, a no-op logger is used.
func NewClient(registry *templates.Registry, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		http: resty.New().
			SetTimeout(DefaultTimeout).
			SetRetryCount(0).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		registry: registry,
		logger:   logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchConnections returns the connections of an instance in server order.
// Only the first page is retrieved; its size comes from the template.
func (c *Client) FetchConnections(ctx context.Context, inst catalog.Instance) ([]catalog.Connection, error) {
	tmpl := c.registry.ConnectionsTemplate()
	url := endpoint(inst, tmpl.URL)

	c.logger.Info("Fetching connections", zap.String("subdomain", inst.Subdomain))

	resp, err := c.post(ctx, inst, url, tmpl.Payload)
	if err != nil {
		return nil, err
	}
	c.warnTruncated(inst, "connections", resp)

	connections := make([]catalog.Connection, 0, len(resp.Entities))
	for i, raw := range resp.Entities {
		e, err := decodeEntity(raw)
		if err != nil {
			c.logger.Warn("Failed to process connection entity",
				zap.String("subdomain", inst.Subdomain), zap.Int("index", i), zap.Error(err))
			continue
		}
		conn := e.toConnection()
		c.logger.Debug("Processed connection", zap.String("name", conn.Name), zap.String("connector", conn.ConnectorName))
		connections = append(connections, conn)
	}

	c.logger.Info("Retrieved connections",
		zap.String("subdomain", inst.Subdomain), zap.Int("count", len(connections)))
	return connections, nil
}

// FetchDatabases returns the databases of one connection in server order, each
// stamped with the connection's qualified name.
func (c *Client) FetchDatabases(ctx context.Context, inst catalog.Instance, conn catalog.Connection) ([]catalog.DatabaseRecord, error) {
	dispatcher := c.registry.Dispatcher()
	if !dispatcher.IsMapped(conn.ConnectorName) {
		c.logger.Debug("Connector not in api_map, using default template",
			zap.String("connector", conn.ConnectorName), zap.String("template", dispatcher.DefaultKey()))
	}

	tmpl := c.registry.TemplateFor(conn.ConnectorName)
	body, err := tmpl.Substitute(conn.QualifiedName)
	if err != nil {
		return nil, err
	}
	url := endpoint(inst, tmpl.URL)

	c.logger.Info("Fetching databases",
		zap.String("connection", conn.QualifiedName), zap.String("template", tmpl.Key))

	resp, err := c.post(ctx, inst, url, body)
	if err != nil {
		return nil, err
	}
	c.warnTruncated(inst, "databases", resp)

	databases := make([]catalog.DatabaseRecord, 0, len(resp.Entities))
	for i, raw := range resp.Entities {
		e, err := decodeEntity(raw)
		if err != nil {
			c.logger.Warn("Failed to process database entity",
				zap.String("connection", conn.QualifiedName), zap.Int("index", i), zap.Error(err))
			continue
		}
		db := e.toDatabase(conn.QualifiedName)
		c.logger.Debug("Processed database", zap.String("name", db.Name))
		databases = append(databases, db)
	}

	c.logger.Info("Retrieved databases",
		zap.String("connection", conn.QualifiedName), zap.Int("count", len(databases)))
	return databases, nil
}

func (c *Client) post(ctx context.Context, inst catalog.Instance, url string, body []byte) (*response, error) {
	c.logger.Info("Making API request", zap.String("url", url))

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", inst.AuthToken).
		SetBody(body).
		Post(url)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	if !resp.IsSuccess() {
		return nil, &APIError{
			URL:        url,
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Body:       truncate(strings.TrimSpace(resp.String()), maxErrorBody),
		}
	}

	parsed, err := decodeResponse(resp.Body())
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}
	return parsed, nil
}

func (c *Client) warnTruncated(inst catalog.Instance, kind string, resp *response) {
	total, ok := resp.approximateCount()
	if !ok || total <= int64(len(resp.Entities)) {
		return
	}
	c.logger.Warn("Search returned a partial page, remaining entities are not retrieved",
		zap.String("subdomain", inst.Subdomain),
		zap.String("kind", kind),
		zap.Int("returned", len(resp.Entities)),
		zap.Int64("approximate_count", total))
}

// endpoint joins the instance base URL and a template URL. Absolute template
// URLs are used as-is after {subdomain} substitution.
func endpoint(inst catalog.Instance, templateURL string) string {
	u := strings.ReplaceAll(templateURL, "{subdomain}", inst.Subdomain)
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return strings.TrimSuffix(inst.BaseURL, "/") + "/" + strings.TrimPrefix(u, "/")
}
