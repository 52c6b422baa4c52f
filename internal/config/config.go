package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/tordrt/metaharvest/internal/catalog"
	"github.com/tordrt/metaharvest/internal/templates"
)

// SubdomainToken is the marker replaced in base_url_template
const SubdomainToken = "{subdomain}"

// DefaultLogFile is used when neither the file nor ATLAN_LOG_FILE names one.
// It must match the env-default of Config.LogFile.
const DefaultLogFile = "atlan_extractor.log"

// Config holds the harvest configuration.
// Settings come from a JSON or YAML file with environment variable overrides.
// The auth token override must only come from the environment.
type Config struct {
	// Multi-instance mode
	BaseURLTemplate       string            `json:"base_url_template" yaml:"base_url_template"`
	Subdomains            []string          `json:"subdomains" yaml:"subdomains"`
	SubdomainAuthTokenMap map[string]string `json:"subdomain_auth_token_map" yaml:"subdomain_auth_token_map"`

	// Legacy single-instance mode
	BaseURL   string `json:"base_url" yaml:"base_url"`
	AuthToken string `json:"auth_token" yaml:"auth_token"`

	// Connector type to template key mapping
	APIMap          map[string]string `json:"api_map" yaml:"api_map"`
	DefaultTemplate string            `json:"default_template" yaml:"default_template" env-default:"databases_api"`

	OutputDir      string `json:"output_dir" yaml:"output_dir" env:"ATLAN_OUTPUT_DIR" env-default:"output"`
	LogFile        string `json:"log_file" yaml:"log_file" env:"ATLAN_LOG_FILE" env-default:"atlan_extractor.log"`
	RequestTimeout string `json:"request_timeout" yaml:"request_timeout" env:"ATLAN_REQUEST_TIMEOUT" env-default:"30s"`

	// TokenOverride wins over every token in the file
	TokenOverride string `json:"-" yaml:"-" env:"ATLAN_AUTH_TOKEN"`

	timeout   time.Duration
	templates map[string]rawTemplate
}

type rawTemplate struct {
	URL     string
	Payload []byte
}

// Load reads the configuration file at path. The format is chosen by extension
// (.json, .yaml or .yml). Every failure is a *ConfigError.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err != nil {
		return nil, &ConfigError{Field: "path", Err: err}
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to read %s: %w", path, err)}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "path", Err: err}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		cfg.templates, err = parseJSONTemplates(raw)
	case ".yaml", ".yml":
		cfg.templates, err = parseYAMLTemplates(raw)
	default:
		err = fmt.Errorf("unsupported config format %q (must be .json, .yaml or .yml)", filepath.Ext(path))
	}
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks everything that can be checked without resolving instances
func (c *Config) validate() error {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return configErr("request_timeout", "invalid duration %q", c.RequestTimeout)
	}
	c.timeout = d

	if c.BaseURLTemplate == "" && c.BaseURL == "" {
		return configErr("base_url", "one of base_url_template or base_url must be set")
	}
	if c.BaseURLTemplate != "" && !strings.Contains(c.BaseURLTemplate, SubdomainToken) {
		return configErr("base_url_template", "must contain %s", SubdomainToken)
	}

	if _, err := c.Registry(); err != nil {
		return err
	}

	return nil
}

// Timeout returns the per-request timeout
func (c *Config) Timeout() time.Duration {
	return c.timeout
}

// MultiInstance reports whether the config targets several subdomains
func (c *Config) MultiInstance() bool {
	return c.BaseURLTemplate != ""
}

// Overrides are command-line values that take precedence over the file
type Overrides struct {
	OutputDir string
	LogFile   string
}

// WithOverrides returns a copy of the config with non-empty overrides applied
func (c *Config) WithOverrides(o Overrides) *Config {
	out := *c
	if o.OutputDir != "" {
		out.OutputDir = o.OutputDir
	}
	if o.LogFile != "" {
		out.LogFile = o.LogFile
	}
	return &out
}

// Instances resolves every target instance. selected restricts multi-instance
// runs to the given subdomains. All instances are resolved before returning so a
// missing token fails the run before the first request.
func (c *Config) Instances(selected []string) ([]catalog.Instance, error) {
	if !c.MultiInstance() {
		if len(selected) > 0 {
			return nil, configErr("subdomain", "subdomain selection requires base_url_template")
		}
		inst, err := c.legacyInstance()
		if err != nil {
			return nil, err
		}
		return []catalog.Instance{inst}, nil
	}

	subdomains := c.subdomainList(selected)
	if len(subdomains) == 0 {
		return nil, configErr("subdomains", "no subdomains configured")
	}

	instances := make([]catalog.Instance, 0, len(subdomains))
	seen := make(map[string]bool, len(subdomains))
	for _, sub := range subdomains {
		sub = strings.TrimSpace(sub)
		if sub == "" || seen[sub] {
			continue
		}
		seen[sub] = true

		token := c.resolveToken(c.SubdomainAuthTokenMap[sub])
		if token == "" {
			return nil, configErr("subdomain_auth_token_map", "no auth token for subdomain %s (set ATLAN_AUTH_TOKEN or add it to subdomain_auth_token_map)", sub)
		}

		instances = append(instances, catalog.Instance{
			Subdomain: sub,
			BaseURL:   strings.TrimSuffix(strings.ReplaceAll(c.BaseURLTemplate, SubdomainToken, sub), "/"),
			AuthToken: BearerToken(token),
		})
	}

	return instances, nil
}

func (c *Config) legacyInstance() (catalog.Instance, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" {
		return catalog.Instance{}, configErr("base_url", "invalid url %q", c.BaseURL)
	}

	token := c.resolveToken("")
	if token == "" {
		return catalog.Instance{}, configErr("auth_token", "no auth token found (set ATLAN_AUTH_TOKEN or add auth_token to the config)")
	}

	return catalog.Instance{
		Subdomain: strings.Split(u.Hostname(), ".")[0],
		BaseURL:   strings.TrimSuffix(c.BaseURL, "/"),
		AuthToken: BearerToken(token),
	}, nil
}

func (c *Config) subdomainList(selected []string) []string {
	if len(selected) > 0 {
		return selected
	}
	if len(c.Subdomains) > 0 {
		return c.Subdomains
	}

	subs := make([]string, 0, len(c.SubdomainAuthTokenMap))
	for sub := range c.SubdomainAuthTokenMap {
		subs = append(subs, sub)
	}
	sort.Strings(subs)
	return subs
}

// resolveToken applies the priority: environment > subdomain map > legacy field
func (c *Config) resolveToken(mapped string) string {
	for _, t := range []string{c.TokenOverride, mapped, c.AuthToken} {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	return ""
}

// BearerToken normalises a token to the "Bearer <token>" header form
func BearerToken(token string) string {
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}

// Registry builds the request template registry from the config
func (c *Config) Registry() (*templates.Registry, error) {
	rawConn, ok := c.templates[templates.ConnectionsKey]
	if !ok {
		return nil, configErr(templates.ConnectionsKey, "missing")
	}
	connections, err := templates.NewTemplate(templates.ConnectionsKey, rawConn.URL, rawConn.Payload)
	if err != nil {
		return nil, &ConfigError{Field: templates.ConnectionsKey, Err: err}
	}

	byKey := make(map[string]templates.QueryTemplate, len(c.templates))
	for key, raw := range c.templates {
		if key == templates.ConnectionsKey {
			continue
		}
		tmpl, err := templates.NewTemplate(key, raw.URL, raw.Payload)
		if err != nil {
			return nil, &ConfigError{Field: key, Err: err}
		}
		byKey[key] = tmpl
	}

	reg, err := templates.NewRegistry(connections, c.APIMap, byKey, c.DefaultTemplate)
	if err != nil {
		return nil, &ConfigError{Field: "api_map", Err: err}
	}
	return reg, nil
}

// parseJSONTemplates collects every top-level object carrying url and payload.
// Payloads are kept as raw bytes.
func parseJSONTemplates(raw []byte) (map[string]rawTemplate, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	out := make(map[string]rawTemplate)
	for key, value := range top {
		var entry struct {
			URL     *string         `json:"url"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(value, &entry); err != nil {
			// not an object, so not a template
			continue
		}
		if entry.URL == nil || entry.Payload == nil {
			continue
		}
		out[key] = rawTemplate{URL: *entry.URL, Payload: entry.Payload}
	}
	return out, nil
}

func parseYAMLTemplates(raw []byte) (map[string]rawTemplate, error) {
	var top map[string]any
	if err := yaml.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	out := make(map[string]rawTemplate)
	for key, value := range top {
		entry, ok := value.(map[string]any)
		if !ok {
			continue
		}
		u, hasURL := entry["url"].(string)
		payload, hasPayload := entry["payload"]
		if !hasURL || !hasPayload {
			continue
		}

		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", key, err)
		}
		out[key] = rawTemplate{URL: u, Payload: b}
	}
	return out, nil
}

// IsConfigError reports whether err is a configuration error
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}
