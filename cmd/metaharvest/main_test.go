package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const legacyConfig = `
base_url: %s
auth_token: secret-token
connections_api:
  url: /api/meta/search/indexsearch
  payload:
    dsl:
      query:
        term:
          __typeName.keyword: Connection
api_map:
  databricks: databases_api
databases_api:
  url: /api/meta/search/indexsearch
  payload:
    dsl:
      query:
        term:
          connectionQualifiedName: PLACEHOLDER_TO_BE_REPLACED
`

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(legacyConfig, "%s", baseURL, 1)), 0o600))
	return path
}

func unsetToken(t *testing.T) {
	t.Helper()
	if v, ok := os.LookupEnv("ATLAN_AUTH_TOKEN"); ok {
		require.NoError(t, os.Unsetenv("ATLAN_AUTH_TOKEN"))
		t.Cleanup(func() { _ = os.Setenv("ATLAN_AUTH_TOKEN", v) })
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCleanSubdomains(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil", in: nil, want: []string{}},
		{name: "trims", in: []string{" acme ", "globex"}, want: []string{"acme", "globex"}},
		{name: "drops blanks", in: []string{"acme", "", "  "}, want: []string{"acme"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanSubdomains(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("cleanSubdomains(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfigCommand(t *testing.T) {
	unsetToken(t)
	out, err := execute(t, "config", "--config", writeConfig(t, "https://test-company.atlan.com"))
	require.NoError(t, err)

	assert.NotContains(t, out, "secret-token")

	var got resolvedConfig
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "legacy", got.Mode)
	require.Len(t, got.Instances, 1)
	assert.Equal(t, "test-company", got.Instances[0].Subdomain)
	assert.Equal(t, "Bearer [REDACTED]", got.Instances[0].AuthToken)
	assert.Equal(t, "databases_api", got.DefaultTemplate)
	require.Len(t, got.Templates, 2)
	assert.Equal(t, "connections_api", got.Templates[0].Key)
	assert.Contains(t, got.Templates[1].Payload, "PLACEHOLDER_TO_BE_REPLACED")
}

func TestRunWritesReports(t *testing.T) {
	unsetToken(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(string(body), `"Connection"`) {
			_, _ = io.WriteString(w, `{"entities": [{"typeName": "Connection", "attributes": {"qualifiedName": "default/databricks/1", "name": "prod", "connectorName": "databricks"}}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"entities": [{"typeName": "Database", "attributes": {"name": "analytics"}}]}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	out, err := execute(t,
		"--config", writeConfig(t, srv.URL),
		"--output-dir", filepath.Join(dir, "reports"),
		"--log-file", filepath.Join(dir, "run.log"))
	require.NoError(t, err)

	assert.Contains(t, out, "SUBDOMAIN")
	assert.Contains(t, out, "success")

	for _, name := range []string{"connections.csv", "databases.csv", "connections_databases.csv"} {
		assert.FileExists(t, filepath.Join(dir, "reports", name))
	}

	logData, err := os.ReadFile(filepath.Join(dir, "run.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "Making API request")
	assert.NotContains(t, string(logData), "secret-token")
}

func TestRunFailOnInstanceError(t *testing.T) {
	unsetToken(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dir := t.TempDir()
	args := []string{
		"--config", writeConfig(t, srv.URL),
		"--output-dir", dir,
		"--log-file", filepath.Join(dir, "run.log"),
	}

	_, err := execute(t, args...)
	assert.NoError(t, err, "instance failures do not fail the run by default")

	_, err = execute(t, append(args, "--fail-on-instance-error")...)
	assert.ErrorIs(t, err, errRunIncomplete)
}

func TestRunMissingConfigIsLogged(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "run.log")

	_, err := execute(t, "--config", filepath.Join(dir, "missing.json"), "--log-file", logFile)
	require.Error(t, err)

	logData, readErr := os.ReadFile(logFile)
	require.NoError(t, readErr)
	assert.Contains(t, string(logData), "Failed to load configuration")
	assert.Contains(t, string(logData), "missing.json")
}

func TestRunInvalidConfigLogsToEnvFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "env.log")
	t.Setenv("ATLAN_LOG_FILE", logFile)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("api_map: [not, a, map]\n"), 0o600))

	_, err := execute(t, "--config", cfgPath)
	require.Error(t, err)

	logData, readErr := os.ReadFile(logFile)
	require.NoError(t, readErr)
	assert.Contains(t, string(logData), "Failed to load configuration")
}
