package commands

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/gglsbl/internal/config"
	"evalgo.org/gglsbl/internal/mockserver"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startMock serves a mock service and counts requests.
func startMock(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	mock := mockserver.New(mockserver.Config{Environment: "test", Logger: discardLogger()})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		mock.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// configFor writes a config file whose default profile points at srv.
func configFor(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gglsbl-rest.ini")
	content := fmt.Sprintf("[default]\nremote_host = %s\nremote_port = %s\nignore_proxy = yes\n", u.Hostname(), u.Port())
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the command line and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCheckStatus(t *testing.T) {
	srv, _ := startMock(t)
	cfgPath := configFor(t, srv)

	stdout, _, err := run(t, "--config", cfgPath, "--check-status")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"environment": "test"`)
	assert.NotContains(t, stdout, "No arguments specified")
}

func TestStatusCommand(t *testing.T) {
	srv, _ := startMock(t)
	cfgPath := configFor(t, srv)

	stdout, _, err := run(t, "status", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"environment": "test"`)
}

func TestLookupURLFlag(t *testing.T) {
	srv, _ := startMock(t)
	cfgPath := configFor(t, srv)

	stdout, _, err := run(t, "--config", cfgPath, "--lookup-url", mockserver.TestURL)
	require.NoError(t, err)
	assert.Contains(t, stdout, "SOCIAL_ENGINEERING")
	assert.Contains(t, stdout, mockserver.TestURL)
}

func TestLookupCommand_NotFound(t *testing.T) {
	srv, _ := startMock(t)
	cfgPath := configFor(t, srv)

	stdout, _, err := run(t, "lookup", "http://example.com/x", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"matches": []`)
	assert.Contains(t, stdout, `"url": "http://example.com/x"`)
}

func TestNoArguments(t *testing.T) {
	srv, _ := startMock(t)
	cfgPath := configFor(t, srv)

	stdout, _, err := run(t, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No arguments specified. Printing client info and service status.")
	assert.Contains(t, stdout, "Lookup URL: "+srv.URL+"/gglsbl/lookup/")
	assert.Contains(t, stdout, "GGLSBL Service status:")
}

func TestNoArguments_ServiceDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()
	cfgPath := configFor(t, srv)

	stdout, stderr, err := run(t, "--config", cfgPath)
	require.NoError(t, err)
	assert.NotContains(t, stdout, "GGLSBL Service status:")
	assert.Contains(t, stderr, "service seems down")
	assert.Contains(t, stderr, "upstream unavailable")
}

func TestFlagsOverrideConfig(t *testing.T) {
	srv, _ := startMock(t)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gglsbl-rest.ini")
	content := "[default]\nremote_host = unreachable.invalid\nremote_port = 1\nignore_proxy = yes\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	stdout, _, err := run(t, "--config", path, "-r", u.Hostname(), "-p", u.Port(), "-c")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"environment": "test"`)
}

func TestConfigValuesFillDefaults(t *testing.T) {
	srv, _ := startMock(t)
	cfgPath := configFor(t, srv)

	// Flags left at their defaults must not replace configured values.
	stdout, _, err := run(t, "--config", cfgPath, "config", "show")
	require.NoError(t, err)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	assert.Contains(t, stdout, "remote_host: "+u.Hostname())
	assert.Contains(t, stdout, "remote_port: \""+u.Port()+"\"")
	assert.Contains(t, stdout, "ignore_proxy: true")
}

func TestConfigurationErrorStopsBeforeRequests(t *testing.T) {
	srv, hits := startMock(t)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	missing := filepath.Join(t.TempDir(), "missing.ini")
	stdout, stderr, err := run(t, "--config", missing, "-r", u.Hostname(), "-p", u.Port(), "-c")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
	assert.Zero(t, hits.Load())
	assert.Empty(t, stdout)
	assert.Empty(t, stderr, "the error is returned to main, not logged as well")

	path := filepath.Join(t.TempDir(), "gglsbl-rest.ini")
	require.NoError(t, os.WriteFile(path, []byte("[default]\nremote_host = x\n"), 0o644))
	_, _, err = run(t, "--config", path, "-r", u.Hostname(), "-p", u.Port(), "-c")
	assert.ErrorIs(t, err, config.ErrMissingOption)
	assert.Zero(t, hits.Load())
}

func TestUnknownProfile(t *testing.T) {
	srv, _ := startMock(t)
	cfgPath := configFor(t, srv)

	_, _, err := run(t, "--config", cfgPath, "--profile", "production", "-c")
	assert.ErrorIs(t, err, config.ErrProfileNotFound)
}

func TestIgnoreProxyUnsetsEnvironment(t *testing.T) {
	srv, _ := startMock(t)
	cfgPath := configFor(t, srv)

	t.Setenv("http_proxy", "http://proxy.invalid:3128")
	t.Setenv("HTTP_PROXY", "http://proxy.invalid:3128")

	_, _, err := run(t, "--config", cfgPath, "-c")
	require.NoError(t, err)

	_, ok := os.LookupEnv("http_proxy")
	assert.False(t, ok)
	_, ok = os.LookupEnv("HTTP_PROXY")
	assert.False(t, ok)
}

func TestCheckStatusAndLookupAreExclusive(t *testing.T) {
	srv, _ := startMock(t)
	cfgPath := configFor(t, srv)

	_, _, err := run(t, "--config", cfgPath, "-c", "-l", "http://example.com/")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.ini")

	stdout, _, err := run(t, "config", "init", path, "-r", "scanner.local", "-p", "5001", "--profile", "staging")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created "+path)

	settings, err := config.Load("staging", path)
	require.NoError(t, err)
	assert.Equal(t, "scanner.local", settings.RemoteHost)
	assert.Equal(t, "5001", settings.RemotePort)
	assert.True(t, settings.IgnoreProxy)

	_, _, err = run(t, "config", "init", path)
	assert.Error(t, err)

	_, _, err = run(t, "config", "init", path, "--force")
	assert.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := run(t, "version", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, stdout, "gglsbl ")
	assert.Contains(t, stdout, "Go Version:")
}

func TestParseBlocklist(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		want    map[string]string
		wantErr bool
	}{
		{
			name:    "threat type given",
			entries: []string{"http://malware.example/=MALWARE"},
			want:    map[string]string{"http://malware.example/": "MALWARE"},
		},
		{
			name:    "default threat type",
			entries: []string{"http://phish.example/"},
			want:    map[string]string{"http://phish.example/": "MALWARE"},
		},
		{
			name:    "query string keeps its equals sign",
			entries: []string{"http://example.com/?a=b"},
			want:    map[string]string{"http://example.com/?a=b": "MALWARE"},
		},
		{
			name:    "query string with threat type",
			entries: []string{"http://example.com/?a=b=SOCIAL_ENGINEERING"},
			want:    map[string]string{"http://example.com/?a=b": "SOCIAL_ENGINEERING"},
		},
		{
			name:    "query value in capitals is not a threat type",
			entries: []string{"http://x/?id=ABC"},
			want:    map[string]string{"http://x/?id=ABC": "MALWARE"},
		},
		{
			name:    "unwanted software",
			entries: []string{"http://x/?id=ABC=UNWANTED_SOFTWARE"},
			want:    map[string]string{"http://x/?id=ABC": "UNWANTED_SOFTWARE"},
		},
		{
			name:    "empty url",
			entries: []string{"=MALWARE"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBlocklist(tt.entries)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
