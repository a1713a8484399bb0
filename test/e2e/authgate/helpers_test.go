package authgate_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helper functions for gateway end-to-end tests:
 * container setup, HTTP helpers, and assertions.
 */

const (
	testImageName = "authgate-test:latest"

	testCSRFSecret    = "e2e-csrf-secret-0123456789abcdef-xyz"
	bootstrapEmail    = "admin@tessara.example"
	bootstrapPassword = "Admin123!verylong"
)

// TestMain builds the Docker image once before all tests and cleans it up
// after they complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building AuthGate Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up AuthGate Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/authgate/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run()
}

// setupGatewayContainer starts the gateway in a container and returns the
// base URL. Edge rate limits are raised so rapid test requests don't trip
// them; the sliding-window limiter keeps its production policies.
func setupGatewayContainer(t *testing.T) (string, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env: map[string]string{
			"AUTHGATE_CSRF_SECRET":        testCSRFSecret,
			"AUTHGATE_DATABASE_FILE":      "/tmp/authgate.db",
			"AUTHGATE_BOOTSTRAP_EMAIL":    bootstrapEmail,
			"AUTHGATE_BOOTSTRAP_PASSWORD": bootstrapPassword,
			"ENV":                         "test",
			"LOG_LEVEL":                   "info",
			"LOG_FORMAT":                  "json",
			"RATELIMIT_STRICT_REQUESTS":   "1000",
			"RATELIMIT_STRICT_WINDOW_SEC": "60",
			"RATELIMIT_STRICT_BURST":      "1000",
			"RATELIMIT_MODERATE_REQUESTS": "1000",
			"RATELIMIT_MODERATE_BURST":    "1000",
		},
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return baseURL, cleanup
}

// postJSON sends a JSON body and decodes the JSON response into out when
// non-nil.
func postJSON(t *testing.T, url string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)

	if out != nil {
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close(), "close response body")
		require.NoError(t, json.Unmarshal(data, out))
	} else {
		_ = resp.Body.Close()
	}
	return resp
}

// postJSONCSRF is postJSON with the X-CSRF-Token header set, for the
// unauthenticated state-changing endpoints.
func postJSONCSRF(t *testing.T, url, csrfToken string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrfToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	if out != nil {
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close(), "close response body")
		require.NoError(t, json.Unmarshal(data, out))
	} else {
		_ = resp.Body.Close()
	}
	return resp
}

// fetchCSRFToken mints a token via the public endpoint.
func fetchCSRFToken(t *testing.T, baseURL string) string {
	t.Helper()

	var body struct {
		CSRFToken string `json:"csrfToken"`
	}
	resp := getJSON(t, baseURL+"/v1/auth/csrf-token", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body.CSRFToken)
	return body.CSRFToken
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)

	if out != nil {
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close(), "close response body")
		require.NoError(t, json.Unmarshal(data, out))
	} else {
		_ = resp.Body.Close()
	}
	return resp
}
