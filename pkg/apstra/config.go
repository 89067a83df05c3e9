package apstra

import (
	"crypto/tls"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bturcanu/apstra-mcp/pkg/config"
	"github.com/bturcanu/apstra-mcp/pkg/types"
	"github.com/go-playground/validator/v10"
)

const defaultTimeout = 30 * time.Second

// Config holds the controller address and login credentials.
type Config struct {
	BaseURL  string `validate:"required,url"`
	Username string `validate:"required"`
	Password string `validate:"required"`

	// InsecureSkipVerify disables TLS certificate verification. Controllers
	// deployed with self-signed certificates need it; it stays off unless
	// explicitly enabled.
	InsecureSkipVerify bool

	Timeout time.Duration `validate:"gt=0"`
}

// ConfigFromEnv reads APSTRA_SERVER, APSTRA_USERNAME, APSTRA_PASSWORD,
// APSTRA_INSECURE_SKIP_VERIFY and APSTRA_TIMEOUT_SEC.
func ConfigFromEnv() Config {
	return Config{
		BaseURL:            NormalizeBaseURL(config.EnvOr("APSTRA_SERVER", "")),
		Username:           config.EnvOr("APSTRA_USERNAME", ""),
		Password:           config.EnvOr("APSTRA_PASSWORD", ""),
		InsecureSkipVerify: config.EnvOrBool("APSTRA_INSECURE_SKIP_VERIFY", false),
		Timeout:            config.EnvOrSeconds("APSTRA_TIMEOUT_SEC", defaultTimeout),
	}
}

// NormalizeBaseURL accepts either a bare host ("aos.example.net:443") or a
// URL and returns a URL without a trailing slash. Bare hosts get https.
func NormalizeBaseURL(server string) string {
	s := strings.TrimRight(strings.TrimSpace(server), "/")
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	return s
}

// Validate reports the first missing or malformed field.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &types.ValidationError{Field: verrs[0].Field(), Reason: verrs[0].Tag()}
		}
		return err
	}
	return nil
}

// NewHTTPClient builds the client shared by login and resource calls.
func NewHTTPClient(cfg Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // operator opt-in for self-signed controllers
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}
