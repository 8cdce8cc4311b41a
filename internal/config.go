package internal

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/marginalia/internal/llm"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/pdfdoc"
	"github.com/starford/marginalia/internal/store"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Store   StoreConfig       `yaml:"store"`
	Viewer  ViewerConfig      `yaml:"viewer"`
	LLM     LLMConfig         `yaml:"llm"`
	Match   MatchConfig       `yaml:"match"`
	Context ContextConfig     `yaml:"context"`
	Auth    AuthConfig        `yaml:"auth"`
	Export  ExportConfig      `yaml:"export"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Match.Validate(); err != nil {
		return err
	}
	if err := c.Context.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile receives the JSON log in append mode. Empty means stderr.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig holds the paths of the viewer's two databases. They usually
// arrive as command-line flags, so they are checked when a command needs
// them rather than at load time.
type StoreConfig struct {
	Local  string `yaml:"local"`
	Shared string `yaml:"shared"`
}

// Complete reports whether both paths are set.
func (c *StoreConfig) Complete() bool {
	return strings.TrimSpace(c.Local) != "" && strings.TrimSpace(c.Shared) != ""
}

// ViewerConfig holds the host viewer executable.
type ViewerConfig struct {
	Executable string `yaml:"executable"`
}

// LLMConfig holds chat endpoint configuration.
type LLMConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
	MaxTokens    int    `yaml:"max_tokens"`
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.MaxTokens, validation.Min(0)),
	)
}

// ProviderConfig returns the provider settings, taking the API key from
// OPENAI_API_KEY when the file leaves it empty.
func (c *LLMConfig) ProviderConfig() llm.Config {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	return llm.Config{
		APIKey:    key,
		BaseURL:   c.BaseURL,
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
	}
}

// MatchConfig holds highlight matching tolerances.
//
// ExactTolerance decides when a new selection reuses an existing highlight;
// NearTolerance is the margin around a highlight that still counts as a
// click on it.
type MatchConfig struct {
	ExactTolerance float64 `yaml:"exact_tolerance"`
	NearTolerance  float64 `yaml:"near_tolerance"`
	HighlightType  string  `yaml:"highlight_type"`
}

// Validate validates the match configuration.
func (c *MatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ExactTolerance, validation.Min(0.0)),
		validation.Field(&c.NearTolerance, validation.Required, validation.Min(0.0)),
		validation.Field(&c.HighlightType, validation.Required, validation.RuneLength(1, 1)),
	)
}

// ContextConfig controls how much document text accompanies a question.
type ContextConfig struct {
	Window   int `yaml:"window"`
	MaxChars int `yaml:"max_chars"`
}

// Validate validates the context configuration.
func (c *ContextConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Window, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxChars, validation.Required, validation.Min(1)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ExportConfig holds the transcript export destination.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		LLM: LLMConfig{
			Model:        llm.DefaultModel,
			SystemPrompt: llm.DefaultSystemPrompt,
		},
		Match: MatchConfig{
			ExactTolerance: store.DefaultExactTolerance,
			NearTolerance:  40,
			HighlightType:  models.HighlightTypeAI,
		},
		Context: ContextConfig{
			Window:   pdfdoc.DefaultContextWindow,
			MaxChars: pdfdoc.DefaultMaxChars,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Export: ExportConfig{
			Dir: "./transcripts",
		},
	}
}
