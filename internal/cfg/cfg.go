package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	ClaudeAPIKey          string
	ClaudeModel           string
	MLEndpoint            string
	AuthToken             string
	PublicPrecision       int
	DuplicateRadiusM      float64
	DuplicateWindowHours  int
	SyncVerification      bool
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.MLEndpoint, "ml-endpoint", "", "internal ML inference endpoint (takes priority over Claude when set)")
	fs.StringVar(&c.AuthToken, "auth-token", "", "bearer token required on mutating endpoints (empty = open)")
	fs.IntVar(&c.PublicPrecision, "public-precision", 4, "decimal places kept on publicly visible coordinates (0..6)")
	fs.Float64Var(&c.DuplicateRadiusM, "duplicate-radius-m", 100, "spatial radius in meters for duplicate candidate matching")
	fs.IntVar(&c.DuplicateWindowHours, "duplicate-window-hours", 48, "time window in hours for duplicate candidate matching")
	fs.BoolVar(&c.SyncVerification, "sync-verification", false, "run verification inline with ingestion instead of in the background")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Exactly one verification oracle must be reachable
	if c.MLEndpoint == "" && c.ClaudeAPIKey == "" {
		errs = append(errs, errors.New("either ML_ENDPOINT or CLAUDE_API_KEY is required"))
	}
	if c.MLEndpoint == "" && c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required"))
	}

	if c.PublicPrecision < 0 || c.PublicPrecision > 6 {
		errs = append(errs, fmt.Errorf("invalid PUBLIC_PRECISION %d (must be 0..6)", c.PublicPrecision))
	}
	if c.DuplicateRadiusM <= 0 {
		errs = append(errs, fmt.Errorf("invalid DUPLICATE_RADIUS_M %v (must be positive)", c.DuplicateRadiusM))
	}
	if c.DuplicateWindowHours <= 0 {
		errs = append(errs, fmt.Errorf("invalid DUPLICATE_WINDOW_HOURS %d (must be positive)", c.DuplicateWindowHours))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
