package cfg

import (
	"flag"
	"strings"
	"testing"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		ClaudeAPIKey:          "sk-test-key",
		ClaudeModel:           "claude-sonnet-4-20250514",
		PublicPrecision:       4,
		DuplicateRadiusM:      100,
		DuplicateWindowHours:  48,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.PublicPrecision != 4 {
		t.Errorf("PublicPrecision = %d, want 4", c.PublicPrecision)
	}
	if c.DuplicateRadiusM != 100 {
		t.Errorf("DuplicateRadiusM = %v, want 100", c.DuplicateRadiusM)
	}
	if c.DuplicateWindowHours != 48 {
		t.Errorf("DuplicateWindowHours = %d, want 48", c.DuplicateWindowHours)
	}
	if c.SyncVerification {
		t.Error("SyncVerification default = true, want false")
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-http-port", "9000",
		"-ml-endpoint", "http://ml:8090",
		"-public-precision", "3",
		"-duplicate-radius-m", "250",
		"-sync-verification",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.APIPort != 9000 {
		t.Errorf("APIPort = %d, want 9000", c.APIPort)
	}
	if c.MLEndpoint != "http://ml:8090" {
		t.Errorf("MLEndpoint = %q", c.MLEndpoint)
	}
	if c.PublicPrecision != 3 {
		t.Errorf("PublicPrecision = %d, want 3", c.PublicPrecision)
	}
	if c.DuplicateRadiusM != 250 {
		t.Errorf("DuplicateRadiusM = %v, want 250", c.DuplicateRadiusM)
	}
	if !c.SyncVerification {
		t.Error("SyncVerification = false, want true")
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()

	c := validBase()
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	// An ML endpoint alone also satisfies the oracle requirement.
	c = validBase()
	c.ClaudeAPIKey = ""
	c.ClaudeModel = ""
	c.MLEndpoint = "http://ml:8090"
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() with ml endpoint = %v, want nil", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"drain too low", func(c *Config) { c.DrainSeconds = 0 }, "DRAIN_SECONDS"},
		{"drain too high", func(c *Config) { c.DrainSeconds = 301; c.ShutdownBudgetSeconds = 302 },
			"DRAIN_SECONDS"},
		{"budget not above drain", func(c *Config) { c.ShutdownBudgetSeconds = 60 },
			"must be greater than"},
		{"port zero", func(c *Config) { c.APIPort = 0 }, "HTTP_PORT"},
		{"port too high", func(c *Config) { c.APIPort = 70000 }, "HTTP_PORT"},
		{"no oracle", func(c *Config) { c.ClaudeAPIKey = ""; c.MLEndpoint = "" },
			"ML_ENDPOINT or CLAUDE_API_KEY"},
		{"claude without model", func(c *Config) { c.ClaudeModel = "" }, "CLAUDE_MODEL"},
		{"precision out of range", func(c *Config) { c.PublicPrecision = 7 }, "PUBLIC_PRECISION"},
		{"negative radius", func(c *Config) { c.DuplicateRadiusM = -1 }, "DUPLICATE_RADIUS_M"},
		{"zero window", func(c *Config) { c.DuplicateWindowHours = 0 }, "DUPLICATE_WINDOW_HOURS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := validBase()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	t.Parallel()

	c := validBase()
	c.APIPort = 0
	c.DuplicateRadiusM = 0
	err := c.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, sub := range []string{"HTTP_PORT", "DUPLICATE_RADIUS_M"} {
		if !strings.Contains(err.Error(), sub) {
			t.Errorf("missing %q in %q", sub, err)
		}
	}
}
