// Package config loads run parameters from config/settings.yaml.
//
// The loaded Config is passed explicitly to every runner; nothing in the
// automation core reads process-wide configuration.
package config

import (
	"time"

	"github.com/v0xg/playbot/internal/budget"
)

// DefaultPath is where the CLI looks for settings
const DefaultPath = "config/settings.yaml"

// Config is the complete run configuration.
type Config struct {
	Portal        PortalConfig        `yaml:"portal"`
	Credentials   CredentialsConfig   `yaml:"credentials"`
	Project       ProjectConfig       `yaml:"project"`
	Browser       BrowserConfig       `yaml:"browser"`
	Automation    AutomationConfig    `yaml:"automation"`
	BudgetMapping BudgetMappingConfig `yaml:"budget_mapping"`
	Output        OutputConfig        `yaml:"output"`
	Logging       LoggingConfig       `yaml:"logging"`
	AI            AIConfig            `yaml:"ai"`
}

// PortalConfig locates the target portal.
type PortalConfig struct {
	URL     string        `yaml:"url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
}

// CredentialsConfig holds login secrets, normally supplied as ${VAR} references.
type CredentialsConfig struct {
	UserID           string `yaml:"user_id" validate:"required"`
	Password         string `yaml:"password" validate:"required"`
	TransferPassword string `yaml:"transfer_password"`
}

// ProjectConfig selects the subsidy project to work on.
type ProjectConfig struct {
	FiscalYear  string `yaml:"fiscal_year" validate:"required,len=4,numeric"`
	ProjectCode string `yaml:"project_code" validate:"required"`
}

// BrowserConfig configures the page-automation driver.
type BrowserConfig struct {
	Driver     string        `yaml:"driver" validate:"oneof=rod playwright"`
	Headless   bool          `yaml:"headless"`
	SlowMo     time.Duration `yaml:"slow_mo" validate:"min=0"`
	Width      int           `yaml:"width" validate:"min=320"`
	Height     int           `yaml:"height" validate:"min=240"`
	Locale     string        `yaml:"locale"`
	ProfileDir string        `yaml:"profile_dir"`
}

// AutomationConfig holds per-kind limits and executor timing.
type AutomationConfig struct {
	CardUsage   KindConfig     `yaml:"card_usage"`
	TaxInvoice  KindConfig     `yaml:"tax_invoice"`
	Transfer    TransferConfig `yaml:"transfer"`
	SettleDelay time.Duration  `yaml:"settle_delay" validate:"min=0"`
	StepTimeout time.Duration  `yaml:"step_timeout" validate:"min=0"`
}

// KindConfig caps how many rows one run reads.
type KindConfig struct {
	MaxItems int `yaml:"max_items" validate:"min=1"`
}

// TransferConfig adds the bound on the human certificate step.
type TransferConfig struct {
	MaxItems    int           `yaml:"max_items" validate:"min=1"`
	AuthTimeout time.Duration `yaml:"auth_timeout" validate:"min=0"`
}

// BudgetMappingConfig is the ordered rule list and its fallback.
type BudgetMappingConfig struct {
	Rules   []budget.Rule         `yaml:"rules" validate:"dive"`
	Default budget.Classification `yaml:"default"`
}

// OutputConfig names the artifact directories.
type OutputConfig struct {
	ScreenshotsDir string `yaml:"screenshots_dir" validate:"required"`
	ResultsDir     string `yaml:"results_dir" validate:"required"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// AIConfig selects the provider used by `playbot suggest`.
type AIConfig struct {
	Provider string `yaml:"provider" validate:"omitempty,oneof=claude openai"`
	Model    string `yaml:"model"`
}

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		Portal: PortalConfig{
			Timeout: 30 * time.Second,
		},
		Browser: BrowserConfig{
			Driver: "rod",
			SlowMo: 100 * time.Millisecond,
			Width:  1920,
			Height: 1080,
			Locale: "ko-KR",
		},
		Automation: AutomationConfig{
			CardUsage:   KindConfig{MaxItems: 50},
			TaxInvoice:  KindConfig{MaxItems: 100},
			Transfer:    TransferConfig{MaxItems: 30, AuthTimeout: 120 * time.Second},
			SettleDelay: 500 * time.Millisecond,
			StepTimeout: 10 * time.Second,
		},
		BudgetMapping: BudgetMappingConfig{
			Default: budget.DefaultClassification,
		},
		Output: OutputConfig{
			ScreenshotsDir: "logs/screenshots",
			ResultsDir:     "logs/results",
		},
		Logging: LoggingConfig{
			File:  "logs/automation.log",
			Level: "info",
		},
	}
}

// Variables exposes configuration values to playbook {{name}} placeholders.
func (c *Config) Variables() map[string]string {
	return map[string]string{
		"portal_url":   c.Portal.URL,
		"user_id":      c.Credentials.UserID,
		"password":     c.Credentials.Password,
		"fiscal_year":  c.Project.FiscalYear,
		"project_code": c.Project.ProjectCode,
	}
}
