package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

// SysConfig holds process-level settings.
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig holds the HTTP listener settings.
type WebConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	JwtSecret string `yaml:"jwt_secret"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// DBConfig holds relational store settings.
type DBConfig struct {
	Type   string `yaml:"type"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
	User   string `yaml:"user"`
	Passwd string `yaml:"passwd"`
	Debug  bool   `yaml:"debug"`
}

// WebhookConfig guards the inbound gateway webhook.
type WebhookConfig struct {
	// Secret, when set, must match the X-Webhook-Secret request header.
	Secret string `yaml:"secret"`
}

// SweeperConfig controls auto-resume and ledger retention.
type SweeperConfig struct {
	ResumeAfterHours int    `yaml:"resume_after_hours"`
	RetentionDays    int    `yaml:"retention_days"`
	IntervalMinutes  int    `yaml:"interval_minutes"`
	CronSecret       string `yaml:"cron_secret"`
}

// LlmConfig selects and bounds the reply generation back-end.
type LlmConfig struct {
	Provider        string `yaml:"provider"`
	AnthropicApikey string `yaml:"anthropic_apikey"`
	OpenaiApikey    string `yaml:"openai_apikey"`
	Model           string `yaml:"model"`
	MaxTokens       int    `yaml:"max_tokens"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	DefaultPrompt   string `yaml:"default_prompt"`
	MaxWorkers      int    `yaml:"max_workers"`
}

// GatewayConfig bounds outbound messaging-gateway calls.
type GatewayConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type AppConfig struct {
	System   SysConfig     `yaml:"system"`
	Web      WebConfig     `yaml:"web"`
	Logger   LogConfig     `yaml:"logger"`
	Database DBConfig      `yaml:"database"`
	Webhook  WebhookConfig `yaml:"webhook"`
	Sweeper  SweeperConfig `yaml:"sweeper"`
	Llm      LlmConfig     `yaml:"llm"`
	Gateway  GatewayConfig `yaml:"gateway"`
}

const DefaultSystemPrompt = "You are a helpful WhatsApp assistant. Respond professionally and concisely to customer inquiries."

// DefaultAppConfig is the baseline configuration; file values and environment
// overrides are applied on top of it.
var DefaultAppConfig = AppConfig{
	System: SysConfig{
		Appid:    "wa-assist",
		Location: "UTC",
		Workdir:  "/var/wa-assist",
	},
	Web: WebConfig{
		Host:      "0.0.0.0",
		Port:      1898,
		JwtSecret: "8A2B1CC3-9never-use-in-production",
	},
	Logger: LogConfig{
		Mode:     "development",
		Filename: "/var/wa-assist/wa-assist.log",
	},
	Database: DBConfig{
		Type:   "postgres",
		Host:   "127.0.0.1",
		Port:   5432,
		Name:   "wa_assist",
		User:   "postgres",
		Passwd: "postgres",
	},
	Sweeper: SweeperConfig{
		ResumeAfterHours: 2,
		RetentionDays:    7,
		IntervalMinutes:  15,
		CronSecret:       "change-me-cron-secret",
	},
	Llm: LlmConfig{
		Provider:       "anthropic",
		MaxTokens:      1024,
		TimeoutSeconds: 10,
		DefaultPrompt:  DefaultSystemPrompt,
		MaxWorkers:     8,
	},
	Gateway: GatewayConfig{
		TimeoutSeconds: 10,
	},
}

func setEnvStrValue(name string, val *string) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = evalue
	}
}

func setEnvIntValue(name string, val *int) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = cast.ToInt(evalue)
	}
}

func setEnvBoolValue(name string, val *bool) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = cast.ToBool(evalue)
	}
}

// LoadConfig reads cfile (when it exists) and applies environment overrides.
// A missing or empty cfile yields the defaults.
func LoadConfig(cfile string) *AppConfig {
	cfg := DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(filepath.Clean(cfile)); err == nil {
			_ = yaml.Unmarshal(data, &cfg)
		}
	}

	setEnvStrValue("WA_ASSIST_WORKDIR", &cfg.System.Workdir)
	setEnvStrValue("WA_ASSIST_LOCATION", &cfg.System.Location)
	setEnvBoolValue("WA_ASSIST_DEBUG", &cfg.System.Debug)

	setEnvStrValue("WA_ASSIST_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("WA_ASSIST_WEB_PORT", &cfg.Web.Port)
	setEnvStrValue("WA_ASSIST_WEB_JWT_SECRET", &cfg.Web.JwtSecret)

	setEnvStrValue("WA_ASSIST_DB_TYPE", &cfg.Database.Type)
	setEnvStrValue("WA_ASSIST_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("WA_ASSIST_DB_PORT", &cfg.Database.Port)
	setEnvStrValue("WA_ASSIST_DB_NAME", &cfg.Database.Name)
	setEnvStrValue("WA_ASSIST_DB_USER", &cfg.Database.User)
	setEnvStrValue("WA_ASSIST_DB_PWD", &cfg.Database.Passwd)

	setEnvStrValue("WA_ASSIST_WEBHOOK_SECRET", &cfg.Webhook.Secret)
	setEnvStrValue("WA_ASSIST_CRON_SECRET", &cfg.Sweeper.CronSecret)
	setEnvIntValue("WA_ASSIST_RESUME_AFTER_HOURS", &cfg.Sweeper.ResumeAfterHours)
	setEnvIntValue("WA_ASSIST_RETENTION_DAYS", &cfg.Sweeper.RetentionDays)

	setEnvStrValue("WA_ASSIST_LLM_PROVIDER", &cfg.Llm.Provider)
	setEnvStrValue("ANTHROPIC_API_KEY", &cfg.Llm.AnthropicApikey)
	setEnvStrValue("OPENAI_API_KEY", &cfg.Llm.OpenaiApikey)
	setEnvIntValue("WA_ASSIST_LLM_TIMEOUT", &cfg.Llm.TimeoutSeconds)

	return &cfg
}
