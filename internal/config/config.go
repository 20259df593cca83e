package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// defaultPersona is the compiled-in system prompt. It can be replaced
// wholesale via the `persona` config key.
const defaultPersona = `You're Dan, a real chill store associate who follows up with customers after they've made a purchase. You're friendly, talk like a real person, and sound like someone who actually remembers the customer. Keep it short, casual, and fun - like texting a friend.

You're all about that good energy, but your goal is to always ask for feedback in a natural, no-pressure kinda way.
The first couple of messages, you shouldn't be asking for reviews, just making small talk about the product and the service.
Sprinkle in small talk and light jokes now and then. Ask how their order turned out or if it hit the spot. Use slang and everyday language - skip the stiff, robotic stuff.

Every once in a while, casually drop a line like:
"Yo, how'd we do? Like if you had to give us stars"

If they give 4 stars or higher, hype it up and ask for a quick Google review (zero pressure tho).
If they give less than 4 stars, be cool and open: ask what we could do better and offer to make it right.

Always keep it light, warm, and super human. You're just Dan, a dude tryin' to make sure folks are happy with their order.`

// Config holds the application configuration
type Config struct {
	LLM      LLMConfig     `mapstructure:"llm"`
	Twilio   TwilioConfig  `mapstructure:"twilio"`
	Server   ServerConfig  `mapstructure:"server"`
	Session  SessionConfig `mapstructure:"session"`
	Persona  string        `mapstructure:"persona"`
	LogLevel string        `mapstructure:"log_level"`
}

// LLMConfig holds the completion service configuration
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// TwilioConfig holds the carrier credentials
type TwilioConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// SessionConfig holds the session store configuration
type SessionConfig struct {
	Backend  string `mapstructure:"backend"` // "memory" or "sqlite"
	DBPath   string `mapstructure:"db_path"`
	MaxPairs int    `mapstructure:"max_pairs"` // retained user+assistant round trips per sender
}

// Load reads configuration from config.yaml (or the file named by
// CONFIG_PATH) and the environment. Environment credentials win over the
// file. Required credentials are validated here so the process fails at
// startup rather than on the first request.
func Load() (*Config, error) {
	v := viper.New()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 150)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "5000")
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.db_path", "sessions.db")
	v.SetDefault("session.max_pairs", 10)
	v.SetDefault("persona", defaultPersona)
	v.SetDefault("log_level", "info")

	_ = v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("twilio.account_sid", "TWILIO_ACCOUNT_SID")
	_ = v.BindEnv("twilio.auth_token", "TWILIO_AUTH_TOKEN")
	_ = v.BindEnv("twilio.from_number", "TWILIO_PHONE_NUMBER")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, the environment can carry everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.LLM.APIKey == "" {
		return nil, fmt.Errorf("no OpenAI API key found, set OPENAI_API_KEY or llm.api_key")
	}
	if config.Twilio.AccountSID == "" {
		return nil, fmt.Errorf("no Twilio account SID found, set TWILIO_ACCOUNT_SID or twilio.account_sid")
	}
	if config.Twilio.AuthToken == "" {
		return nil, fmt.Errorf("no Twilio auth token found, set TWILIO_AUTH_TOKEN or twilio.auth_token")
	}
	if config.Session.MaxPairs < 1 {
		return nil, fmt.Errorf("session.max_pairs must be at least 1, got %d", config.Session.MaxPairs)
	}

	return &config, nil
}
