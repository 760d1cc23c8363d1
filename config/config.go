package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Audio       AudioConfig       `yaml:"audio"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr" env:"SERVER_ADDR"`
	AuthToken    string `yaml:"auth_token" env:"AUTH_TOKEN"`
	ShareBaseURL string `yaml:"share_base_url" env:"SHARE_BASE_URL"`
	RateLimit    int    `yaml:"rate_limit" env:"RATE_LIMIT"`
}

type OpenAIConfig struct {
	APIKey      string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"OPENAI_BASE_URL"`
	Model       string        `yaml:"model" env:"OPENAI_MODEL"`
	Timeout     time.Duration `yaml:"timeout" env:"OPENAI_TIMEOUT"`
	Language    string        `yaml:"language" env:"OPENAI_LANGUAGE"`
	SpeechModel string        `yaml:"speech_model" env:"OPENAI_SPEECH_MODEL"`
	Voice       string        `yaml:"voice" env:"OPENAI_VOICE"`
	Speed       float64       `yaml:"speed" env:"OPENAI_SPEECH_SPEED"`
}

type AudioConfig struct {
	SampleRate   int           `yaml:"sample_rate" env:"AUDIO_SAMPLE_RATE"`
	Silence      time.Duration `yaml:"silence" env:"AUDIO_SILENCE"`
	MaxUtterance time.Duration `yaml:"max_utterance" env:"AUDIO_MAX_UTTERANCE"`
}

type CredentialsConfig struct {
	Path string `yaml:"path" env:"CREDENTIALS_PATH"`
	Key  string `yaml:"key" env:"CREDENTIALS_KEY"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Load reads an optional .env file, then the yaml file at path (skipped
// when path is empty), then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate refuses to expose the control server beyond loopback without a
// token.
func (c *Config) validate() error {
	if c.Server.AuthToken == "" && !isLoopbackAddr(c.Server.Addr) {
		return fmt.Errorf("server.auth_token is required when server.addr %q is not a loopback address", c.Server.Addr)
	}
	return nil
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 30
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-3.5-turbo"
	}
	if c.OpenAI.Language == "" {
		c.OpenAI.Language = "en"
	}
	if c.OpenAI.SpeechModel == "" {
		c.OpenAI.SpeechModel = "tts-1"
	}
	if c.OpenAI.Voice == "" {
		c.OpenAI.Voice = "alloy"
	}
	if c.OpenAI.Speed == 0 {
		c.OpenAI.Speed = 1.0
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Silence == 0 {
		c.Audio.Silence = time.Second
	}
	if c.Audio.MaxUtterance == 0 {
		c.Audio.MaxUtterance = 30 * time.Second
	}
	if c.Credentials.Path == "" {
		c.Credentials.Path = "data/credentials.json"
	}
	if c.Credentials.Key == "" {
		c.Credentials.Key = "openai_api_key"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
