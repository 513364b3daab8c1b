package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend    BackendConfig    `yaml:"backend"`
	Store      StoreConfig      `yaml:"store"`
	Speech     SpeechConfig     `yaml:"speech"`
	Capture    CaptureConfig    `yaml:"capture"`
	Turn       TurnConfig       `yaml:"turn"`
	Suggest    SuggestConfig    `yaml:"suggest"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

// SpeechConfig selects how the user's utterances are voiced.
type SpeechConfig struct {
	Output    string `yaml:"output"` // elevenlabs, none
	Player    string `yaml:"player"` // speaker, file
	OutputDir string `yaml:"output_dir"`
}

// CaptureConfig selects where the partner's replies come from.
type CaptureConfig struct {
	Source       string `yaml:"source"` // http, file, microphone, none
	FileDir      string `yaml:"file_dir"`
	SampleRate   int    `yaml:"sample_rate"`
	RestartDelay string `yaml:"restart_delay"`
}

type TurnConfig struct {
	SettleDelay  string `yaml:"settle_delay"`
	PollInterval string `yaml:"poll_interval"`
	MaxAttempts  int    `yaml:"max_attempts"`
	ArmDelay     string `yaml:"arm_delay"`
}

type SuggestConfig struct {
	Provider    string `yaml:"provider"` // openai, anthropic, gemini, none
	Count       int    `yaml:"count"`
	MaxLength   int    `yaml:"max_length"`
	Language    string `yaml:"language"`
	TokenBudget int    `yaml:"token_budget"`
	Timeout     string `yaml:"timeout"`
}

type OpenAIConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	STTLanguage string `yaml:"stt_language"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type ElevenLabsConfig struct {
	APIKey  string `yaml:"api_key"`
	VoiceID string `yaml:"voice_id"`
	Model   string `yaml:"model"`
}

type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	AuthToken         string   `yaml:"auth_token"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path. Variables from a .env file next to the
// working directory are loaded first so ${VAR} references can use them;
// variables already set in the environment win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Backend.Timeout == "" {
		c.Backend.Timeout = "15s"
	}
	if c.Store.Path == "" {
		c.Store.Path = "./data/companion.db"
	}
	if c.Speech.Output == "" {
		c.Speech.Output = "elevenlabs"
	}
	if c.Speech.Player == "" {
		c.Speech.Player = "speaker"
	}
	if c.Speech.OutputDir == "" {
		c.Speech.OutputDir = "./spoken"
	}
	if c.Capture.Source == "" {
		c.Capture.Source = "http"
	}
	if c.Capture.FileDir == "" {
		c.Capture.FileDir = "./audio"
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = 16000
	}
	if c.Capture.RestartDelay == "" {
		c.Capture.RestartDelay = "100ms"
	}
	if c.Turn.SettleDelay == "" {
		c.Turn.SettleDelay = "300ms"
	}
	if c.Turn.PollInterval == "" {
		c.Turn.PollInterval = "100ms"
	}
	if c.Turn.MaxAttempts == 0 {
		c.Turn.MaxAttempts = 20
	}
	if c.Turn.ArmDelay == "" {
		c.Turn.ArmDelay = "500ms"
	}
	if c.Suggest.Provider == "" {
		c.Suggest.Provider = "openai"
	}
	if c.Suggest.Count == 0 {
		c.Suggest.Count = 5
	}
	if c.Suggest.MaxLength == 0 {
		c.Suggest.MaxLength = 15
	}
	if c.Suggest.Language == "" {
		c.Suggest.Language = "Korean"
	}
	if c.Suggest.TokenBudget == 0 {
		c.Suggest.TokenBudget = 2000
	}
	if c.Suggest.Timeout == "" {
		c.Suggest.Timeout = "15s"
	}
	if c.OpenAI.STTLanguage == "" {
		c.OpenAI.STTLanguage = "ko"
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-sonnet-4-20250514"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.ElevenLabs.Model == "" {
		c.ElevenLabs.Model = "eleven_multilingual_v2"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RequestsPerMinute == 0 {
		c.Server.RequestsPerMinute = 120
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	}

	switch c.Speech.Output {
	case "elevenlabs":
		if c.ElevenLabs.VoiceID == "" {
			errs = append(errs, errors.New("elevenlabs.voice_id is required when speech.output is elevenlabs"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("speech.output: unknown value %q", c.Speech.Output))
	}

	switch c.Speech.Player {
	case "speaker", "file":
	default:
		errs = append(errs, fmt.Errorf("speech.player: unknown value %q", c.Speech.Player))
	}

	switch c.Capture.Source {
	case "http", "file", "microphone", "none":
	default:
		errs = append(errs, fmt.Errorf("capture.source: unknown value %q", c.Capture.Source))
	}

	switch c.Suggest.Provider {
	case "openai", "anthropic", "gemini", "none":
	default:
		errs = append(errs, fmt.Errorf("suggest.provider: unknown value %q", c.Suggest.Provider))
	}

	if c.Turn.MaxAttempts < 1 {
		errs = append(errs, errors.New("turn.max_attempts must be at least 1"))
	}

	durations := map[string]string{
		"backend.timeout":       c.Backend.Timeout,
		"capture.restart_delay": c.Capture.RestartDelay,
		"turn.settle_delay":     c.Turn.SettleDelay,
		"turn.poll_interval":    c.Turn.PollInterval,
		"turn.arm_delay":        c.Turn.ArmDelay,
		"suggest.timeout":       c.Suggest.Timeout,
	}
	for name, value := range durations {
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, value))
		}
	}

	return errors.Join(errs...)
}

// Duration parses a value already checked by Validate.
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}
