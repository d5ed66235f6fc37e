package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"speaksmart/internal/domain"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Audio         AudioConfig         `yaml:"audio"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Dialogue      DialogueConfig      `yaml:"dialogue"`
	Notify        NotifyConfig        `yaml:"notify"`
	Log           LogConfig           `yaml:"log"`
}

type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	AuthToken     string        `yaml:"auth_token"`
	RateLimit     int           `yaml:"rate_limit"`
	RateWindow    time.Duration `yaml:"rate_window"`
	MaxAudioBytes int           `yaml:"max_audio_bytes"`
}

// AudioConfig describes local capture. Source is "none", "file" or
// "microphone"; uploads over HTTP work regardless.
type AudioConfig struct {
	Source           string        `yaml:"source"`
	FileDir          string        `yaml:"file_dir"`
	SampleRate       int           `yaml:"sample_rate"`
	Channels         int           `yaml:"channels"`
	SilenceThreshold int           `yaml:"silence_threshold"`
	SilenceDuration  time.Duration `yaml:"silence_duration"`
	MaxDuration      time.Duration `yaml:"max_duration"`
}

type TranscriptionConfig struct {
	Provider string         `yaml:"provider"`
	Timeout  time.Duration  `yaml:"timeout"`
	Whisper  WhisperConfig  `yaml:"whisper"`
	Deepgram DeepgramConfig `yaml:"deepgram"`
}

type WhisperConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	BaseURL  string `yaml:"base_url"`
}

type DeepgramConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	URL      string `yaml:"url"`
}

type DialogueConfig struct {
	Provider   string           `yaml:"provider"`
	Timeout    time.Duration    `yaml:"timeout"`
	Gemini     ProviderConfig   `yaml:"gemini"`
	OpenAI     ProviderConfig   `yaml:"openai"`
	Anthropic  ProviderConfig   `yaml:"anthropic"`
	Generation GenerationConfig `yaml:"generation"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type GenerationConfig struct {
	Temperature      *float32 `yaml:"temperature"`
	TopP             *float32 `yaml:"top_p"`
	TopK             *float32 `yaml:"top_k"`
	MaxOutputTokens  int32    `yaml:"max_output_tokens"`
	ResponseMIMEType string   `yaml:"response_mime_type"`
}

type NotifyConfig struct {
	Pushover      PushoverConfig      `yaml:"pushover"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Title   string `yaml:"title"`
	Enabled bool   `yaml:"enabled"`
}

// HomeAssistantConfig sends notices through a Home Assistant service such as
// "notify.mobile_app_phone".
type HomeAssistantConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Service string `yaml:"service"`
	Title   string `yaml:"title"`
	Enabled bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a .env file from the working directory when present, then the
// YAML config at path with ${VAR} references expanded from the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
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

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 30
	}
	if c.Server.RateWindow == 0 {
		c.Server.RateWindow = time.Minute
	}
	if c.Server.MaxAudioBytes == 0 {
		c.Server.MaxAudioBytes = 10 * 1024 * 1024
	}

	if c.Audio.Source == "" {
		c.Audio.Source = "none"
	}
	if c.Audio.FileDir == "" {
		c.Audio.FileDir = "./audio"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}

	if c.Transcription.Provider == "" {
		c.Transcription.Provider = "whisper"
	}
	if c.Transcription.Timeout == 0 {
		c.Transcription.Timeout = 30 * time.Second
	}
	if c.Transcription.Whisper.Model == "" {
		c.Transcription.Whisper.Model = "whisper-1"
	}
	if c.Transcription.Whisper.Language == "" {
		c.Transcription.Whisper.Language = "en"
	}
	if c.Transcription.Deepgram.Model == "" {
		c.Transcription.Deepgram.Model = "nova-2"
	}
	if c.Transcription.Deepgram.Language == "" {
		c.Transcription.Deepgram.Language = "en-US"
	}

	if c.Dialogue.Provider == "" {
		c.Dialogue.Provider = "gemini"
	}
	if c.Dialogue.Timeout == 0 {
		c.Dialogue.Timeout = 60 * time.Second
	}
	if c.Dialogue.Gemini.Model == "" {
		c.Dialogue.Gemini.Model = "gemini-1.5-pro"
	}
	if c.Dialogue.OpenAI.Model == "" {
		c.Dialogue.OpenAI.Model = "gpt-4o-mini"
	}
	if c.Dialogue.Anthropic.Model == "" {
		c.Dialogue.Anthropic.Model = "claude-sonnet-4-20250514"
	}

	gen := &c.Dialogue.Generation
	if gen.Temperature == nil {
		gen.Temperature = float32Ptr(1)
	}
	if gen.TopP == nil {
		gen.TopP = float32Ptr(0.95)
	}
	if gen.TopK == nil {
		gen.TopK = float32Ptr(64)
	}
	if gen.MaxOutputTokens == 0 {
		gen.MaxOutputTokens = 8192
	}
	if gen.ResponseMIMEType == "" {
		gen.ResponseMIMEType = "text/plain"
	}

	if c.Notify.Pushover.Title == "" {
		c.Notify.Pushover.Title = "SpeakSmart"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports unknown providers and credentials missing for the
// selected ones.
func (c *Config) Validate() error {
	var problems []string

	switch c.Audio.Source {
	case "none", "file", "microphone":
	default:
		problems = append(problems, fmt.Sprintf("audio.source: unknown source %q", c.Audio.Source))
	}
	if c.Audio.SilenceThreshold < 0 || c.Audio.SilenceThreshold > math.MaxInt16 {
		problems = append(problems, fmt.Sprintf("audio.silence_threshold must be between 0 and %d", math.MaxInt16))
	}

	switch c.Transcription.Provider {
	case "none":
	case "whisper":
		if c.Transcription.Whisper.APIKey == "" {
			problems = append(problems, "transcription.whisper.api_key is required")
		}
	case "deepgram":
		if c.Transcription.Deepgram.APIKey == "" {
			problems = append(problems, "transcription.deepgram.api_key is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("transcription.provider: unknown provider %q", c.Transcription.Provider))
	}

	switch c.Dialogue.Provider {
	case "gemini":
		if c.Dialogue.Gemini.APIKey == "" {
			problems = append(problems, "dialogue.gemini.api_key is required")
		}
	case "openai":
		if c.Dialogue.OpenAI.APIKey == "" {
			problems = append(problems, "dialogue.openai.api_key is required")
		}
	case "anthropic":
		if c.Dialogue.Anthropic.APIKey == "" {
			problems = append(problems, "dialogue.anthropic.api_key is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("dialogue.provider: unknown provider %q", c.Dialogue.Provider))
	}

	if c.Notify.Pushover.Enabled && (c.Notify.Pushover.Token == "" || c.Notify.Pushover.UserKey == "") {
		problems = append(problems, "notify.pushover.token and notify.pushover.user_key are required when enabled")
	}
	if c.Notify.HomeAssistant.Enabled && (c.Notify.HomeAssistant.BaseURL == "" || c.Notify.HomeAssistant.Token == "") {
		problems = append(problems, "notify.homeassistant.base_url and notify.homeassistant.token are required when enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) GenerationConfig() domain.GenerationConfig {
	gen := c.Dialogue.Generation
	return domain.GenerationConfig{
		Temperature:      gen.Temperature,
		TopP:             gen.TopP,
		TopK:             gen.TopK,
		MaxOutputTokens:  gen.MaxOutputTokens,
		ResponseMIMEType: gen.ResponseMIMEType,
	}
}

func float32Ptr(v float32) *float32 {
	return &v
}
