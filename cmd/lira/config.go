package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config selects providers and tunes agent behavior. Fields that commonly
// carry secrets support ${VAR} expansion so API keys can stay in the
// environment.
type Config struct {
	Agent     AgentConfig   `mapstructure:"agent"`
	LLM       LLMConfig     `mapstructure:"llm"`
	STT       STTConfig     `mapstructure:"stt"`
	TTS       TTSConfig     `mapstructure:"tts"`
	Audio     AudioConfig   `mapstructure:"audio"`
	Memory    MemoryConfig  `mapstructure:"memory"`
	Context   ContextConfig `mapstructure:"context"`
	Languages []string      `mapstructure:"languages"`
	Timing    TimingConfig  `mapstructure:"timing"`
}

type AgentConfig struct {
	Name         string   `mapstructure:"name"`
	NameVariants []string `mapstructure:"name_variants"`
	Instructions string   `mapstructure:"instructions"`
	RespondMode  string   `mapstructure:"respond_mode"`
}

type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
}

type STTConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
	APIKey   string `mapstructure:"api_key"`
}

type TTSConfig struct {
	Provider string `mapstructure:"provider"`
	Voice    string `mapstructure:"voice"`
	Language string `mapstructure:"language"`
	APIKey   string `mapstructure:"api_key"`
}

type AudioConfig struct {
	Capture  string `mapstructure:"capture"`
	Playback string `mapstructure:"playback"`
}

type MemoryConfig struct {
	Dir      string `mapstructure:"dir"`
	InMemory bool   `mapstructure:"in_memory"`
}

type ContextConfig struct {
	MaxTokens   int `mapstructure:"max_tokens"`
	RecentTurns int `mapstructure:"recent_turns"`
}

type TimingConfig struct {
	SilenceTimeout time.Duration `mapstructure:"silence_timeout"`
	DrainDelay     time.Duration `mapstructure:"drain_delay"`
}

// LoadConfig reads the YAML file at path on top of the defaults. An empty
// path skips the file and runs on defaults alone.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("agent.name", "Lira")
	v.SetDefault("agent.respond_mode", "always")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("stt.provider", "deepgram")
	v.SetDefault("stt.model", "nova-3")
	v.SetDefault("stt.language", "en-US")
	v.SetDefault("tts.provider", "deepgram")
	v.SetDefault("audio.capture", "miniaudio")
	v.SetDefault("audio.playback", "miniaudio")
	v.SetDefault("memory.dir", "")
	v.SetDefault("memory.in_memory", false)
	v.SetDefault("context.max_tokens", 0)
	v.SetDefault("context.recent_turns", 0)
	v.SetDefault("timing.silence_timeout", "1500ms")
	v.SetDefault("timing.drain_delay", "800ms")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.expandEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) expandEnv() {
	c.LLM.APIKey = os.ExpandEnv(c.LLM.APIKey)
	c.STT.APIKey = os.ExpandEnv(c.STT.APIKey)
	c.TTS.APIKey = os.ExpandEnv(c.TTS.APIKey)
	c.Memory.Dir = os.ExpandEnv(c.Memory.Dir)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Agent.Name) == "" {
		return fmt.Errorf("agent.name is required")
	}
	switch c.Agent.RespondMode {
	case "always", "addressed":
	default:
		return fmt.Errorf("agent.respond_mode must be %q or %q, got %q", "always", "addressed", c.Agent.RespondMode)
	}
	switch c.LLM.Provider {
	case "openai", "groq":
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q", "openai", "groq", c.LLM.Provider)
	}
	if c.STT.Provider != "deepgram" {
		return fmt.Errorf("stt.provider must be %q, got %q", "deepgram", c.STT.Provider)
	}
	switch c.TTS.Provider {
	case "deepgram", "elevenlabs", "none":
	default:
		return fmt.Errorf("tts.provider must be %q, %q or %q, got %q", "deepgram", "elevenlabs", "none", c.TTS.Provider)
	}
	switch c.Audio.Capture {
	case "miniaudio", "portaudio", "none":
	default:
		return fmt.Errorf("audio.capture must be %q, %q or %q, got %q", "miniaudio", "portaudio", "none", c.Audio.Capture)
	}
	switch c.Audio.Playback {
	case "miniaudio", "none":
	default:
		return fmt.Errorf("audio.playback must be %q or %q, got %q", "miniaudio", "none", c.Audio.Playback)
	}

	return nil
}
