package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config carries everything the chat client needs to talk to its
// backing services. Values come from an optional YAML file overlaid
// with environment variables; the environment wins.
type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	Speech   SpeechConfig   `yaml:"speech"`
	Deepgram DeepgramConfig `yaml:"deepgram"`
	UI       UIConfig       `yaml:"ui"`
}

type AgentConfig struct {
	Endpoint string `yaml:"endpoint"`
	ID       string `yaml:"id"`
}

type SpeechConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type DeepgramConfig struct {
	APIKey string `yaml:"api_key"`
}

type UIConfig struct {
	Sensitivity float64 `yaml:"sensitivity"`
	FFTSize     int     `yaml:"fft_size"`
	Smoothing   float64 `yaml:"smoothing"`
}

func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Endpoint: "wss://agents.mindvalley.com/v1/converse",
		},
		Speech: SpeechConfig{
			Endpoint: "https://agents.mindvalley.com/v1/speech",
		},
		UI: UIConfig{
			Sensitivity: 1.0,
			FFTSize:     2048,
			Smoothing:   0.8,
		},
	}
}

// Load reads the config file at path (or EVE_CONFIG when path is empty,
// or neither when both are unset) and overlays environment variables.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("EVE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.overlayEnv()

	if cfg.Agent.ID == "" {
		return nil, fmt.Errorf("agent id is not set, provide agent.id or EVE_AGENT_ID")
	}

	return cfg, nil
}

func (c *Config) overlayEnv() {
	if endpoint := os.Getenv("EVE_AGENT_ENDPOINT"); endpoint != "" {
		c.Agent.Endpoint = endpoint
	}
	if id := os.Getenv("EVE_AGENT_ID"); id != "" {
		c.Agent.ID = id
	}
	if endpoint := os.Getenv("EVE_SPEECH_ENDPOINT"); endpoint != "" {
		c.Speech.Endpoint = endpoint
	}
	if key := os.Getenv("DEEPGRAM_API_KEY"); key != "" {
		c.Deepgram.APIKey = key
	}
}
