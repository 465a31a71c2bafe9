// Package config provides the read-only configuration surface the
// engine consumes. Settings are loaded from ~/.pixchat/config.yaml
// with environment variable overrides; the core never reads them
// ambiently — it receives an injected Accessor.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProviderType selects the wire protocol an adapter speaks.
type ProviderType string

const (
	// ProviderNative is the Gemini content-list protocol.
	ProviderNative ProviderType = "native"
	// ProviderChatCompletion is the OpenAI-compatible chat protocol.
	ProviderChatCompletion ProviderType = "chat-completion"
)

const (
	defaultNativeBaseURL = "https://generativelanguage.googleapis.com"
	defaultChatBaseURL   = "https://api.openai.com/v1"

	defaultNativeModel = "gemini-2.5-flash-image"
	defaultChatModel   = "gpt-4o"
)

// Settings is the provider configuration read at call time.
type Settings struct {
	BaseURL  string       `yaml:"baseUrl"`
	APIKey   string       `yaml:"apiKey"`
	Provider ProviderType `yaml:"provider"`
	Model    string       `yaml:"model"`
}

// Accessor hands the engine a point-in-time view of the settings.
type Accessor func() Settings

// Static wraps fixed settings into an Accessor.
func Static(s Settings) Accessor {
	return func() Settings { return s }
}

// Load reads the user config file and applies environment overrides.
func Load() (Settings, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Settings{}, err
	}
	return LoadFrom(filepath.Join(homeDir, ".pixchat", "config.yaml"))
}

// LoadFrom reads settings from a specific file. A missing file is not
// an error; a malformed one is.
func LoadFrom(path string) (Settings, error) {
	var s Settings

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Settings{}, err
	}

	if v := os.Getenv("PIXCHAT_PROVIDER"); v != "" {
		s.Provider = ProviderType(v)
	}
	if v := os.Getenv("PIXCHAT_BASE_URL"); v != "" {
		s.BaseURL = v
	}
	if v := os.Getenv("PIXCHAT_API_KEY"); v != "" {
		s.APIKey = v
	}
	if v := os.Getenv("PIXCHAT_MODEL"); v != "" {
		s.Model = v
	}

	if s.Provider == "" {
		s.Provider = ProviderNative
	}
	if s.APIKey == "" {
		switch s.Provider {
		case ProviderNative:
			s.APIKey = os.Getenv("GEMINI_API_KEY")
		case ProviderChatCompletion:
			s.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if s.BaseURL == "" {
		switch s.Provider {
		case ProviderNative:
			s.BaseURL = defaultNativeBaseURL
		case ProviderChatCompletion:
			s.BaseURL = defaultChatBaseURL
		}
	}
	if s.Model == "" {
		switch s.Provider {
		case ProviderNative:
			s.Model = defaultNativeModel
		case ProviderChatCompletion:
			s.Model = defaultChatModel
		}
	}

	return s, nil
}

// Validate reports the configuration problems the engine fails fast on.
func (s Settings) Validate() error {
	if s.Provider != ProviderNative && s.Provider != ProviderChatCompletion {
		return fmt.Errorf("unknown provider type: %q", s.Provider)
	}
	if s.BaseURL == "" {
		return errors.New("provider base URL is not configured")
	}
	if s.APIKey == "" {
		return errors.New("provider API key is not configured")
	}
	return nil
}
