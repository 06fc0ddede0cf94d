package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const minAPIKeyLength = 16

// GlobalConfig is ~/.config/docrag/config.json: credentials plus per-user
// defaults applied when a command leaves the matching flag unset.
type GlobalConfig struct {
	APIKey        string `json:"api_key,omitempty"`
	APIURL        string `json:"api_url,omitempty"`
	DefaultSchema string `json:"default_schema,omitempty"`
	TopK          int    `json:"top_k,omitempty"`
}

func (c *GlobalConfig) hasDefaults() bool {
	return c.DefaultSchema != "" || c.TopK > 0
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "docrag"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetConfigDir returns the platform-specific configuration directory
func GetConfigDir() (string, error) {
	return getConfigDirFunc()
}

// GetConfigPath returns the full path to the config.json file
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig reads config.json. A missing file yields a nil config and
// no error.
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	return &config, nil
}

// loadOrEmpty is LoadGlobalConfig with a missing file read as empty.
func loadOrEmpty() (*GlobalConfig, error) {
	config, err := LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = &GlobalConfig{}
	}
	return config, nil
}

// SaveGlobalConfig writes config.json with 0600 permissions. The file is
// replaced by rename, so readers never see a partial write.
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(configPath), ".config-*.json")
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DeleteGlobalConfig removes the config.json file
func DeleteGlobalConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.Remove(configPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}

// ClearCredentials drops the stored key and URL but keeps user defaults.
// The file is removed once nothing is left in it.
func ClearCredentials() error {
	config, err := LoadGlobalConfig()
	if err != nil || config == nil {
		return err
	}
	if !config.hasDefaults() {
		return DeleteGlobalConfig()
	}
	config.APIKey, config.APIURL = "", ""
	return SaveGlobalConfig(config)
}

// IsValidAPIKey rejects keys that cannot travel in a bearer header.
func IsValidAPIKey(key string) bool {
	if len(key) < minAPIKeyLength {
		return false
	}
	return !strings.ContainsFunc(key, unicode.IsSpace)
}

// CredentialSource represents where credentials came from
type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnvFile      CredentialSource = "env_file"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceNone         CredentialSource = "none"
)

type credentialLayer struct {
	source   CredentialSource
	key, url string
}

// GetCredentialSource returns the first layer holding both a key and a URL,
// in the order flag, environment (.env included), global config.
func GetCredentialSource(flagAPIKey, flagAPIURL string) (CredentialSource, string, string) {
	layers := []credentialLayer{
		{SourceFlag, flagAPIKey, flagAPIURL},
		{SourceEnvFile, os.Getenv(envAPIKey), os.Getenv(envAPIURL)},
	}
	if config, err := LoadGlobalConfig(); err == nil && config != nil {
		layers = append(layers, credentialLayer{SourceGlobalConfig, config.APIKey, config.APIURL})
	}

	for _, l := range layers {
		if l.key != "" && l.url != "" {
			return l.source, l.key, l.url
		}
	}
	return SourceNone, "", ""
}
