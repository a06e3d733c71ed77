package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath = "config.toml"
	DefaultHTTPAddr   = ":8236"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Contacts ContactsConfig `toml:"contacts"`
	Messages MessagesConfig `toml:"messages"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// ContactsConfig points at the macOS address book. An empty DBPath means
// auto-discovery under ~/Library/Application Support/AddressBook.
type ContactsConfig struct {
	DBPath string `toml:"db_path"`
}

// MessagesConfig points at the Messages history database. SendDisabled
// turns the server read-only.
type MessagesConfig struct {
	ChatDBPath   string `toml:"chat_db_path"`
	SendDisabled bool   `toml:"send_disabled"`
	Debug        bool   `toml:"debug"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
