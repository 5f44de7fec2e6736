package matchmaker

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Settings configures a matchmaker instance.
type Settings struct {
	Application ApplicationSettings `toml:"application"`
	Database    DatabaseSettings    `toml:"database"`
	Log         LogSettings         `toml:"log"`
}

// ApplicationSettings picks the listen address. Port 0 binds an
// ephemeral port, queryable through Application.Port after build.
type ApplicationSettings struct {
	Host string `toml:"host"`
	Port uint16 `toml:"port"`
}

// DatabaseSettings locates the user store.
type DatabaseSettings struct {
	Path string `toml:"path"`
}

// LogSettings holds the logrus level name.
type LogSettings struct {
	Level string `toml:"level"`
}

// DefaultSettings returns a localhost configuration with an ephemeral
// port and an in-memory user store.
func DefaultSettings() Settings {
	return Settings{
		Application: ApplicationSettings{Host: "127.0.0.1", Port: 0},
		Database:    DatabaseSettings{Path: ":memory:"},
		Log:         LogSettings{Level: "info"},
	}
}

// LoadSettings reads a TOML settings file, filling unset fields from
// the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return Settings{}, fmt.Errorf("loading settings from %s: %w", path, err)
	}
	return s, nil
}
