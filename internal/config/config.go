package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/healthgate/internal/service"
)

// Config is the top-level TOML structure loaded once at process start.
type Config struct {
	LogLevel string               `mapstructure:"log_level"`
	Server   *ServerConfig        `mapstructure:"server"`
	Metrics  *MetricsConfig       `mapstructure:"metrics"`
	Journal  *JournalConfig       `mapstructure:"journal"`
	Report   ReportConfig         `mapstructure:"report"`
	Services []service.Descriptor `mapstructure:"services"`
}

type ServerConfig struct {
	Listen    string        `mapstructure:"listen"`
	BasePath  string        `mapstructure:"base_path"`
	Autostart bool          `mapstructure:"autostart"` // bring the whole stack up on serve
	StopWait  time.Duration `mapstructure:"stop_wait"` // grace override used on daemon shutdown
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"` // standalone /metrics listener; empty mounts nothing extra
}

type JournalConfig struct {
	Path string `mapstructure:"path"` // sqlite file, ":memory:" allowed
}

type ReportConfig struct {
	DiskPath string `mapstructure:"disk_path"` // filesystem sampled for disk usage, default "/"
}

// Load reads and validates a TOML config file. Relative journal paths are
// resolved against the config file's directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	if len(c.Services) == 0 {
		return nil, fmt.Errorf("%s: no services defined", path)
	}
	for i := range c.Services {
		if err := c.Services[i].Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if c.Journal != nil && c.Journal.Path != "" && c.Journal.Path != ":memory:" && !filepath.IsAbs(c.Journal.Path) {
		c.Journal.Path = filepath.Join(filepath.Dir(path), c.Journal.Path)
	}
	return &c, nil
}
