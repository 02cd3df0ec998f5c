package env

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/luma/svdrp/client"
	"github.com/luma/svdrp/pool"
	"github.com/luma/svdrp/service"
)

// ConfigFileEnv names the variable holding the path of an optional YAML
// config file. Environment variables take precedence over the file.
const ConfigFileEnv = "SVDRP_CONFIG_FILE"

var (
	ErrInvalidPort = errors.New("Server port must be between 1 and 65535")
)

type Config struct {
	// Default server, used when a request does not name one
	ServerIP   string `yaml:"serverIp" env:"SVDRP_SERVER_IP"`
	ServerPort int    `yaml:"serverPort" env:"SVDRP_SERVER_PORT,default=2001"`

	// Timeouts in seconds
	ConnectTimeout int `yaml:"connectTimeout" env:"SVDRP_CONNECT_TIMEOUT,default=2"`
	ReadTimeout    int `yaml:"readTimeout" env:"SVDRP_READ_TIMEOUT,default=5"`

	// Local character set
	Charset string `yaml:"charset" env:"SVDRP_CHARSET,default=UTF-8"`

	MaxLineLength int `yaml:"maxLineLength" env:"SVDRP_MAX_LINE_LENGTH,default=1048576"`

	LogLevel  string `yaml:"logLevel" env:"SVDRP_LOG_LEVEL,default=info"`
	DebugHTTP bool   `yaml:"debugHttp" env:"SVDRP_DEBUG_HTTP"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return LoadConfigWith(ctx, os.Getenv(ConfigFileEnv), envconfig.OsLookuper())
}

// LoadConfigWith reads the YAML file at path, if path is not empty, and then
// applies the variables l knows about.
func LoadConfigWith(ctx context.Context, path string, l envconfig.Lookuper) (*Config, error) {
	config := Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	}

	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           &config,
		Lookuper:         l,
		DefaultOverwrite: true,
	})
	if err != nil {
		return nil, err
	}

	if config.ServerPort < 1 || config.ServerPort > math.MaxUint16 {
		return nil, errors.Wrapf(ErrInvalidPort, "got %d", config.ServerPort)
	}

	return &config, nil
}

// ConnOptions returns the connection settings described by c.
func (c *Config) ConnOptions() client.Options {
	return client.Options{
		ServerIP:       c.ServerIP,
		ServerPort:     uint16(c.ServerPort),
		ConnectTimeout: time.Duration(c.ConnectTimeout) * time.Second,
		ReadTimeout:    time.Duration(c.ReadTimeout) * time.Second,
		Charset:        c.Charset,
		MaxLineLength:  c.MaxLineLength,
	}
}

// ServiceOptions wires a pool and the default server into service options.
func (c *Config) ServiceOptions(log *zap.Logger) service.Options {
	return service.Options{
		Pool:              pool.New(pool.Options{Conn: c.ConnOptions(), Log: log}),
		DefaultServerIP:   c.ServerIP,
		DefaultServerPort: uint16(c.ServerPort),
		Log:               log,
	}
}
