package env

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// LocalEnvFile is loaded into the environment, if it exists, before the config
// is read.
const LocalEnvFile = ".env.local"

type Config struct {
	// Where the daemon is listening
	Host string `env:"GOXLR_HOST,default=localhost"`
	Port int    `env:"GOXLR_PORT,default=14564"`

	KeepaliveInterval time.Duration `env:"GOXLR_KEEPALIVE_INTERVAL,default=5s"`
	RequestTimeout    time.Duration `env:"GOXLR_REQUEST_TIMEOUT,default=10s"`
	WriteTimeout      time.Duration `env:"GOXLR_WRITE_TIMEOUT,default=10s"`
	PushBuffer        int           `env:"GOXLR_PUSH_BUFFER,default=64"`

	LogLevel string `env:"GOXLR_LOG_LEVEL,default=info"`

	// Where the HTTP bridge listens
	BridgeHost string `env:"GOXLR_BRIDGE_HOST,default=127.0.0.1"`
	BridgePort int    `env:"GOXLR_BRIDGE_PORT,default=14565"`
	DebugHTTP  bool   `env:"GOXLR_DEBUG_HTTP"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(LocalEnvFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("Failed to load %s: %w", LocalEnvFile, err)
		}
	}

	return LoadConfigFrom(ctx, envconfig.OsLookuper())
}

// LoadConfigFrom reads the config from lookuper instead of the environment.
func LoadConfigFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	config := Config{}

	if err := envconfig.ProcessWith(ctx, &config, lookuper); err != nil {
		return nil, err
	}

	return &config, nil
}
