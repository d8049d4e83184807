package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	// Credits holds the emission-factor model used by the credit calculator
	// and the plausibility bounds enforced on submitted trips.
	Credits struct {
		BaselineKgPerKm float64 `mapstructure:"BASELINE_KG_PER_KM"`
		GridKgPerKwh    float64 `mapstructure:"GRID_KG_PER_KWH"`
		CreditsPerKg    float64 `mapstructure:"CREDITS_PER_KG"`
		MaxDistanceKm   float64 `mapstructure:"MAX_DISTANCE_KM"`
		MaxEnergyKwh    float64 `mapstructure:"MAX_ENERGY_KWH"`
		MaxKwhPerKm     float64 `mapstructure:"MAX_KWH_PER_KM"`
	} `mapstructure:"CREDITS"`
	Wallet struct {
		BaseURL string        `mapstructure:"BASE_URL"`
		Timeout time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"WALLET"`
	Audit struct {
		BaseURL string        `mapstructure:"BASE_URL"`
		Timeout time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"AUDIT"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func LoadConfig(p Params) *Config {

	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		os.Exit(1)
	}

	applyCreditDefaults(&cfg)
	applyClientDefaults(&cfg)

	if p.Vault != nil {
		client := p.Vault
		ctx := context.Background()

		zap.L().Info("Starting Get Secrets", zap.String("path", cfg.AppEnv))
		secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
		if err != nil {
			zap.L().Error("failed get secret from vault", zap.Error(err))
			os.Exit(1)
		}
		zap.L().Info("Success Get Secret")

		get := func(key string) string {
			if val, ok := secret.Data.Data[key].(string); ok {
				return val
			}
			return ""
		}

		cfg.Database.User = get("postgres_user")
		cfg.Database.Password = get("postgres_password")
		cfg.Redis.Password = get("redis_password")
	}

	return &cfg
}

// applyCreditDefaults fills in the emission-factor model when config.yaml
// leaves it empty. Baseline is a petrol compact car, grid factor a generic
// mixed grid. The plausibility bounds reject trips no road EV can produce.
func applyCreditDefaults(cfg *Config) {
	if cfg.Credits.BaselineKgPerKm == 0 {
		cfg.Credits.BaselineKgPerKm = 0.192
	}
	if cfg.Credits.GridKgPerKwh == 0 {
		cfg.Credits.GridKgPerKwh = 0.475
	}
	if cfg.Credits.CreditsPerKg == 0 {
		cfg.Credits.CreditsPerKg = 1.0
	}
	if cfg.Credits.MaxDistanceKm == 0 {
		cfg.Credits.MaxDistanceKm = 2000
	}
	if cfg.Credits.MaxEnergyKwh == 0 {
		cfg.Credits.MaxEnergyKwh = 400
	}
	if cfg.Credits.MaxKwhPerKm == 0 {
		cfg.Credits.MaxKwhPerKm = 0.5
	}
}

// applyClientDefaults bounds the outbound collaborator calls. A zero timeout
// would disable the HTTP client deadline entirely, so unset config still gets
// a deadline.
func applyClientDefaults(cfg *Config) {
	if cfg.Wallet.Timeout == 0 {
		cfg.Wallet.Timeout = 5 * time.Second
	}
	if cfg.Audit.Timeout == 0 {
		cfg.Audit.Timeout = 5 * time.Second
	}
}
