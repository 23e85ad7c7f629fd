package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"vaultshield/internal/risk"
)

type Config struct {
	AppPort string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	IdempTTL time.Duration

	// Risk policy, percentages.
	MaxLTVPercent               float64
	LiquidationThresholdPercent float64
	// Reputation gate floor, score points.
	ReputationFloor float64

	// Coordinator timing.
	CoordLockTTL   time.Duration
	CoordRecordTTL time.Duration
	ConfirmTimeout time.Duration

	// Hex-encoded 32-byte key for the reference value codec.
	CodecKey string
}

// Load reads config from env and an optional .env file via Viper.
func Load() *Config {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	return &Config{
		AppPort:   viper.GetString("APP_PORT"),
		MySQLHost: viper.GetString("MYSQL_HOST"),
		MySQLPort: viper.GetString("MYSQL_PORT"),
		MySQLDB:   viper.GetString("MYSQL_DB"),
		MySQLUser: viper.GetString("MYSQL_USER"),
		MySQLPass: viper.GetString("MYSQL_PASS"),

		RedisAddr: viper.GetString("REDIS_ADDR"),
		RedisDB:   viper.GetInt("REDIS_DB"),

		IdempTTL: viper.GetDuration("IDEMPOTENCY_TTL"),

		MaxLTVPercent:               viper.GetFloat64("MAX_LTV_PERCENT"),
		LiquidationThresholdPercent: viper.GetFloat64("LIQUIDATION_THRESHOLD_PERCENT"),
		ReputationFloor:             viper.GetFloat64("REPUTATION_FLOOR"),

		CoordLockTTL:   viper.GetDuration("COORD_LOCK_TTL"),
		CoordRecordTTL: viper.GetDuration("COORD_RECORD_TTL"),
		ConfirmTimeout: viper.GetDuration("CONFIRM_TIMEOUT"),

		CodecKey: viper.GetString("CODEC_KEY"),
	}
}

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("MYSQL_HOST", "mysql")
	viper.SetDefault("MYSQL_PORT", "3306")
	viper.SetDefault("MYSQL_DB", "vaultshield")
	viper.SetDefault("MYSQL_USER", "vaultshield")
	viper.SetDefault("MYSQL_PASS", "vaultshield")
	viper.SetDefault("REDIS_ADDR", "redis:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("IDEMPOTENCY_TTL", 5*time.Minute)
	viper.SetDefault("MAX_LTV_PERCENT", 75.0)
	viper.SetDefault("LIQUIDATION_THRESHOLD_PERCENT", 85.0)
	viper.SetDefault("REPUTATION_FLOOR", 40.0)
	viper.SetDefault("COORD_LOCK_TTL", 2*time.Minute)
	viper.SetDefault("COORD_RECORD_TTL", 24*time.Hour)
	viper.SetDefault("CONFIRM_TIMEOUT", 90*time.Second)
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if err := c.RiskPolicy().Validate(); err != nil {
		return fmt.Errorf("risk policy: %w", err)
	}
	if c.ReputationFloor < 0 || c.ReputationFloor > 100 {
		return errors.New("REPUTATION_FLOOR must be within [0,100]")
	}
	// The single-flight lock has to cover the whole confirmation wait.
	if c.CoordLockTTL < c.ConfirmTimeout {
		return fmt.Errorf("COORD_LOCK_TTL (%s) must be at least CONFIRM_TIMEOUT (%s)", c.CoordLockTTL, c.ConfirmTimeout)
	}
	return nil
}

func (c *Config) RiskPolicy() risk.Policy {
	return risk.Policy{
		MaxLTVPercent:               c.MaxLTVPercent,
		LiquidationThresholdPercent: c.LiquidationThresholdPercent,
	}
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// multiStatements=true is handy for migrations; parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
