package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Guests  GuestsConfig  `mapstructure:"guests"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type StorageConfig struct {
	Driver string       `mapstructure:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	AdminPassword string      `mapstructure:"admin_password"`
	TokenGuard    GuardConfig `mapstructure:"token_guard"`
	AdminGuard    GuardConfig `mapstructure:"admin_guard"`
}

// GuardConfig tunes one attempt guard instance: MaxAttempts failures
// within Window lock the key out for Lockout.
type GuardConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
	Lockout     time.Duration `mapstructure:"lockout"`
}

type GuestsConfig struct {
	PhoneRegion string `mapstructure:"phone_region"`
}

type NotifyConfig struct {
	Provider       string        `mapstructure:"provider"`
	PerMinute      int           `mapstructure:"per_minute"`
	PerHour        int           `mapstructure:"per_hour"`
	BurstSize      int           `mapstructure:"burst_size"`
	BurstCooldown  time.Duration `mapstructure:"burst_cooldown"`
	MaxQueue       int           `mapstructure:"max_queue"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BaseDelay      time.Duration `mapstructure:"base_delay"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	InterSendDelay time.Duration `mapstructure:"inter_send_delay"`
	Tick           time.Duration `mapstructure:"tick"`
	SMTP           SMTPConfig    `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("rsvpd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/rsvpd")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("RSVPD")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./data/rsvpd.db")

	viper.SetDefault("auth.admin_password", "")
	viper.SetDefault("auth.token_guard.max_attempts", 5)
	viper.SetDefault("auth.token_guard.window", 15*time.Minute)
	viper.SetDefault("auth.token_guard.lockout", 30*time.Minute)
	viper.SetDefault("auth.admin_guard.max_attempts", 3)
	viper.SetDefault("auth.admin_guard.window", 15*time.Minute)
	viper.SetDefault("auth.admin_guard.lockout", 30*time.Minute)

	viper.SetDefault("guests.phone_region", "US")

	viper.SetDefault("notify.provider", "noop")
	viper.SetDefault("notify.per_minute", 10)
	viper.SetDefault("notify.per_hour", 200)
	viper.SetDefault("notify.burst_size", 3)
	viper.SetDefault("notify.burst_cooldown", 60*time.Second)
	viper.SetDefault("notify.max_queue", 500)
	viper.SetDefault("notify.max_attempts", 3)
	viper.SetDefault("notify.base_delay", 5*time.Second)
	viper.SetDefault("notify.max_delay", 5*time.Minute)
	viper.SetDefault("notify.send_timeout", 10*time.Second)
	viper.SetDefault("notify.inter_send_delay", 500*time.Millisecond)
	viper.SetDefault("notify.tick", 3*time.Second)

	viper.SetDefault("notify.smtp.host", "")
	viper.SetDefault("notify.smtp.port", 587)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
