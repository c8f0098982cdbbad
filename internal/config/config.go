package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Panel struct {
	Debounce  time.Duration `mapstructure:"debounce"`
	SweepScan int           `mapstructure:"sweep_scan"`
}

type Permissions struct {
	// ModsManageAccess lets room mods edit the allow/deny lists. Owner
	// transfer, lock, limit, rename and clear stay owner/admin only.
	ModsManageAccess bool `mapstructure:"mods_manage_access"`
}

type Config struct {
	Token   string `mapstructure:"token"`
	AppID   string `mapstructure:"app_id"`
	GuildID string `mapstructure:"guild_id"`

	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	DBPath   string `mapstructure:"db_path"`
	LogLevel string `mapstructure:"log_level"`

	RoomNamePattern string      `mapstructure:"room_name_pattern"`
	Panel           Panel       `mapstructure:"panel"`
	Permissions     Permissions `mapstructure:"permissions"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "./data")
	v.SetDefault("log_level", "info")
	v.SetDefault("room_name_pattern", "📍・%s's room")
	v.SetDefault("panel.debounce", "500ms")
	v.SetDefault("panel.sweep_scan", 75)
	v.SetDefault("permissions.mods_manage_access", true)

	// the token never lives in the config file
	_ = v.BindEnv("token", "TOKEN")
	_ = v.BindEnv("app_id", "APP_ID")
	_ = v.BindEnv("guild_id", "GUILD_ID")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Token == "" {
		return nil, errors.New("TOKEN env missing")
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | DB: %s\n", cfg.Mode, cfg.Port, cfg.DBPath)
	return &cfg, nil
}
