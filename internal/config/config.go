package config

import (
	"fmt"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/pkg/mysql"
	"github.com/Vasteras-Stadsmission/matkassen-sub010/pkg/smsprovider"
	"github.com/spf13/viper"
)

type Config struct {
	API        API                `mapstructure:"api"`
	Database   mysql.Config       `mapstructure:"database"`
	Provider   smsprovider.Config `mapstructure:"provider"`
	Dispatcher Dispatcher         `mapstructure:"dispatcher"`
	Admin      Admin              `mapstructure:"admin"`
	Alerts     Alerts             `mapstructure:"alerts"`
	Metrics    Metrics            `mapstructure:"metrics"`
}

type API struct {
	Port string `mapstructure:"port"`
}

type Dispatcher struct {
	Interval         time.Duration `mapstructure:"interval"`
	BatchSize        int           `mapstructure:"batch_size"`
	SendTimeout      time.Duration `mapstructure:"send_timeout"`
	ClaimStaleAfter  time.Duration `mapstructure:"claim_stale_after"`
	ConfirmInterval  time.Duration `mapstructure:"confirm_interval"`
	ConfirmAfter     time.Duration `mapstructure:"confirm_after"`
	StaleUnconfirmed time.Duration `mapstructure:"stale_unconfirmed"`
	ConfirmBatchSize int           `mapstructure:"confirm_batch_size"`
}

type Admin struct {
	RetryCooldown time.Duration `mapstructure:"retry_cooldown"`
	MinLeadTime   time.Duration `mapstructure:"min_lead_time"`
}

type Alerts struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
}

type Metrics struct {
	Port string `mapstructure:"port"`
}

func Load() (cfg *Config, err error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath("./config")

	err = viper.ReadInConfig()
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}

	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
