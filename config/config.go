// mediagen/config/config.go
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ProviderConfig holds the endpoint and credential for one generation provider.
type ProviderConfig struct {
	BaseURL string `mapstructure:"BASE_URL"`
	APIKey  string `mapstructure:"API_KEY"`
}

type Config struct {
	Sonic  ProviderConfig `mapstructure:"SONIC"`
	Studio ProviderConfig `mapstructure:"STUDIO"`
	Image  ProviderConfig `mapstructure:"IMAGE"`
	Video  ProviderConfig `mapstructure:"VIDEO"`

	PollInterval     time.Duration `mapstructure:"POLL_INTERVAL"`
	InitialPollDelay time.Duration `mapstructure:"INITIAL_POLL_DELAY"`
	MaxPollAttempts  int           `mapstructure:"MAX_POLL_ATTEMPTS"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	ArchiveURL   string `mapstructure:"ARCHIVE_URL"`
	MaxAssetSize int64  `mapstructure:"MAX_ASSET_SIZE"`

	ThrottleCPU     float64 `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem int64   `mapstructure:"THROTTLE_FREEMEM"`

	AuthEnable bool   `mapstructure:"AUTH_ENABLE"`
	AuthKey    string `mapstructure:"AUTH_KEY"`
	Port       string `mapstructure:"PORT"`
	BaseURL    string `mapstructure:"BASE"`
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// We only care about converting strings to time.Duration.
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// We only care about converting strings to int64s for byte sizes.
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	// Pick up a local .env if one exists; env vars already set win.
	_ = godotenv.Load()

	vp := viper.New()

	// Set default values as strings, the hooks will handle them.
	vp.SetDefault("SONIC.BASE_URL", "https://api.musicapi.ai")
	vp.SetDefault("SONIC.API_KEY", "")
	vp.SetDefault("STUDIO.BASE_URL", "https://api.musicapi.ai")
	vp.SetDefault("STUDIO.API_KEY", "")
	vp.SetDefault("IMAGE.BASE_URL", "")
	vp.SetDefault("IMAGE.API_KEY", "")
	vp.SetDefault("VIDEO.BASE_URL", "")
	vp.SetDefault("VIDEO.API_KEY", "")
	vp.SetDefault("POLL_INTERVAL", "5s")
	vp.SetDefault("INITIAL_POLL_DELAY", "2s")
	vp.SetDefault("MAX_POLL_ATTEMPTS", 48)
	vp.SetDefault("REQUEST_TIMEOUT", "30s")
	vp.SetDefault("ARCHIVE_URL", "")
	vp.SetDefault("MAX_ASSET_SIZE", "200MB")
	vp.SetDefault("THROTTLE_CPU", 90.0)
	vp.SetDefault("THROTTLE_FREEMEM", "100MB")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "123456")
	vp.SetDefault("PORT", "8080")
	vp.SetDefault("BASE", "")

	// Load from config file
	vp.SetConfigName("mediagen_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/mediagen/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Load from environment variables
	vp.SetEnvPrefix("MEDIAGEN")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	// Unmarshal the config, providing our custom composed hooks.
	// The order matters: the first hook that succeeds is used.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
