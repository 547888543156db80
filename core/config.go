package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var Conf *Config

type (
	APIConfig struct {
		BaseURL           string        `validate:"required,url"`
		Timeout           time.Duration `validate:"gt=0"`
		RequestsPerSecond float64       `validate:"gt=0"`
		Burst             int           `validate:"gte=1"`
		MaxPages          int           `validate:"gte=1"`
	}

	ChatConfig struct {
		PollInterval time.Duration `validate:"gte=1000000000"` // >= 1s
		PageSize     int           `validate:"gte=1"`
	}

	StorageConfig struct {
		Path string
	}

	// ServerConfig configures the development API (apps/api).
	ServerConfig struct {
		Address            string
		SecretKey          string `validate:"required"`
		JWTExpirationDelta time.Duration
		PageSize           int `validate:"gte=1,lte=100"`
	}

	Config struct {
		Env          string
		AppName      string
		Build        string
		Debug        bool
		TestMode     bool
		RollbarToken string

		API     APIConfig
		Chat    ChatConfig
		Storage StorageConfig
		Server  ServerConfig
	}
)

func init() {
	Conf = NewConfig()
}

// NewConfig reads the configuration from the environment (prefixed with MASOMO_ and the ENV name)
// and the optional `.env.<env>` file found in the working directory or in MASOMO_CONFIG_DIR.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Masomo")
	v.SetDefault("build", "dev")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("apiBaseURL", "http://localhost:8000")
	v.SetDefault("apiTimeout", 15*time.Second)
	v.SetDefault("apiRequestsPerSecond", 10.0)
	v.SetDefault("apiBurst", 5)
	v.SetDefault("apiMaxPages", 50)
	v.SetDefault("chatPollInterval", 5*time.Second)
	v.SetDefault("chatPageSize", 10)
	v.SetDefault("storagePath", filepath.Join(userDir(), ".masomo"))
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("serverPageSize", 100)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix("MASOMO_" + env)

	// load .env if it exists (ignore if it does not)
	dir := os.Getenv("MASOMO_CONFIG_DIR")
	if dir == "" {
		dir, _ = os.Getwd()
	}
	dotEnvPath := filepath.Join(dir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		RollbarToken: v.GetString("rollbarToken"),
		API: APIConfig{
			BaseURL:           strings.TrimRight(v.GetString("apiBaseURL"), "/"),
			Timeout:           v.GetDuration("apiTimeout"),
			RequestsPerSecond: v.GetFloat64("apiRequestsPerSecond"),
			Burst:             v.GetInt("apiBurst"),
			MaxPages:          v.GetInt("apiMaxPages"),
		},
		Chat: ChatConfig{
			PollInterval: v.GetDuration("chatPollInterval"),
			PageSize:     v.GetInt("chatPageSize"),
		},
		Storage: StorageConfig{
			Path: v.GetString("storagePath"),
		},
		Server: ServerConfig{
			Address:            v.GetString("serverAddress"),
			SecretKey:          v.GetString("secretKey"),
			JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
			PageSize:           v.GetInt("serverPageSize"),
		},
	}
}

// Validate checks the configuration values with the shared validator.
func (c *Config) Validate() error {
	return Validate.Struct(c)
}

func userDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return os.TempDir()
}
