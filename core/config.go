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

type (
	APIConfig struct {
		BaseURL   string
		Timeout   time.Duration
		RateLimit float64 // requests per second; 0 disables limiting
		RateBurst int
		// RefreshLeeway is how long before expiry an access token gets rotated.
		RefreshLeeway time.Duration
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
		TTL      time.Duration
	}

	DatabaseConfig struct {
		URL string
	}

	StorageConfig struct {
		Engine     string // memory | file | redis | postgres
		Dir        string
		Profile    string
		SessionKey string
		ThemeKey   string
		Timeout    time.Duration
		Redis      RedisConfig
		Database   DatabaseConfig
	}

	ShellConfig struct {
		Address         string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	Config struct {
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		RollbarToken string
		API          APIConfig
		Storage      StorageConfig
		Shell        ShellConfig
	}
)

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with ENV (DEV by default), e.g. DEV_API_BASEURL.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Masomo")
	v.SetDefault("build", "develop")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("api.baseURL", "http://localhost:8000")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.rateLimit", 5.0)
	v.SetDefault("api.rateBurst", 10)
	v.SetDefault("api.refreshLeeway", time.Minute)
	v.SetDefault("storage.engine", "file")
	v.SetDefault("storage.dir", defaultStorageDir())
	v.SetDefault("storage.profile", "default")
	v.SetDefault("storage.sessionKey", "auth-storage")
	v.SetDefault("storage.themeKey", "theme-storage")
	v.SetDefault("storage.timeout", 2*time.Second)
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "masomo:console:")
	v.SetDefault("storage.redis.ttl", time.Duration(0))
	v.SetDefault("storage.database.url", "postgres://localhost:5432/masomo?sslmode=disable")
	v.SetDefault("shell.address", "127.0.0.1:8090")
	v.SetDefault("shell.shutdownTimeout", 5*time.Second)
	v.SetDefault("shell.disableReqLogs", false)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
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
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		RollbarToken: v.GetString("rollbarToken"),
		API: APIConfig{
			BaseURL:       strings.TrimRight(v.GetString("api.baseURL"), "/"),
			Timeout:       v.GetDuration("api.timeout"),
			RateLimit:     v.GetFloat64("api.rateLimit"),
			RateBurst:     v.GetInt("api.rateBurst"),
			RefreshLeeway: v.GetDuration("api.refreshLeeway"),
		},
		Storage: StorageConfig{
			Engine:     strings.ToLower(v.GetString("storage.engine")),
			Dir:        v.GetString("storage.dir"),
			Profile:    v.GetString("storage.profile"),
			SessionKey: v.GetString("storage.sessionKey"),
			ThemeKey:   v.GetString("storage.themeKey"),
			Timeout:    v.GetDuration("storage.timeout"),
			Redis: RedisConfig{
				Addr:     v.GetString("storage.redis.addr"),
				Password: v.GetString("storage.redis.password"),
				DB:       v.GetInt("storage.redis.db"),
				Prefix:   v.GetString("storage.redis.prefix"),
				TTL:      v.GetDuration("storage.redis.ttl"),
			},
			Database: DatabaseConfig{
				URL: v.GetString("storage.database.url"),
			},
		},
		Shell: ShellConfig{
			Address:         v.GetString("shell.address"),
			ShutdownTimeout: v.GetDuration("shell.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("shell.disableReqLogs"),
		},
	}
}

func defaultStorageDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "masomo")
	}
	return filepath.Join(dir, "masomo")
}
