package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 是所有環境變數覆寫的前綴，例如 BCHAT_DB_HOST
const EnvPrefix = "BCHAT"

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Auth   AuthConfig
	Chat   ChatConfig
	Log    LogConfig
}

type ServerConfig struct {
	Address string
}

// DBConfig 描述 gateway 的資料庫連線；Driver 為 postgres 或 sqlite
type DBConfig struct {
	Driver   string
	Host     string
	User     string
	Password string
	Name     string
	Port     int
	Path     string
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// ChatConfig 是聊天客戶端 session 的所有可調參數
type ChatConfig struct {
	WSURL                string        `mapstructure:"ws_url"`
	APIURL               string        `mapstructure:"api_url"`
	Token                string        `mapstructure:"token"`
	HistoryLimit         int           `mapstructure:"history_limit"`
	TypingTTL            time.Duration `mapstructure:"typing_ttl"`
	ReconnectBase        time.Duration `mapstructure:"reconnect_base"`
	ReconnectCap         time.Duration `mapstructure:"reconnect_cap"`
	ReconnectMaxAttempts int           `mapstructure:"reconnect_max_attempts"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	PingInterval         time.Duration `mapstructure:"ping_interval"`
	PongWait             time.Duration `mapstructure:"pong_wait"`
	WriteWait            time.Duration `mapstructure:"write_wait"`
	MaxFrameSize         int64         `mapstructure:"max_frame_size"`
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "building_chat")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.path", "building_chat.db")

	v.SetDefault("auth.jwt_secret", "change-me")
	v.SetDefault("auth.token_ttl", 240*time.Hour)

	v.SetDefault("chat.ws_url", "ws://localhost:8080")
	v.SetDefault("chat.api_url", "http://localhost:8080")
	v.SetDefault("chat.token", "")
	v.SetDefault("chat.history_limit", 50)
	v.SetDefault("chat.typing_ttl", 3*time.Second)
	v.SetDefault("chat.reconnect_base", time.Second)
	v.SetDefault("chat.reconnect_cap", 30*time.Second)
	v.SetDefault("chat.reconnect_max_attempts", 5)
	v.SetDefault("chat.request_timeout", 10*time.Second)
	v.SetDefault("chat.ping_interval", 54*time.Second)
	v.SetDefault("chat.pong_wait", 60*time.Second)
	v.SetDefault("chat.write_wait", 10*time.Second)
	v.SetDefault("chat.max_frame_size", 64*1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load 讀取 ./pkg/config/config.yaml，並套用 .env 與 BCHAT_ 前綴的環境變數
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile 與 Load 相同，但可指定設定檔路徑；path 為空時使用預設搜尋路徑
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./pkg/config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate 檢查設定值是否合理
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	if c.Chat.HistoryLimit <= 0 {
		return errors.New("chat.history_limit must be positive")
	}
	if c.Chat.ReconnectBase <= 0 || c.Chat.ReconnectCap < c.Chat.ReconnectBase {
		return errors.New("chat.reconnect_base must be positive and not exceed chat.reconnect_cap")
	}
	if c.Chat.ReconnectMaxAttempts < 0 {
		return errors.New("chat.reconnect_max_attempts must not be negative")
	}
	if c.Chat.TypingTTL <= 0 {
		return errors.New("chat.typing_ttl must be positive")
	}
	return nil
}
