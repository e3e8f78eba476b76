package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Chat     ChatConfig     `mapstructure:"chat"`
	YouTube  YouTubeConfig  `mapstructure:"youtube"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Search   SearchConfig   `mapstructure:"search"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Environment string `mapstructure:"environment"`
	File        string `mapstructure:"file"`
	FileOnly    bool   `mapstructure:"file_only"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	Path   string `mapstructure:"path"`   // sqlite file

	URL      string `mapstructure:"url"` // full postgres DSN, wins over the discrete fields
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogQueries      bool          `mapstructure:"log_queries"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver != "postgres" {
		return c.Path
	}
	if c.URL != "" {
		return c.URL
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // s3, r2, s3compatible, local
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	LocalDir  string `mapstructure:"local_dir"`
}

type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ChatConfig tunes question answering over clean transcripts. It shares the
// llm endpoint and model.
type ChatConfig struct {
	Temperature  float64 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	MaxHistory   int     `mapstructure:"max_history"`
	HistoryLimit int     `mapstructure:"history_limit"`
}

type YouTubeConfig struct {
	// Source is "youtube" or "localdir".
	Source            string `mapstructure:"source"`
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	CaptionURL        string `mapstructure:"caption_url"`
	CaptionLang       string `mapstructure:"caption_lang"`
	MaxPlaylistVideos int    `mapstructure:"max_playlist_videos"`
	LocalDir          string `mapstructure:"local_dir"`
}

type PipelineConfig struct {
	MaxSourceBytes int           `mapstructure:"max_source_bytes"`
	MaxChunkBytes  int           `mapstructure:"max_chunk_bytes"`
	ChunkDelay     time.Duration `mapstructure:"chunk_delay"`
	StageTimeout   time.Duration `mapstructure:"stage_timeout"`
	BatchWorkers   int           `mapstructure:"batch_workers"`
}

type SearchConfig struct {
	Backend   string          `mapstructure:"backend"` // bleve or qdrant
	BlevePath string          `mapstructure:"bleve_path"`
	TopN      int             `mapstructure:"top_n"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // jina or openai-compatible
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver)
	}
	switch c.Storage.Type {
	case "s3", "r2", "s3compatible", "local":
	default:
		return fmt.Errorf("storage.type: unsupported type %q", c.Storage.Type)
	}
	switch c.Search.Backend {
	case "bleve", "qdrant":
	default:
		return fmt.Errorf("search.backend: unsupported backend %q", c.Search.Backend)
	}
	if c.Pipeline.MaxChunkBytes <= 0 || c.Pipeline.MaxSourceBytes <= 0 {
		return fmt.Errorf("pipeline: max_source_bytes and max_chunk_bytes must be positive")
	}
	if c.Pipeline.BatchWorkers <= 0 {
		return fmt.Errorf("pipeline.batch_workers must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.environment", "local")
	v.SetDefault("log.file", "/var/log/courtside/app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/courtside.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.bucket", "courtside")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.local_dir", "./data/artifacts")

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 4000)
	v.SetDefault("llm.timeout", 90*time.Second)

	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("chat.max_tokens", 1000)
	v.SetDefault("chat.max_history", 20)
	v.SetDefault("chat.history_limit", 20)

	v.SetDefault("youtube.source", "youtube")
	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("youtube.caption_url", "https://www.youtube.com/api/timedtext")
	v.SetDefault("youtube.caption_lang", "en")
	v.SetDefault("youtube.max_playlist_videos", 10)
	v.SetDefault("youtube.local_dir", "./data/captions")

	v.SetDefault("pipeline.max_source_bytes", 12000)
	v.SetDefault("pipeline.max_chunk_bytes", 8000)
	v.SetDefault("pipeline.chunk_delay", time.Second)
	v.SetDefault("pipeline.stage_timeout", 2*time.Minute)
	v.SetDefault("pipeline.batch_workers", 1)

	v.SetDefault("search.backend", "bleve")
	v.SetDefault("search.bleve_path", "./data/index.bleve")
	v.SetDefault("search.top_n", 3)
	v.SetDefault("search.qdrant.host", "localhost")
	v.SetDefault("search.qdrant.port", 6334)
	v.SetDefault("search.qdrant.collection", "transcripts")
	v.SetDefault("search.embedding.provider", "jina")
	v.SetDefault("search.embedding.model", "jina-embeddings-v3")
	v.SetDefault("search.embedding.dimensions", 1024)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads configuration from configPath (or ./configs/config.yaml, ./config.yaml),
// then .env and the environment.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets usually arrive under their conventional names.
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.base_url", "OPENAI_BASE_URL")
	v.BindEnv("youtube.api_key", "YOUTUBE_API_KEY")
	v.BindEnv("search.qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("search.embedding.api_key", "JINA_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
