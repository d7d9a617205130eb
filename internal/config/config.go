package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"meetings"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"100"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
}

type svcConfig struct {
	Address         string   `envconfig:"MEETING_ADDRESS" default:":3443"`
	MetricsAddress  string   `envconfig:"MEETING_METRICS_ADDRESS" default:":8080"`
	BaseUrl         string   `envconfig:"MEETING_BASE_URL" required:"true"`
	LogLevel        string   `envconfig:"MEETING_LOG_LEVEL" default:"info"`
	MigrationFolder string   `envconfig:"MEETING_MIGRATIONS_FOLDER" default:""`
	AllowedOrigins  []string `envconfig:"MEETING_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	S3              S3
	Upload          Upload
	Processing      Processing
	Knowledge       Knowledge
	Events          Events
}

// S3 points at any S3 compatible object store.
type S3 struct {
	Endpoint      string `envconfig:"MEETING_S3_ENDPOINT" default:"s3.amazonaws.com"`
	Region        string `envconfig:"MEETING_S3_REGION" default:"us-east-1"`
	Bucket        string `envconfig:"MEETING_S3_BUCKET" default:"meetings"`
	AccessKey     string `envconfig:"MEETING_S3_ACCESS_KEY" default:""`
	SecretKey     string `envconfig:"MEETING_S3_SECRET_KEY" default:""`
	UseSSL        bool   `envconfig:"MEETING_S3_USE_SSL" default:"true"`
	PublicBaseURL string `envconfig:"MEETING_S3_PUBLIC_BASE_URL" default:""`
}

// Upload holds the size policy of the upload router.
type Upload struct {
	InlineThreshold   int64         `envconfig:"MEETING_UPLOAD_INLINE_THRESHOLD" default:"4194304"`
	MaxFileSize       int64         `envconfig:"MEETING_UPLOAD_MAX_FILE_SIZE" default:"996147200"`
	PresignExpiry     time.Duration `envconfig:"MEETING_UPLOAD_PRESIGN_EXPIRY" default:"1h"`
	LargeFileStrategy string        `envconfig:"MEETING_UPLOAD_LARGE_FILE_STRATEGY" default:"presigned"`
}

type Processing struct {
	OpenAIBaseURL        string            `envconfig:"MEETING_OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIAPIKey         string            `envconfig:"MEETING_OPENAI_API_KEY" default:""`
	OpenAIMaxRetries     int               `envconfig:"MEETING_OPENAI_MAX_RETRIES" default:"2"`
	VectorStoreID        string            `envconfig:"MEETING_OPENAI_VECTOR_STORE_ID" default:""`
	TranscriptionModel   string            `envconfig:"MEETING_TRANSCRIPTION_MODEL" default:"whisper-1"`
	TranscriptionParams  map[string]string `envconfig:"MEETING_TRANSCRIPTION_PARAMS" default:""`
	SummaryModel         string            `envconfig:"MEETING_SUMMARY_MODEL" default:"gpt-4-turbo"`
	FetchTimeout         time.Duration     `envconfig:"MEETING_FETCH_TIMEOUT" default:"30s"`
	TranscriptionTimeout time.Duration     `envconfig:"MEETING_TRANSCRIPTION_TIMEOUT" default:"10m"`
	DocumentTimeout      time.Duration     `envconfig:"MEETING_DOCUMENT_TIMEOUT" default:"5m"`
	SummaryTimeout       time.Duration     `envconfig:"MEETING_SUMMARY_TIMEOUT" default:"2m"`
}

// Events configures the record lifecycle event stream.
type Events struct {
	Topic string `envconfig:"MEETING_EVENTS_TOPIC" default:"meeting.intelligence.events"`
}

type Knowledge struct {
	PersistPath    string        `envconfig:"MEETING_KNOWLEDGE_PATH" default:""`
	Collection     string        `envconfig:"MEETING_KNOWLEDGE_COLLECTION" default:"transcripts"`
	EmbeddingModel string        `envconfig:"MEETING_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	ChunkSize      int           `envconfig:"MEETING_KNOWLEDGE_CHUNK_SIZE" default:"1000"`
	ChatModel      string        `envconfig:"MEETING_KNOWLEDGE_CHAT_MODEL" default:"gpt-4-turbo"`
	ChatTimeout    time.Duration `envconfig:"MEETING_KNOWLEDGE_CHAT_TIMEOUT" default:"2m"`
}

// New reads the configuration from the environment once and fails when a required value is missing.
func New() (*Config, error) {
	if singleConfig == nil {
		cfg := new(Config)
		if err := envconfig.Process("", cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		singleConfig = cfg
	}
	return singleConfig, nil
}

// NewDefault returns the default configuration without reading the environment.
// Tests use it with a sqlite database.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type:     "sqlite",
			Hostname: "localhost",
			Port:     "5432",
			Name:     "meetings.db",
			User:     "admin",
			Password: "adminpass",

			MaxOpenConns:    100,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Service: &svcConfig{
			Address:        ":3443",
			MetricsAddress: ":8080",
			BaseUrl:        "http://localhost:3443",
			LogLevel:       "info",
			AllowedOrigins: []string{"http://localhost:3000"},
			S3: S3{
				Endpoint: "localhost:9000",
				Region:   "us-east-1",
				Bucket:   "meetings",
			},
			Upload: Upload{
				InlineThreshold:   4 * 1024 * 1024,
				MaxFileSize:       950 * 1024 * 1024,
				PresignExpiry:     time.Hour,
				LargeFileStrategy: "presigned",
			},
			Processing: Processing{
				OpenAIBaseURL:        "https://api.openai.com/v1",
				OpenAIMaxRetries:     2,
				TranscriptionModel:   "whisper-1",
				SummaryModel:         "gpt-4-turbo",
				FetchTimeout:         30 * time.Second,
				TranscriptionTimeout: 10 * time.Minute,
				DocumentTimeout:      5 * time.Minute,
				SummaryTimeout:       2 * time.Minute,
			},
			Knowledge: Knowledge{
				Collection:     "transcripts",
				EmbeddingModel: "text-embedding-3-small",
				ChunkSize:      1000,
				ChatModel:      "gpt-4-turbo",
				ChatTimeout:    2 * time.Minute,
			},
			Events: Events{Topic: "meeting.intelligence.events"},
		},
	}
}

func (c *Config) Validate() error {
	if c.Service == nil || c.Database == nil {
		return errors.New("configuration is incomplete")
	}
	if _, err := url.ParseRequestURI(c.Service.BaseUrl); err != nil {
		return fmt.Errorf("MEETING_BASE_URL is not a valid url: %w", err)
	}
	u := c.Service.Upload
	if u.InlineThreshold <= 0 || u.MaxFileSize <= 0 {
		return errors.New("upload size limits must be positive")
	}
	if u.InlineThreshold > u.MaxFileSize {
		return fmt.Errorf("inline threshold %d exceeds maximum file size %d", u.InlineThreshold, u.MaxFileSize)
	}
	if u.PresignExpiry <= 0 {
		return errors.New("presign expiry must be positive")
	}
	switch u.LargeFileStrategy {
	case "presigned", "server":
	default:
		return fmt.Errorf("unknown large file strategy %q", u.LargeFileStrategy)
	}
	return nil
}
