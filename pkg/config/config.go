package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Milvus    MilvusConfig
	LLM       LLMConfig
	Parser    ParserConfig
	Drive     DriveConfig
	Ingest    IngestConfig
	Retrieval RetrievalConfig
	RateLimit RateLimitConfig
	Cohorts   map[string]CohortConfig
	Personas  map[string]string
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	BodyLimit      int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type MilvusConfig struct {
	Endpoint       string
	CollectionName string
}

type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	EmbeddingDim   int
	Temperature    float32
	MaxTokens      int
}

type ParserConfig struct {
	Endpoint        string
	APIKey          string
	PollIntervalSec int
	PollTimeoutSec  int
}

type DriveConfig struct {
	CredentialsPath string
	ScratchDir      string
}

type IngestConfig struct {
	ChunkSize          int
	ChunkOverlap       int
	ThrottleBackoffSec int
}

type RetrievalConfig struct {
	TopK          int
	DefaultCohort string
}

type RateLimitConfig struct {
	MaxRequestsPerMinute int
}

// CohortConfig ties a cohort key (academic year) to the source folder its
// documents live in and the public link students get when they ask for files.
type CohortConfig struct {
	FolderID     string
	ResourceLink string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/campusbrain")

	viper.SetEnvPrefix("CAMPUSBRAIN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.LLM.EmbeddingDim <= 0 {
		return fmt.Errorf("llm.embeddingDim must be positive, got %d", c.LLM.EmbeddingDim)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.topK must be positive, got %d", c.Retrieval.TopK)
	}
	if _, ok := c.Cohorts[c.Retrieval.DefaultCohort]; !ok {
		return fmt.Errorf("retrieval.defaultCohort %q is not a configured cohort", c.Retrieval.DefaultCohort)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.requestTimeout", 30)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("sqlite.path", "./data/campusbrain.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "campus_notes")

	// Gemini through its OpenAI-compatible surface. The embedding model and
	// dimension travel together: the collection is created with this dimension
	// and startup fails on any mismatch.
	viper.SetDefault("llm.baseURL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	viper.SetDefault("llm.model", "gemini-2.0-flash")
	viper.SetDefault("llm.embeddingModel", "text-embedding-004")
	viper.SetDefault("llm.embeddingDim", 768)
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 2048)

	viper.SetDefault("parser.endpoint", "https://api.cloud.llamaindex.ai")
	viper.SetDefault("parser.pollIntervalSec", 2)
	viper.SetDefault("parser.pollTimeoutSec", 300)

	viper.SetDefault("drive.credentialsPath", "./credentials.json")
	viper.SetDefault("drive.scratchDir", "./temp_downloads")

	viper.SetDefault("ingest.chunkSize", 1000)
	viper.SetDefault("ingest.chunkOverlap", 2)
	viper.SetDefault("ingest.throttleBackoffSec", 60)

	viper.SetDefault("retrieval.topK", 5)
	viper.SetDefault("retrieval.defaultCohort", "1")

	viper.SetDefault("ratelimit.maxRequestsPerMinute", 60)

	viper.SetDefault("cohorts", map[string]map[string]string{
		"1": {
			"folderid":     "1Yv-tfstUnQytvhvdLP02j6IDiolovIWI",
			"resourcelink": "https://drive.google.com/drive/folders/1Yv-tfstUnQytvhvdLP02j6IDiolovIWI?usp=drive_link",
		},
		"2": {
			"folderid":     "1gGPWHjZSF0Z22fus_yRrX_aq3zKws5Bp",
			"resourcelink": "https://drive.google.com/drive/folders/1gGPWHjZSF0Z22fus_yRrX_aq3zKws5Bp?usp=drive_link",
		},
		"3": {
			"folderid":     "1fIZRxNrGmz5BwzNjbCsLdHfOHRK9MU1e",
			"resourcelink": "https://drive.google.com/drive/folders/1fIZRxNrGmz5BwzNjbCsLdHfOHRK9MU1e?usp=drive_link",
		},
		"4": {
			"folderid":     "17Ga5lrRQ-d8aLEOhZ24qZ7vWL8bXUpY1",
			"resourcelink": "https://drive.google.com/drive/folders/17Ga5lrRQ-d8aLEOhZ24qZ7vWL8bXUpY1?usp=drive_link",
		},
	})

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
