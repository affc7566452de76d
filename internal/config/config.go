package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Jobs      JobsConfig
	Convert   ConvertConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Region      string
	EndpointURL string
	AccessKey   string
	SecretKey   string
	Bucket      string
}

type JobsConfig struct {
	TableName   string
	Region      string
	EndpointURL string
}

type ConvertConfig struct {
	ImageTimeout int // seconds
	PDFTimeout   int // seconds
	UploadURLTTL int // seconds
	ResultURLTTL int // seconds
	Concurrency  int
}

type RateLimitConfig struct {
	JobsPerHour   int
	UploadPerHour int
	StatusPerMin  int
	EventsPerMin  int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("S3_ACCESS_KEY")
	readSecret("S3_SECRET_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("storage.region", "S3_REGION")
	_ = viper.BindEnv("storage.endpoint_url", "S3_ENDPOINT_URL")
	_ = viper.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	_ = viper.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	_ = viper.BindEnv("storage.bucket", "S3_BUCKET")
	_ = viper.BindEnv("jobs.table_name", "JOBS_TABLE_NAME")
	_ = viper.BindEnv("jobs.region", "JOBS_TABLE_REGION")
	_ = viper.BindEnv("jobs.endpoint_url", "JOBS_ENDPOINT_URL")
	_ = viper.BindEnv("convert.image_timeout", "CONVERT_IMAGE_TIMEOUT")
	_ = viper.BindEnv("convert.pdf_timeout", "CONVERT_PDF_TIMEOUT")
	_ = viper.BindEnv("convert.upload_url_ttl", "UPLOAD_URL_TTL")
	_ = viper.BindEnv("convert.result_url_ttl", "RESULT_URL_TTL")
	_ = viper.BindEnv("convert.concurrency", "CONVERT_CONCURRENCY")
	_ = viper.BindEnv("ratelimit.jobs_per_hour", "RATELIMIT_JOBS_PER_HOUR")
	_ = viper.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")
	_ = viper.BindEnv("ratelimit.status_per_min", "RATELIMIT_STATUS_PER_MIN")
	_ = viper.BindEnv("ratelimit.events_per_min", "RATELIMIT_EVENTS_PER_MIN")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("jobs.region", "us-east-1")
	viper.SetDefault("convert.image_timeout", 60)
	viper.SetDefault("convert.pdf_timeout", 30)
	viper.SetDefault("convert.upload_url_ttl", 3600)
	viper.SetDefault("convert.result_url_ttl", 172800)
	viper.SetDefault("convert.concurrency", 10)
	viper.SetDefault("ratelimit.jobs_per_hour", 100)
	viper.SetDefault("ratelimit.upload_per_hour", 50)
	viper.SetDefault("ratelimit.status_per_min", 120)
	viper.SetDefault("ratelimit.events_per_min", 300)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Region:      viper.GetString("storage.region"),
			EndpointURL: viper.GetString("storage.endpoint_url"),
			AccessKey:   viper.GetString("storage.access_key"),
			SecretKey:   viper.GetString("storage.secret_key"),
			Bucket:      viper.GetString("storage.bucket"),
		},
		Jobs: JobsConfig{
			TableName:   viper.GetString("jobs.table_name"),
			Region:      viper.GetString("jobs.region"),
			EndpointURL: viper.GetString("jobs.endpoint_url"),
		},
		Convert: ConvertConfig{
			ImageTimeout: viper.GetInt("convert.image_timeout"),
			PDFTimeout:   viper.GetInt("convert.pdf_timeout"),
			UploadURLTTL: viper.GetInt("convert.upload_url_ttl"),
			ResultURLTTL: viper.GetInt("convert.result_url_ttl"),
			Concurrency:  viper.GetInt("convert.concurrency"),
		},
		RateLimit: RateLimitConfig{
			JobsPerHour:   viper.GetInt("ratelimit.jobs_per_hour"),
			UploadPerHour: viper.GetInt("ratelimit.upload_per_hour"),
			StatusPerMin:  viper.GetInt("ratelimit.status_per_min"),
			EventsPerMin:  viper.GetInt("ratelimit.events_per_min"),
		},
	}

	return cfg, nil
}
