package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Logging
	LogLevel  string
	LogPretty bool

	// Simulation
	TickIntervalMS int
	HistorySize    int
	OUTheta        float64
	OUSigma        float64
	SpeedMin       float64
	SpeedMax       float64
	NoiseStdDev    float64
	RandomSeed     uint64 // 0 seeds from the runtime

	// Persistence toggles
	PersistEnabled bool
	RedisEnabled   bool

	// TimescaleDB
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Pipeline channels
	DBChannelSize     int
	StateChannelSize  int
	AlertChannelSize  int
	StreamChannelSize int

	// Batch writer tuning
	DBBatchSize       int
	DBFlushIntervalMS int

	// Worker counts
	DBWriterWorkers    int
	StateWriterWorkers int
	AlertWorkers       int

	// Alerts
	AlertDedupSeconds int

	// Auth
	AuthEnabled         bool
	AuthCacheTTLSeconds int
	ValidAPIKeys        []string

	// Offline training
	DatasetPath string
	ModelDir    string
	TestSize    float64
	CVFolds     int
}

func Load() *Config {
	return &Config{
		HTTPPort:            getEnv("HTTP_PORT", "5001"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogPretty:           getEnvBool("LOG_PRETTY", false),
		TickIntervalMS:      getEnvInt("TICK_INTERVAL_MS", 500),
		HistorySize:         getEnvInt("HISTORY_SIZE", 30),
		OUTheta:             getEnvFloat("OU_THETA", 0.8),
		OUSigma:             getEnvFloat("OU_SIGMA", 0.006),
		SpeedMin:            getEnvFloat("SPEED_MIN", 0.05),
		SpeedMax:            getEnvFloat("SPEED_MAX", 0.6),
		NoiseStdDev:         getEnvFloat("NOISE_STDDEV", 0.005),
		RandomSeed:          uint64(getEnvInt("RANDOM_SEED", 0)),
		PersistEnabled:      getEnvBool("PERSIST_ENABLED", false),
		RedisEnabled:        getEnvBool("REDIS_ENABLED", false),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "twin_user"),
		DBPassword:          getEnv("DB_PASSWORD", "twin_password"),
		DBName:              getEnv("DB_NAME", "hull_twin"),
		DBMaxConns:          int32(getEnvInt("DB_MAX_CONNS", 5)),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		DBChannelSize:       getEnvInt("DB_CHANNEL_SIZE", 1000),
		StateChannelSize:    getEnvInt("STATE_CHANNEL_SIZE", 1000),
		AlertChannelSize:    getEnvInt("ALERT_CHANNEL_SIZE", 100),
		StreamChannelSize:   getEnvInt("STREAM_CHANNEL_SIZE", 100),
		DBBatchSize:         getEnvInt("DB_BATCH_SIZE", 20),
		DBFlushIntervalMS:   getEnvInt("DB_FLUSH_INTERVAL_MS", 2000),
		DBWriterWorkers:     getEnvInt("DB_WRITER_WORKERS", 1),
		StateWriterWorkers:  getEnvInt("STATE_WRITER_WORKERS", 1),
		AlertWorkers:        getEnvInt("ALERT_WORKERS", 1),
		AlertDedupSeconds:   getEnvInt("ALERT_DEDUP_SECONDS", 300),
		AuthEnabled:         getEnvBool("AUTH_ENABLED", false),
		AuthCacheTTLSeconds: getEnvInt("AUTH_CACHE_TTL_SECONDS", 300),
		ValidAPIKeys:        strings.Split(getEnv("VALID_API_KEYS", ""), ","),
		DatasetPath:         getEnv("DATASET_PATH", "data/m10_bonus.csv"),
		ModelDir:            getEnv("MODEL_DIR", "models"),
		TestSize:            getEnvFloat("TEST_SIZE", 0.2),
		CVFolds:             getEnvInt("CV_FOLDS", 5),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
