package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	RowStoreREST = "rest"
	RowStoreSQL  = "sql"

	FileStoreSupabase = "supabase"
	FileStoreGCS      = "gcs"
)

type Config struct {
	HTTPAddr string
	LogMode  string

	// prediction endpoint
	PredictAPIURL  string
	PredictTimeout time.Duration

	// backend-as-a-service
	SupabaseURL      string
	SupabaseAnonKey  string
	AutoRefreshToken bool

	// row storage: rest (PostgREST) or sql (direct gorm)
	RowStore string
	DBDSN    string

	// avatars: supabase storage or gcs
	FileStore        string
	AvatarBucket     string
	GCSBucket        string
	GCSPublicBaseURL string

	// session persistence; memory only when RedisAddr is empty
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionKey    string

	// rabbitMQ, disabled when RabbitURL is empty
	RabbitURL   string
	RabbitQueue string
}

// Load reads .env (if present) and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "dev"
	}

	predictTimeout := 30 * time.Second
	if v := os.Getenv("PREDICT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			predictTimeout = d
		}
	}

	autoRefresh := true
	if v := os.Getenv("AUTO_REFRESH_TOKEN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			autoRefresh = b
		}
	}

	rowStore := strings.ToLower(os.Getenv("ROW_STORE"))
	if rowStore == "" {
		rowStore = RowStoreREST
	}

	fileStore := strings.ToLower(os.Getenv("FILE_STORE"))
	if fileStore == "" {
		fileStore = FileStoreSupabase
	}

	avatarBucket := os.Getenv("AVATAR_BUCKET")
	if avatarBucket == "" {
		avatarBucket = "profile_images"
	}

	gcsPublicBase := os.Getenv("GCS_PUBLIC_BASE_URL")
	if gcsPublicBase == "" {
		gcsPublicBase = "https://storage.googleapis.com"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	sessionKey := os.Getenv("SESSION_KEY")
	if sessionKey == "" {
		sessionKey = "medirec:auth:session"
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "prediction_events"
	}

	return Config{
		HTTPAddr: addr,
		LogMode:  logMode,

		PredictAPIURL:  strings.TrimRight(os.Getenv("PREDICT_API_URL"), "/"),
		PredictTimeout: predictTimeout,

		SupabaseURL:      strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseAnonKey:  os.Getenv("SUPABASE_ANON_KEY"),
		AutoRefreshToken: autoRefresh,

		RowStore: rowStore,
		DBDSN:    os.Getenv("DB_DSN"),

		FileStore:        fileStore,
		AvatarBucket:     avatarBucket,
		GCSBucket:        os.Getenv("GCS_BUCKET"),
		GCSPublicBaseURL: strings.TrimRight(gcsPublicBase, "/"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		SessionKey:    sessionKey,

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: rabbitQueue,
	}
}

// Validate reports every missing setting the serve command cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.PredictAPIURL == "" {
		errs = append(errs, errors.New("missing PREDICT_API_URL"))
	}
	if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
		errs = append(errs, errors.New("missing SUPABASE_URL or SUPABASE_ANON_KEY"))
	}
	switch c.RowStore {
	case RowStoreREST:
	case RowStoreSQL:
		if c.DBDSN == "" {
			errs = append(errs, errors.New("ROW_STORE=sql requires DB_DSN"))
		}
	default:
		errs = append(errs, errors.New("unsupported ROW_STORE="+c.RowStore))
	}
	switch c.FileStore {
	case FileStoreSupabase:
	case FileStoreGCS:
		if c.GCSBucket == "" {
			errs = append(errs, errors.New("FILE_STORE=gcs requires GCS_BUCKET"))
		}
	default:
		errs = append(errs, errors.New("unsupported FILE_STORE="+c.FileStore))
	}
	return errors.Join(errs...)
}
