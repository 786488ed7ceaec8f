package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	MongoDB    MongoDBConfig
	Redis      RedisConfig
	Keycloak   KeycloakConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	Auth       AuthConfig
	Attendance AttendanceConfig
	MinIO      MinIOConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// AuthConfig tunes the credential store.
type AuthConfig struct {
	MinPasswordLength int
	MaxFailedAttempts int
	AttemptWindow     time.Duration
	RecentLoginWindow time.Duration
}

// AttendanceConfig holds the attendance marking tolerances.
type AttendanceConfig struct {
	QRLiveness      time.Duration
	SessionGrace    time.Duration
	GPSRadiusMeters float64
}

// MinIOConfig holds object storage settings for profile photos. Endpoint empty disables uploads.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5001")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "presensync")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	viper.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_USE_REDIS", false)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("AUTH_MIN_PASSWORD_LENGTH", 6)
	viper.SetDefault("AUTH_MAX_FAILED_ATTEMPTS", 5)
	viper.SetDefault("AUTH_ATTEMPT_WINDOW_MINUTES", 15)
	viper.SetDefault("AUTH_RECENT_LOGIN_MINUTES", 5)
	viper.SetDefault("ATTENDANCE_QR_LIVENESS_SECONDS", 300)
	viper.SetDefault("ATTENDANCE_SESSION_GRACE_MINUTES", 5)
	viper.SetDefault("ATTENDANCE_GPS_RADIUS_METERS", 200.0)
	viper.SetDefault("MINIO_BUCKET", "presensync")

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		Keycloak: KeycloakConfig{
			URL:          viper.GetString("KEYCLOAK_URL"),
			Realm:        viper.GetString("KEYCLOAK_REALM"),
			ClientID:     viper.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret: viper.GetString("KEYCLOAK_CLIENT_SECRET"),
		},
		JWT: JWTConfig{
			Secret:          os.Getenv("JWT_SECRET"),
			AccessTokenTTL:  time.Duration(viper.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(viper.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Auth: AuthConfig{
			MinPasswordLength: viper.GetInt("AUTH_MIN_PASSWORD_LENGTH"),
			MaxFailedAttempts: viper.GetInt("AUTH_MAX_FAILED_ATTEMPTS"),
			AttemptWindow:     time.Duration(viper.GetInt("AUTH_ATTEMPT_WINDOW_MINUTES")) * time.Minute,
			RecentLoginWindow: time.Duration(viper.GetInt("AUTH_RECENT_LOGIN_MINUTES")) * time.Minute,
		},
		Attendance: AttendanceConfig{
			QRLiveness:      time.Duration(viper.GetInt("ATTENDANCE_QR_LIVENESS_SECONDS")) * time.Second,
			SessionGrace:    time.Duration(viper.GetInt("ATTENDANCE_SESSION_GRACE_MINUTES")) * time.Minute,
			GPSRadiusMeters: viper.GetFloat64("ATTENDANCE_GPS_RADIUS_METERS"),
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
	}

	if cfg.JWT.Secret == "" {
		logger.Warnf("JWT_SECRET is not set; set a secure value in production")
	}
	if cfg.MongoDB.URI == "" {
		logger.Warnf("MONGODB_URI is not set; falling back to in-memory stores")
	}

	return cfg, nil
}
