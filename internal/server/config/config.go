package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

const devSecret = "dev-secret-change"

type Config struct {
	HTTPAddr        string
	DatabaseDSN     string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	OTPTTL            time.Duration
	OTPLength         int
	OTPResendCooldown time.Duration
	OTPSweepInterval  time.Duration
	// RedisAddr switches OTP storage from sqlite to redis when set.
	RedisAddr     string
	RedisPassword string

	PhotoDir        string
	MaxUploadBytes  int64
	MaxRequestBytes int64
}

func Load() Config {
	cfg := Config{
		HTTPAddr:          getEnv("MEETFLOW_HTTP_ADDR", ":8080"),
		DatabaseDSN:       getEnv("MEETFLOW_DB_DSN", "file:meetflow.db?cache=shared&mode=rwc"),
		JWTSecret:         getEnv("MEETFLOW_JWT_SECRET", devSecret),
		AccessTokenTTL:    getEnvDuration("MEETFLOW_ACCESS_TOKEN_TTL", 24*time.Hour),
		RefreshTokenTTL:   getEnvDuration("MEETFLOW_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		OTPTTL:            getEnvDuration("MEETFLOW_OTP_TTL", 10*time.Minute),
		OTPLength:         getEnvInt("MEETFLOW_OTP_LENGTH", 6),
		OTPResendCooldown: getEnvDuration("MEETFLOW_OTP_RESEND_COOLDOWN", 30*time.Second),
		OTPSweepInterval:  getEnvDuration("MEETFLOW_OTP_SWEEP_INTERVAL", time.Minute),
		RedisAddr:         getEnv("MEETFLOW_REDIS_ADDR", ""),
		RedisPassword:     getEnv("MEETFLOW_REDIS_PASSWORD", ""),
		PhotoDir:          getEnv("MEETFLOW_PHOTO_DIR", "media"),
		MaxUploadBytes:    int64(getEnvInt("MEETFLOW_MAX_UPLOAD_BYTES", 10<<20)),
		MaxRequestBytes:   int64(getEnvInt("MEETFLOW_MAX_REQUEST_BYTES", 1<<20)),
	}
	if cfg.JWTSecret == devSecret {
		log.Println("WARNING: using development JWT secret; set MEETFLOW_JWT_SECRET")
	}
	if cfg.OTPLength < 4 || cfg.OTPLength > 6 {
		log.Printf("WARNING: MEETFLOW_OTP_LENGTH=%d outside 4..6, using 6", cfg.OTPLength)
		cfg.OTPLength = 6
	}
	return cfg
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getEnvDuration accepts Go duration syntax, or whole seconds in KEY_SECONDS.
func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			return time.Duration(s) * time.Second
		}
	}
	return def
}
