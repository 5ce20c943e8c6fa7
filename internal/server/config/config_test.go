package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	for _, k := range []string{"MEETFLOW_HTTP_ADDR", "MEETFLOW_DB_DSN", "MEETFLOW_JWT_SECRET", "MEETFLOW_OTP_TTL", "MEETFLOW_OTP_TTL_SECONDS", "MEETFLOW_OTP_LENGTH", "MEETFLOW_REDIS_ADDR"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.HTTPAddr == "" || cfg.DatabaseDSN == "" || cfg.JWTSecret == "" {
		t.Fatalf("empty config fields")
	}
	if cfg.OTPTTL != 10*time.Minute || cfg.OTPLength != 6 || cfg.RedisAddr != "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	t.Setenv("MEETFLOW_HTTP_ADDR", ":9999")
	t.Setenv("MEETFLOW_DB_DSN", "file::memory:")
	t.Setenv("MEETFLOW_JWT_SECRET", "secret")
	t.Setenv("MEETFLOW_OTP_LENGTH", "4")
	t.Setenv("MEETFLOW_REDIS_ADDR", "127.0.0.1:6379")
	cfg = Load()
	if cfg.HTTPAddr != ":9999" || cfg.DatabaseDSN != "file::memory:" || cfg.JWTSecret != "secret" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.OTPLength != 4 || cfg.RedisAddr != "127.0.0.1:6379" {
		t.Fatalf("otp env not applied: %+v", cfg)
	}
}

func TestDurations(t *testing.T) {
	cases := []struct {
		name  string
		value string
		secs  string
		want  time.Duration
	}{
		{"go syntax", "90s", "", 90 * time.Second},
		{"seconds fallback", "", "45", 45 * time.Second},
		{"invalid falls back to seconds", "soon", "5", 5 * time.Second},
		{"default", "", "", time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("MEETFLOW_OTP_SWEEP_INTERVAL", tc.value)
			t.Setenv("MEETFLOW_OTP_SWEEP_INTERVAL_SECONDS", tc.secs)
			if got := Load().OTPSweepInterval; got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestOTPLengthClamped(t *testing.T) {
	t.Setenv("MEETFLOW_OTP_LENGTH", "12")
	if got := Load().OTPLength; got != 6 {
		t.Fatalf("got %d", got)
	}
}
