package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	os.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	os.Setenv("MONGODB_DATABASE", "presensync_test")
	os.Setenv("REDIS_HOST", "localhost")
	os.Setenv("REDIS_PORT", "6379")
	os.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	defer func() {
		for _, k := range []string{"MONGODB_URI", "MONGODB_DATABASE", "REDIS_HOST", "REDIS_PORT", "JWT_SECRET"} {
			os.Unsetenv(k)
		}
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.MongoDB.URI == "" || cfg.Redis.Host == "" {
		t.Fatalf("unexpected empty config values: %+v", cfg)
	}
	if cfg.MongoDB.Database != "presensync_test" {
		t.Fatalf("unexpected database: %s", cfg.MongoDB.Database)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Auth.MinPasswordLength != 6 {
		t.Fatalf("MinPasswordLength = %d, want 6", cfg.Auth.MinPasswordLength)
	}
	if cfg.Auth.RecentLoginWindow != 5*time.Minute {
		t.Fatalf("RecentLoginWindow = %v", cfg.Auth.RecentLoginWindow)
	}
	if cfg.Attendance.QRLiveness != 300*time.Second {
		t.Fatalf("QRLiveness = %v", cfg.Attendance.QRLiveness)
	}
	if cfg.Attendance.GPSRadiusMeters != 200 {
		t.Fatalf("GPSRadiusMeters = %v", cfg.Attendance.GPSRadiusMeters)
	}
	if cfg.JWT.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("AccessTokenTTL = %v", cfg.JWT.AccessTokenTTL)
	}
}
