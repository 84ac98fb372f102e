package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.GRPCAddr != "0.0.0.0:50051" {
		t.Fatalf("addrs = %q, %q", cfg.HTTPAddr, cfg.GRPCAddr)
	}
	if cfg.Window.Start != 9*time.Hour || cfg.Window.End != 17*time.Hour {
		t.Fatalf("window = %+v", cfg.Window)
	}
	if cfg.ShutdownTimeout != 10*time.Second || cfg.AuthCacheTTL != 5*time.Minute || cfg.OutboxPollInterval != 2*time.Second {
		t.Fatalf("durations = %v %v %v", cfg.ShutdownTimeout, cfg.AuthCacheTTL, cfg.OutboxPollInterval)
	}
	if cfg.RedisAddr != "" || cfg.KafkaBrokers != "" || cfg.OTelEnabled {
		t.Fatalf("optional integrations must default to off: %+v", cfg)
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Fatalf("trusted proxies = %v, want none", cfg.TrustedProxies)
	}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, []string{"*"}) {
		t.Fatalf("cors origins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/gb")
	t.Setenv("PORT", "9090")
	t.Setenv("GARAGEBOOK_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("GARAGEBOOK_SCHEDULING_LOCATION", "Europe/Berlin")
	t.Setenv("GARAGEBOOK_SCHEDULING_WINDOW_START", "08:30")
	t.Setenv("GARAGEBOOK_SCHEDULING_WINDOW_END", "18:00")
	t.Setenv("GARAGEBOOK_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GARAGEBOOK_OTEL_ENABLED", "true")
	t.Setenv("GARAGEBOOK_OTEL_SAMPLE_RATIO", "0.25")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://u:p@db:5432/gb" || cfg.HTTPAddr != ":9090" || cfg.GRPCAddr != "127.0.0.1:6000" {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
	if cfg.RedisAddr != "redis:6379" || cfg.KafkaBrokers != "k1:9092,k2:9092" {
		t.Fatalf("integrations = %q %q", cfg.RedisAddr, cfg.KafkaBrokers)
	}
	if cfg.Location.String() != "Europe/Berlin" || cfg.Window.Start != 8*time.Hour+30*time.Minute || cfg.Window.End != 18*time.Hour {
		t.Fatalf("scheduling = %v %+v", cfg.Location, cfg.Window)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("cors origins = %v", cfg.CORSAllowedOrigins)
	}
	if !reflect.DeepEqual(cfg.TrustedProxies, []string{"10.0.0.0/8", "192.0.2.1"}) {
		t.Fatalf("trusted proxies = %v", cfg.TrustedProxies)
	}
	if !cfg.OTelEnabled || cfg.OTelSampleRatio != 0.25 {
		t.Fatalf("otel = %v %v", cfg.OTelEnabled, cfg.OTelSampleRatio)
	}
}

func TestLoad_HTTPAddrWinsOverPort(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GARAGEBOOK_HTTP_ADDR", "127.0.0.1:7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:7070" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr)
	}
}

func TestLoad_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "bad duration", env: map[string]string{"GARAGEBOOK_SHUTDOWN_TIMEOUT": "soon"}, wantErr: "shutdown.timeout"},
		{name: "negative duration", env: map[string]string{"GARAGEBOOK_AUTH_CACHE_TTL": "-1s"}, wantErr: "auth.cache_ttl"},
		{name: "inverted window", env: map[string]string{"GARAGEBOOK_SCHEDULING_WINDOW_START": "18:00"}, wantErr: "scheduling window"},
		{name: "bad clock", env: map[string]string{"GARAGEBOOK_SCHEDULING_WINDOW_END": "5pm"}, wantErr: "scheduling window"},
		{name: "unknown zone", env: map[string]string{"GARAGEBOOK_SCHEDULING_LOCATION": "Mars/Olympus"}, wantErr: "scheduling.location"},
		{name: "sample ratio", env: map[string]string{"GARAGEBOOK_OTEL_SAMPLE_RATIO": "2"}, wantErr: "otel.sample_ratio"},
		{name: "trusted proxy", env: map[string]string{"GARAGEBOOK_HTTP_TRUSTED_PROXIES": "loadbalancer"}, wantErr: "http.trusted_proxies"},
		{name: "port", env: map[string]string{"PORT": "http"}, wantErr: "PORT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}
