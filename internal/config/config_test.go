package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/x.db")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MatchAdmissionThreshold != 0.70 || cfg.MatchAutoPriceThreshold != 0.95 {
		t.Fatalf("thresholds: %v %v", cfg.MatchAdmissionThreshold, cfg.MatchAutoPriceThreshold)
	}
	if cfg.AutoSendConfidence != 95 {
		t.Fatalf("auto send confidence: %v", cfg.AutoSendConfidence)
	}
	if cfg.TaxRateLocal != 0.09 || cfg.TaxRateCentral != 0.09 {
		t.Fatalf("tax rates: %v %v", cfg.TaxRateLocal, cfg.TaxRateCentral)
	}
	if cfg.DBPath != "/tmp/x.db" {
		t.Fatalf("db path: %s", cfg.DBPath)
	}
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	t.Setenv("MATCH_ADMISSION_THRESHOLD", "0.99")
	t.Setenv("MATCH_AUTO_PRICE_THRESHOLD", "0.90")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetEnvDuration(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "go duration", value: "90s", want: 90 * time.Second},
		{name: "bare seconds", value: "45", want: 45 * time.Second},
		{name: "garbage", value: "soon", want: time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tc.value)
			if got := getEnvDuration("TEST_DURATION", time.Minute); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_FLAG", "on")
	if !getEnvBool("TEST_FLAG", false) {
		t.Fatal("expected true")
	}
	t.Setenv("TEST_FLAG", "maybe")
	if getEnvBool("TEST_FLAG", false) {
		t.Fatal("expected fallback")
	}
}
