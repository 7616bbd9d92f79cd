package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/outreach")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("SMTP_HOST", "")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.QuotaCeiling != 400 {
		t.Fatalf("quota ceiling = %d, want 400", cfg.QuotaCeiling)
	}
	if cfg.MaxRetryAttempts != 3 {
		t.Fatalf("max retry attempts = %d, want 3", cfg.MaxRetryAttempts)
	}
	if cfg.WindowStartHour != 9 || cfg.WindowEndHour != 18 {
		t.Fatalf("window = %d-%d, want 9-18", cfg.WindowStartHour, cfg.WindowEndHour)
	}

	offsets := cfg.GetFollowupOffsets()
	if offsets[0] != 120*time.Hour || offsets[1] != 240*time.Hour {
		t.Fatalf("followup offsets = %v", offsets)
	}

	want := []time.Duration{5 * time.Minute, 30 * time.Minute, 2 * time.Hour}
	schedule := cfg.GetBackoffSchedule()
	if len(schedule) != len(want) {
		t.Fatalf("backoff schedule = %v, want %v", schedule, want)
	}
	for i := range want {
		if schedule[i] != want[i] {
			t.Fatalf("backoff schedule = %v, want %v", schedule, want)
		}
	}

	days := cfg.GetWindowDays()
	if days[time.Sunday] {
		t.Fatalf("sunday must not be a send day by default")
	}
	for _, d := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday} {
		if !days[d] {
			t.Fatalf("%s must be a send day by default", d)
		}
	}

	// Without SMTP_HOST email stays disabled even though EMAIL_ENABLED defaults on.
	if cfg.GetEmailEnabled() {
		t.Fatalf("email must be disabled without SMTP_HOST")
	}
}

func TestLoadRequiredVariables(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost:5432/outreach")
	t.Setenv("JWT_ACCESS_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without JWT_ACCESS_SECRET")
	}
}

func TestLoadCustomBackoffSchedule(t *testing.T) {
	setRequired(t)
	t.Setenv("OUTREACH_BACKOFF_SCHEDULE", "1m, 10m ,1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []time.Duration{time.Minute, 10 * time.Minute, time.Hour}
	got := cfg.GetBackoffSchedule()
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("backoff schedule = %v, want %v", got, want)
	}
}

func TestLoadRejectsBadBackoffSchedule(t *testing.T) {
	setRequired(t)
	t.Setenv("OUTREACH_BACKOFF_SCHEDULE", "5m,soon,2h")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unparseable schedule entry")
	}

	t.Setenv("OUTREACH_BACKOFF_SCHEDULE", "5m,-30m")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative schedule entry")
	}
}

func TestLoadParsesWeekdays(t *testing.T) {
	setRequired(t)
	t.Setenv("OUTREACH_WINDOW_DAYS", "Monday,wed,FRI")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	days := cfg.GetWindowDays()
	if !days[time.Monday] || !days[time.Wednesday] || !days[time.Friday] {
		t.Fatalf("window days = %v", days)
	}
	if days[time.Tuesday] || days[time.Saturday] {
		t.Fatalf("unrequested days present: %v", days)
	}

	t.Setenv("OUTREACH_WINDOW_DAYS", "Mon,Funday")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown weekday")
	}
}

func TestLoadRejectsInvalidWindow(t *testing.T) {
	setRequired(t)
	t.Setenv("OUTREACH_WINDOW_START_HOUR", "18")
	t.Setenv("OUTREACH_WINDOW_END_HOUR", "9")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for inverted window hours")
	}
}

func TestLoadRejectsNonIncreasingOffsets(t *testing.T) {
	setRequired(t)
	t.Setenv("OUTREACH_FOLLOWUP_1_OFFSET", "240h")
	t.Setenv("OUTREACH_FOLLOWUP_2_OFFSET", "120h")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-increasing follow-up offsets")
	}
}

func TestLoadCORSWildcardForcesAllowAll(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")
	if _, err := Load(); err == nil {
		t.Fatalf("wildcard origins with credentials must be rejected")
	}

	t.Setenv("CORS_ALLOW_CREDENTIALS", "false")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.GetCORSAllowAll() {
		t.Fatalf("wildcard origin must force allow-all")
	}
}

func TestEmailEnabledRequiresFromAddress(t *testing.T) {
	setRequired(t)
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("EMAIL_FROM_ADDRESS", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when email is enabled without a from address")
	}

	t.Setenv("EMAIL_FROM_ADDRESS", "outreach@example.com")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.GetEmailEnabled() {
		t.Fatalf("email must be enabled with SMTP_HOST and a from address")
	}
}
