package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	c := Load()

	if c.ServiceName != "clob-matching" {
		t.Fatalf("ServiceName = %q, want clob-matching", c.ServiceName)
	}
	if c.HTTPPort != 8082 {
		t.Fatalf("HTTPPort = %d, want 8082", c.HTTPPort)
	}
	if c.ConsumerGroup != "matching-group" {
		t.Fatalf("ConsumerGroup = %q, want matching-group", c.ConsumerGroup)
	}
	if c.Tracing.Enabled {
		t.Fatal("expected tracing disabled by default")
	}
	if c.ExpirySweepCron != "* * * * *" {
		t.Fatalf("ExpirySweepCron = %q, want every-minute default", c.ExpirySweepCron)
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("SERVICE_NAME", "clob-matching-2")
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("TRACING_SAMPLE_RATE", "0.25")
	t.Setenv("EXPIRY_SWEEP_CRON", "*/5 * * * *")

	c := Load()

	if c.ServiceName != "clob-matching-2" {
		t.Fatalf("ServiceName = %q, want override", c.ServiceName)
	}
	if c.HTTPPort != 9999 {
		t.Fatalf("HTTPPort = %d, want 9999", c.HTTPPort)
	}
	if !c.Tracing.Enabled {
		t.Fatal("expected tracing enabled from env")
	}
	if c.Tracing.SampleRate != 0.25 {
		t.Fatalf("SampleRate = %v, want 0.25", c.Tracing.SampleRate)
	}
	if c.ExpirySweepCron != "*/5 * * * *" {
		t.Fatalf("ExpirySweepCron = %q, want override", c.ExpirySweepCron)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-number")
	c := Load()
	if c.HTTPPort != 8082 {
		t.Fatalf("expected fallback to default on unparsable HTTP_PORT, got %d", c.HTTPPort)
	}
}
