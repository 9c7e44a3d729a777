package config

import (
	"testing"
)

func TestLoadFromBytesDefaults(t *testing.T) {
	c, err := LoadFromBytes([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}

	if c.Port != 8790 {
		t.Errorf("Port = %d, want 8790", c.Port)
	}
	if c.Database.SQLitePath != "./data/lifeos.db" {
		t.Errorf("SQLitePath = %q", c.Database.SQLitePath)
	}
	if c.Limits.MaxIterations != 5 {
		t.Errorf("MaxIterations = %d, want 5", c.Limits.MaxIterations)
	}
	if c.Limits.ProviderTimeoutSeconds != 60 {
		t.Errorf("ProviderTimeoutSeconds = %d, want 60", c.Limits.ProviderTimeoutSeconds)
	}
	if c.Maintenance.Cron != "0 4 * * *" {
		t.Errorf("Maintenance.Cron = %q", c.Maintenance.Cron)
	}
}

func TestLoadFromBytesExpandsEnv(t *testing.T) {
	t.Setenv("TEST_LIFEOS_PASSWORD", "sekrit")

	c, err := LoadFromBytes([]byte("auth:\n  password: ${TEST_LIFEOS_PASSWORD}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Auth.Password != "sekrit" {
		t.Errorf("Password = %q, want sekrit", c.Auth.Password)
	}
}

func TestLoadFromBytesInvalidYAML(t *testing.T) {
	if _, err := LoadFromBytes([]byte("port: [unclosed")); err == nil {
		t.Error("expected an error for invalid YAML")
	}
}
