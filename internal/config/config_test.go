package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig failed without a config file: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("server.address default: %q", cfg.Server.Address)
	}
	if cfg.Data.Dir == "" || cfg.Data.SchemaVersion == 0 {
		t.Errorf("data defaults missing: %+v", cfg.Data)
	}
	if cfg.JWT.Expiration != 12*time.Hour {
		t.Errorf("jwt.expiration default: %v", cfg.JWT.Expiration)
	}
	if cfg.Export.Enabled || cfg.Seed.Enabled {
		t.Error("export and seed must default to off")
	}
}
