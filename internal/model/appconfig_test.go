package model

import (
	"testing"
	"time"
)

func TestDefaultAppConfig(t *testing.T) {
	cfg := DefaultAppConfig()

	if cfg.StockLengthMM != 12000 {
		t.Errorf("expected 12000 mm stock, got %f", cfg.StockLengthMM)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected log level info, got %s", cfg.LogLevel)
	}
	if len(cfg.Machines) == 0 {
		t.Error("expected a default machine roster")
	}
	if cfg.IdleTimeout() != 30*time.Minute {
		t.Errorf("expected 30m idle timeout, got %v", cfg.IdleTimeout())
	}
}

func TestFindMachine(t *testing.T) {
	cfg := DefaultAppConfig()

	m := cfg.FindMachine("shear-1")
	if m == nil {
		t.Fatal("expected to find shear-1")
	}
	if m.Model != "SHEAR-CM60" {
		t.Errorf("expected SHEAR-CM60, got %s", m.Model)
	}
	if cfg.FindMachine("nope") != nil {
		t.Error("expected nil for unknown machine")
	}

	ids := cfg.MachineIDs()
	if len(ids) != len(cfg.Machines) || ids[0] != "shear-1" {
		t.Errorf("unexpected machine IDs: %v", ids)
	}
}
