package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
)

const snapshotVersion = "1.0.0"

// RunRecord is one run with its full audit log.
type RunRecord struct {
	Run    model.Run        `json:"run"`
	Events []model.RunEvent `json:"events"`
}

// Snapshot is the top-level structure for export and import of shop data:
// configuration, the cut plan and every recorded run.
type Snapshot struct {
	Version   string              `json:"version"`
	CreatedAt string              `json:"created_at"`
	Config    model.AppConfig     `json:"config"`
	Items     []model.CutPlanItem `json:"items"`
	Runs      []RunRecord         `json:"runs"`
}

// NewSnapshot stamps a snapshot with the current version and time.
func NewSnapshot(config model.AppConfig, items []model.CutPlanItem, runs []RunRecord) Snapshot {
	return Snapshot{
		Version:   snapshotVersion,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Config:    config,
		Items:     items,
		Runs:      runs,
	}
}

// ExportSnapshot writes snap as indented JSON to exportPath.
func ExportSnapshot(exportPath string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	if err := os.WriteFile(exportPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	return nil
}

// ImportSnapshot reads a snapshot file. The caller applies its contents.
func ImportSnapshot(importPath string) (Snapshot, error) {
	data, err := os.ReadFile(importPath)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse snapshot file: %w", err)
	}
	if snap.Version == "" {
		return Snapshot{}, fmt.Errorf("invalid snapshot file: missing version field")
	}
	for _, rec := range snap.Runs {
		for _, ev := range rec.Events {
			if ev.RunID != rec.Run.ID {
				return Snapshot{}, fmt.Errorf("invalid snapshot file: event %s does not belong to run %s", ev.ID, rec.Run.ID)
			}
		}
	}
	return snap, nil
}
