package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	natomic "github.com/natefinch/atomic"

	"waldb/internal/logger"
)

// statusSnapshot is the JSON shape written to status.json, a point-in-time
// view of a logger.Status plus when it was taken.
type statusSnapshot struct {
	CheckedAt              time.Time `json:"checked_at"`
	InputLockCtr           int64     `json:"input_lock_ctr"`
	OutputConditionLockCtr int64     `json:"output_condition_lock_ctr"`
	SwapCtr                int64     `json:"swap_ctr"`
	NumLogFiles            int       `json:"num_log_files"`
	LastLSN                uint64    `json:"last_lsn"`
	FsyncedLSN             uint64    `json:"fsynced_lsn"`
}

func newStatusSnapshot(st logger.Status, checkedAt time.Time) statusSnapshot {
	return statusSnapshot{
		CheckedAt:              checkedAt,
		InputLockCtr:           st.InputLockCtr,
		OutputConditionLockCtr: st.OutputConditionLockCtr,
		SwapCtr:                st.SwapCtr,
		NumLogFiles:            st.NumLogFiles,
		LastLSN:                uint64(st.LastLSN),
		FsyncedLSN:             uint64(st.FsyncedLSN),
	}
}

// writeStatusFile atomically replaces dir/status.json with snap, so a
// reader never observes a half-written file.
func writeStatusFile(dir string, snap statusSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, "status.json")
	if err := natomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
