package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"time"
)

// Fingerprint returns the hex-encoded SHA-256 digest of the config's
// canonical JSON encoding. encoding/json marshals struct fields in their
// declaration order, which combined with map key sorting for map[string]T
// values gives a stable digest across processes — the same property the
// original daemon relies on (calculate_fingerprint: sha256 of
// serde_json::to_string(config)).
//
// The daemon computes this once at startup and serves it over IPC so a
// client can detect whether its on-disk config still matches the running
// daemon before reusing the connection (spec §9, config drift detection).
func Fingerprint(cfg *Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// FileFingerprint additionally reports the config file's mtime, for CLI
// diagnostics only (the "mcp status" staleness report) — the daemon
// itself only ever compares the content hash from Fingerprint, since mtime
// can change without content changing (touch, checkout, etc).
type FileFingerprint struct {
	Hash  string
	Mtime time.Time
}

// ComputeFileFingerprint loads path, validates it the same way Load does,
// and reports both its content hash and its mtime.
func ComputeFileFingerprint(path string) (*FileFingerprint, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	hash, err := Fingerprint(cfg)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &FileFingerprint{Hash: hash, Mtime: info.ModTime()}, nil
}
