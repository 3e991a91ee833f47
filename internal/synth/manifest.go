package synth

import (
	"encoding/json"
	"fmt"
)

// ManifestFile is the assembly index file name.
const ManifestFile = "manifest.json"

// ManifestVersion is bumped when the manifest layout changes.
const ManifestVersion = "1"

// Manifest indexes the files of one assembly.
type Manifest struct {
	Version  string           `json:"version"`
	Stack    string           `json:"stack"`
	Template string           `json:"template"`
	Format   string           `json:"format"`
	Asset    ManifestAsset    `json:"asset"`
	Schedule ManifestSchedule `json:"schedule"`
	Workflow ManifestWorkflow `json:"workflow"`
}

// ManifestAsset locates the handler archive locally and in the staging bucket.
type ManifestAsset struct {
	File   string   `json:"file"`
	Hash   string   `json:"hash"`
	Bucket string   `json:"bucket"`
	Key    string   `json:"key"`
	Files  []string `json:"files"`
}

type ManifestSchedule struct {
	Rule       string `json:"rule"`
	Expression string `json:"expression"`
	Enabled    bool   `json:"enabled"`
}

type ManifestWorkflow struct {
	Name           string   `json:"name"`
	States         []string `json:"states"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

// Bytes renders the manifest as indented JSON with a trailing newline.
func (m *Manifest) Bytes() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// ParseManifest decodes a manifest written by Bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ManifestFile, err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %q", m.Version)
	}
	return &m, nil
}
