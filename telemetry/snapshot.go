package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the state of a whole population at one tick, for
// inspection or for seeding later analyses.
type Snapshot struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	RNGSeed int64  `json:"rng_seed"`

	ArenaLength float64 `json:"arena_length"`
	ArenaWidth  float64 `json:"arena_width"`
	Field       string  `json:"field"`

	Tick int64   `json:"tick"`
	Time float64 `json:"time"`

	Larvae []LarvaState `json:"larvae"`
}

// LarvaState holds one larva's observable state.
type LarvaState struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	Seed  int64  `json:"seed"`

	State        string  `json:"state"`
	Halted       bool    `json:"halted,omitempty"`
	Error        string  `json:"error,omitempty"`
	HeadX        float64 `json:"head_x"`
	HeadY        float64 `json:"head_y"`
	JointX       float64 `json:"joint_x"`
	JointY       float64 `json:"joint_y"`
	VelX         float64 `json:"vel_x"`
	VelY         float64 `json:"vel_y"`
	CastDir      int     `json:"cast_dir"`
	RunStartTime float64 `json:"run_start_time"`

	// Perceptions is the retained history, oldest first.
	Perceptions []float64 `json:"perceptions"`
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.json", snapshot.Tick))

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
