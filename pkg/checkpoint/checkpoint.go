package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"tweetcollector/pkg/logger"
	"tweetcollector/pkg/models"
)

// Version is the current checkpoint file format
const Version = 1

// Checkpoint is the state of a collection run
type Checkpoint struct {
	Date      string                    `json:"date"`
	RunID     string                    `json:"run_id"`
	Phase     int                       `json:"phase"`
	Outcomes  map[int64]*models.Outcome `json:"outcomes"`
	Deferred  []int64                   `json:"deferred,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
	Version   int                       `json:"version"`
}

// Manager handles checkpoint operations for one run date
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a checkpoint manager for date. An empty dir selects the
// platform data directory.
func NewManager(dir, date string, log logger.Logger) (*Manager, error) {
	if dir == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "checkpoints")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	if log == nil {
		log = logger.GetLogger()
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, fmt.Sprintf("run-%s.checkpoint.json", date)),
		logger:         log,
	}, nil
}

// Path returns the checkpoint file path
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates and saves a new checkpoint
func (m *Manager) Create(date, runID string) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		Date:      date,
		RunID:     runID,
		Phase:     1,
		Outcomes:  make(map[int64]*models.Outcome),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   Version,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"run_id": runID,
		"path":   m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Version != Version {
		return nil, fmt.Errorf("unsupported checkpoint version %d", checkpoint.Version)
	}
	if checkpoint.Outcomes == nil {
		checkpoint.Outcomes = make(map[int64]*models.Outcome)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_id":     checkpoint.RunID,
		"finished":   len(checkpoint.Outcomes),
		"phase":      checkpoint.Phase,
		"updated_at": checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"run_id":   checkpoint.RunID,
		"finished": len(checkpoint.Outcomes),
		"phase":    checkpoint.Phase,
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// RecordOutcome stores a finished user's outcome and saves the checkpoint
func (m *Manager) RecordOutcome(checkpoint *Checkpoint, outcome models.Outcome) error {
	checkpoint.Outcomes[outcome.UserID] = &outcome
	return m.Save(checkpoint)
}

// RecordDeferred stores the users waiting for the second pass and moves the
// checkpoint to that phase
func (m *Manager) RecordDeferred(checkpoint *Checkpoint, userIDs []int64) error {
	checkpoint.Phase = 2
	checkpoint.Deferred = append([]int64(nil), userIDs...)
	return m.Save(checkpoint)
}

// Finished returns the recorded outcome of a user whose state is terminal
func (checkpoint *Checkpoint) Finished(userID int64) (*models.Outcome, bool) {
	o, ok := checkpoint.Outcomes[userID]
	if !ok || !o.State.Terminal() {
		return nil, false
	}
	return o, true
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "tweetcollector")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "tweetcollector")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "tweetcollector")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "tweetcollector")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
