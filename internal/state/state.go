// Package state records the outcome of each target's last build
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jointcomp/jointcomp/pkg/logger"
	"github.com/jointcomp/jointcomp/pkg/types"
)

// StateDir holds one JSON file per target, relative to the output directory
const StateDir = ".jointcomp/state"

// BuildStatus is the status of a target's last build
type BuildStatus string

const (
	BuildStatusIdle      BuildStatus = "idle"
	BuildStatusBuilding  BuildStatus = "building"
	BuildStatusSucceeded BuildStatus = "succeeded"
	BuildStatusFailed    BuildStatus = "failed"
)

// TargetState is the persisted record of one target
type TargetState struct {
	TargetName    string           `json:"targetName"`
	Type          types.TargetType `json:"type"`
	Source        string           `json:"source"`
	BuildStatus   BuildStatus      `json:"buildStatus"`
	RunID         string           `json:"runId,omitempty"`
	LastBuildTime time.Time        `json:"lastBuildTime"`
	BuildCount    int              `json:"buildCount"`
	FailureCount  int              `json:"failureCount"`
	LastError     string           `json:"lastError,omitempty"`
	BuildDuration time.Duration    `json:"buildDuration,omitempty"`
	Artifacts     []string         `json:"artifacts,omitempty"`
}

// Outcome is what a finished build reports to the manager
type Outcome struct {
	RunID     string
	Duration  time.Duration
	Artifacts []string
	Err       error
}

// StateManager handles persistent state files
type StateManager struct {
	stateDir string
	logger   logger.Logger
	mu       sync.RWMutex
	states   map[string]*TargetState
}

// NewStateManager creates a state manager below outDir
func NewStateManager(outDir string, log logger.Logger) *StateManager {
	if log == nil {
		log = logger.Discard()
	}
	return &StateManager{
		stateDir: filepath.Join(outDir, StateDir),
		logger:   log,
		states:   make(map[string]*TargetState),
	}
}

// MarkBuilding records that a build of the target started
func (sm *StateManager) MarkBuilding(name string, ttype types.TargetType, source, runID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state := sm.load(name)
	state.Type = ttype
	state.Source = source
	state.BuildStatus = BuildStatusBuilding
	state.RunID = runID
	return sm.saveStateFile(state)
}

// RecordOutcome stores the result of a finished build
func (sm *StateManager) RecordOutcome(name string, out Outcome) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state := sm.load(name)
	state.RunID = out.RunID
	state.LastBuildTime = time.Now()
	state.BuildDuration = out.Duration
	if out.Err != nil {
		state.BuildStatus = BuildStatusFailed
		state.FailureCount++
		state.LastError = out.Err.Error()
	} else {
		state.BuildStatus = BuildStatusSucceeded
		state.BuildCount++
		state.LastError = ""
		state.Artifacts = out.Artifacts
	}
	return sm.saveStateFile(state)
}

// ReadState reads the state for a target
func (sm *StateManager) ReadState(name string) (*TargetState, error) {
	sm.mu.RLock()
	if state, ok := sm.states[name]; ok {
		sm.mu.RUnlock()
		return state, nil
	}
	sm.mu.RUnlock()

	return sm.loadStateFile(name)
}

// RemoveState removes the state for a target
func (sm *StateManager) RemoveState(name string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.states, name)

	if err := os.Remove(sm.getStateFilePath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// DiscoverStates returns every recorded target, sorted by name
func (sm *StateManager) DiscoverStates() ([]*TargetState, error) {
	files, err := os.ReadDir(sm.stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	var states []*TargetState
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}

		name := strings.TrimSuffix(file.Name(), ".json")
		state, err := sm.loadStateFile(name)
		if err != nil {
			sm.logger.Warn("Failed to load state file",
				logger.WithField("target", name),
				logger.WithField("error", err))
			continue
		}
		states = append(states, state)
	}

	sort.Slice(states, func(i, j int) bool { return states[i].TargetName < states[j].TargetName })
	return states, nil
}

// load returns the cached state, then the file, then a fresh record.
// Callers hold the write lock.
func (sm *StateManager) load(name string) *TargetState {
	if state, ok := sm.states[name]; ok {
		return state
	}
	state, err := sm.loadStateFile(name)
	if err != nil {
		state = &TargetState{TargetName: name, BuildStatus: BuildStatusIdle}
	}
	sm.states[name] = state
	return state
}

func (sm *StateManager) getStateFilePath(name string) string {
	return filepath.Join(sm.stateDir, name+".json")
}

func (sm *StateManager) loadStateFile(name string) (*TargetState, error) {
	data, err := os.ReadFile(sm.getStateFilePath(name))
	if err != nil {
		return nil, err
	}

	var state TargetState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &state, nil
}

func (sm *StateManager) saveStateFile(state *TargetState) error {
	if err := os.MkdirAll(sm.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write atomically
	stateFile := sm.getStateFilePath(state.TargetName)
	tempFile := stateFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tempFile, stateFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}
