package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

const pidFileName = "patchworkd.pid"

// PidFile records the running daemon's identity so the CLI can answer
// status queries without talking to the process.
type PidFile struct {
	path string
}

// PidEntry is the on-disk pidfile payload.
type PidEntry struct {
	PID       int    `json:"pid"`
	StartedAt int64  `json:"started_at"`
	Version   string `json:"version"`
}

// NewPidFile creates a pidfile handle under the data directory.
func NewPidFile(dataDir string) *PidFile {
	return &PidFile{path: filepath.Join(dataDir, pidFileName)}
}

// Register writes the current process identity. Write + rename keeps a
// concurrent status read from seeing a torn file.
func (p *PidFile) Register(version string) error {
	entry := PidEntry{
		PID:       os.Getpid(),
		StartedAt: time.Now().Unix(),
		Version:   version,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	tmpPath := fmt.Sprintf("%s.%d.tmp", p.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, p.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Status returns the recorded entry and whether that process is still
// alive. A missing pidfile means no daemon.
func (p *PidFile) Status() (*PidEntry, bool, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var entry PidEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, err
	}
	alive, err := process.PidExists(int32(entry.PID))
	if err != nil {
		return &entry, false, nil
	}
	return &entry, alive, nil
}

// Clear removes the pidfile.
func (p *PidFile) Clear() error {
	err := os.Remove(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
