package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dhaneshkmd/DailyPiMart.Store/internal/models"
)

// sessionFileName is the fixed key the session is persisted under.
const sessionFileName = "pi_user.json"

// Storage persists the session as a single JSON entry on local disk.
// Absence or corruption is treated as "no session", never a fatal error.
type Storage struct {
	path string
}

// NewStorage creates session storage rooted at dir
func NewStorage(dir string) *Storage {
	return &Storage{path: filepath.Join(dir, sessionFileName)}
}

// Save persists the session
func (st *Storage) Save(s *models.Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(st.path, payload, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Load reads the persisted session. A missing entry returns (nil, nil);
// a corrupt entry is deleted and also returns (nil, nil).
func (st *Storage) Load() (*models.Session, error) {
	payload, err := os.ReadFile(st.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(payload, &s); err != nil {
		_ = os.Remove(st.path)
		return nil, nil
	}
	return &s, nil
}

// Clear deletes the persisted session
func (st *Storage) Clear() error {
	err := os.Remove(st.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
