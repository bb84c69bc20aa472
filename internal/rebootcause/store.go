package rebootcause

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio/v2"

	"github.com/autopeer-io/platformctl/internal/platform"
)

// Store persists reboot causes across invocations: the most recent fetch
// and the accumulated history, oldest first.
type Store interface {
	// Latest returns the causes recorded by the most recent fetch.
	Latest() ([]platform.Cause, error)

	// History returns every cause ever recorded, oldest first.
	History() ([]platform.Cause, error)

	// Update records a fresh fetch: it replaces the latest set and appends
	// it to the history.
	Update(latest []platform.Cause) error
}

// fileStore keeps the cause state in one JSON file, written atomically so a
// crash mid-update never loses the history.
type fileStore struct {
	path string
}

type storeState struct {
	Latest  []platform.Cause `json:"latest"`
	History []platform.Cause `json:"history"`
}

// NewFileStore returns a Store backed by the JSON file at path.
func NewFileStore(path string) Store {
	return &fileStore{path: path}
}

func (s *fileStore) load() (storeState, error) {
	var st storeState
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("reading reboot-cause store: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("decoding reboot-cause store %s: %w", s.path, err)
	}
	return st, nil
}

func (s *fileStore) Latest() ([]platform.Cause, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	return st.Latest, nil
}

func (s *fileStore) History() ([]platform.Cause, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	return st.History, nil
}

func (s *fileStore) Update(latest []platform.Cause) error {
	st, err := s.load()
	if err != nil {
		return err
	}
	st.Latest = latest
	st.History = append(st.History, latest...)

	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing reboot-cause store: %w", err)
	}
	return nil
}
