// Package file provides file-based persistence for flows, conversation states and delayed resumptions.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/chatflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root             string
	flowRepo         *FlowRepository
	conversationRepo *ConversationRepository
	delayRepo        *DelayRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:             cleanRoot,
		flowRepo:         NewFlowRepository(cleanRoot),
		conversationRepo: NewConversationRepository(cleanRoot),
		delayRepo:        NewDelayRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) FlowRepository() persistence.FlowRepository {
	return fp.flowRepo
}

func (fp *Persistence) ConversationRepository() persistence.ConversationRepository {
	return fp.conversationRepo
}

func (fp *Persistence) DelayRepository() persistence.DelayRepository {
	return fp.delayRepo
}

// validateID validates that an identifier is safe to use as a file name.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", persistence.ErrInvalidID)
	}

	// Check for path traversal attempts
	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q contains invalid characters", persistence.ErrInvalidID, id)
	}

	return nil
}

func recordPath(root, dir, id string) string {
	return filepath.Clean(filepath.Join(root, dir, id+".json"))
}

func writeRecord(root, dir, id string, value any) error {
	err := os.MkdirAll(filepath.Join(root, dir), 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	// Write to a sibling file first so a crash never leaves a torn record.
	target := recordPath(root, dir, id)
	tmp := target + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}

	return os.Rename(tmp, target)
}

// readRecord returns os.ErrNotExist (wrapped) when the record is missing.
func readRecord(root, dir, id string, value any) error {
	body, err := os.ReadFile(recordPath(root, dir, id))
	if err != nil {
		return err
	}

	err = json.Unmarshal(body, value)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}

	return nil
}

func removeRecord(root, dir, id string) error {
	err := os.Remove(recordPath(root, dir, id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// readAll decodes every record of dir through decode. A missing directory yields nothing.
func readAll(root, dir string, decode func(body []byte) error) error {
	entries, err := os.ReadDir(filepath.Join(root, dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to read %s directory: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		body, err := os.ReadFile(filepath.Join(root, dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		err = decode(body)
		if err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", entry.Name(), err)
		}
	}

	return nil
}
