package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// Store implements ports.FlowLoader plus saving using the local
// filesystem. Flows are YAML documents, one file per flow id, which makes
// them diffable and editable outside the workspace.
type Store struct {
	BasePath string
}

// New creates a Store with the given base path. If basePath is empty, it
// defaults to ".canvasflow/flows".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".canvasflow", "flows")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.BasePath, id+".yaml")
}

// LoadFlow reads one flow document.
func (s *Store) LoadFlow(ctx context.Context, id string) (*domain.Flow, error) {
	if id == "" {
		return nil, fmt.Errorf("flow id cannot be empty")
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrFlowNotFound
		}
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}

	var flow domain.Flow
	if err := yaml.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow: %w", err)
	}
	if flow.ID == "" {
		flow.ID = id
	}
	return &flow, nil
}

// SaveFlow persists the flow document atomically: write to a temp file in
// the same directory, fsync, then rename over the destination.
func (s *Store) SaveFlow(ctx context.Context, flow *domain.Flow) error {
	if flow == nil || flow.ID == "" {
		return fmt.Errorf("flow with an id is required")
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure flow directory: %w", err)
	}

	data, err := yaml.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+flow.ID+"-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := s.path(flow.ID)
	// On Windows, os.Rename fails if dest exists. Delete-then-rename has a
	// tiny gap but never leaves a partial file.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing flow file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to flow file: %w", err)
	}
	return nil
}

// DeleteFlow removes the flow file. Missing files are not an error.
func (s *Store) DeleteFlow(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("flow id cannot be empty")
	}
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete flow file: %w", err)
	}
	return nil
}

// ListFlows returns the ids of all stored flows.
func (s *Store) ListFlows(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		name := entry.Name()
		ids = append(ids, name[:len(name)-len(".yaml")])
	}
	return ids, nil
}
