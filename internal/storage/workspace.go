package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// WorkspaceFileName is the entity snapshot inside the data directory.
const WorkspaceFileName = "workspace.yaml"

// WorkspaceProvider loads the entity snapshot the engine scores.
type WorkspaceProvider interface {
	LoadWorkspace() (*models.Workspace, error)
	SaveWorkspace(ws *models.Workspace) error
}

type fileWorkspaceProvider struct {
	basePath string
}

// NewWorkspaceProvider creates a WorkspaceProvider backed by workspace.yaml
// in basePath.
func NewWorkspaceProvider(basePath string) WorkspaceProvider {
	return &fileWorkspaceProvider{basePath: basePath}
}

func (p *fileWorkspaceProvider) filePath() string {
	return filepath.Join(p.basePath, WorkspaceFileName)
}

// LoadWorkspace reads and validates workspace.yaml. A missing file is an
// empty workspace.
func (p *fileWorkspaceProvider) LoadWorkspace() (*models.Workspace, error) {
	ws := &models.Workspace{SchemaVersion: models.WorkspaceSchemaVersion}

	data, err := os.ReadFile(p.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return ws, nil
		}
		return nil, fmt.Errorf("reading %s: %w", WorkspaceFileName, err)
	}
	if err := yaml.Unmarshal(data, ws); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", WorkspaceFileName, err)
	}
	if ws.SchemaVersion == 0 {
		ws.SchemaVersion = models.WorkspaceSchemaVersion
	}
	if err := ws.Validate(); err != nil {
		return nil, err
	}
	return ws, nil
}

// SaveWorkspace writes ws to workspace.yaml.
func (p *fileWorkspaceProvider) SaveWorkspace(ws *models.Workspace) error {
	if err := os.MkdirAll(p.basePath, 0o755); err != nil {
		return fmt.Errorf("creating workspace directory: %w", err)
	}
	data, err := yaml.Marshal(ws)
	if err != nil {
		return fmt.Errorf("marshalling workspace: %w", err)
	}
	if err := os.WriteFile(p.filePath(), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", WorkspaceFileName, err)
	}
	return nil
}
