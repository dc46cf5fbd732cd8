package manifest

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/stagehand/internal/ctxlog"
	"github.com/vk/stagehand/internal/fsutil"
)

// FileLoader loads manifests from files or directories, dispatching on file
// extension: .hcl files go through the HCL front-end, .yaml/.yml through the
// YAML front-end.
type FileLoader struct {
	hcl  *hclLoader
	yaml *yamlLoader
}

// NewLoader creates a loader accepting both manifest formats.
func NewLoader() *FileLoader {
	return &FileLoader{hcl: newHCLLoader(), yaml: &yamlLoader{}}
}

// Load implements Loader.
func (l *FileLoader) Load(ctx context.Context, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, path := range paths {
		found, err := fsutil.FindFilesByExtensions(path, ".hcl", ".yaml", ".yml")
		if err != nil {
			return nil, fmt.Errorf("discovering manifests under %s: %w", path, err)
		}
		files = append(files, found...)
	}
	logger.Debug("Discovered manifest files.", "count", len(files))
	if len(files) == 0 {
		return nil, fmt.Errorf("no manifest files found under %s", strings.Join(paths, ", "))
	}

	model := &Model{}
	for _, file := range files {
		var (
			part *Model
			err  error
		)
		if strings.HasSuffix(file, ".hcl") {
			part, err = l.hcl.loadFile(ctx, file)
		} else {
			part, err = l.yaml.loadFile(ctx, file)
		}
		if err != nil {
			return nil, err
		}
		model.merge(part)
	}

	logger.Debug("Manifest loading complete.",
		"tasks", len(model.Tasks), "groups", len(model.Groups))
	return model, nil
}
