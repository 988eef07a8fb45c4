package bundle

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/crxforge/crxforge/internal/types"
)

// StoredFile is a project file row as the file store keeps it. Binary assets
// are stored base64-encoded and decoded during load.
type StoredFile struct {
	Path     string
	Content  []byte
	IsBinary bool
}

// FileSource reads project files and extension identities from the external
// project store. Implemented by the sqlite store; read-only from the
// loader's perspective.
type FileSource interface {
	ProjectFiles(ctx context.Context, projectID string) ([]StoredFile, error)
	ExtensionIdentity(ctx context.Context, projectID string) (*types.ExtensionIdentity, error)
}

// Loader assembles extension bundles from a FileSource.
type Loader struct {
	source FileSource
}

// NewLoader creates a bundle loader over a file source.
func NewLoader(source FileSource) *Loader {
	return &Loader{source: source}
}

// Load reads the project's non-test files, decodes binary assets, parses the
// manifest, and attaches any stored extension identity. Returns a
// *types.BundleError when the project has no manifest.json or the manifest
// is invalid.
func (l *Loader) Load(ctx context.Context, projectID string) (*Bundle, error) {
	stored, err := l.source.ProjectFiles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project files: %w", err)
	}

	b := &Bundle{ProjectID: projectID}
	for _, f := range stored {
		if IsTestArtifact(f.Path) {
			continue
		}
		content := f.Content
		if f.IsBinary {
			decoded, err := base64.StdEncoding.DecodeString(string(f.Content))
			if err != nil {
				return nil, &types.BundleError{
					ProjectID: projectID,
					Reason:    fmt.Sprintf("binary asset %s is not valid base64", f.Path),
					Err:       err,
				}
			}
			content = decoded
		}
		b.Files = append(b.Files, File{Path: f.Path, Content: content, IsBinary: f.IsBinary})
	}

	manifest := b.File(ManifestFile)
	if manifest == nil {
		return nil, &types.BundleError{ProjectID: projectID, Reason: "manifest.json not found"}
	}

	b.Manifest, err = ParseManifest(manifest.Content)
	if err != nil {
		return nil, &types.BundleError{ProjectID: projectID, Reason: "invalid manifest", Err: err}
	}

	// Identity is optional: without it, test scripts fall back to simulated
	// interaction instructions instead of direct page URLs.
	identity, err := l.source.ExtensionIdentity(ctx, projectID)
	if err == nil {
		b.Identity = identity
	}

	return b, nil
}
