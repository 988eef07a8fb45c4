// Package bundle loads a project's extension files into an in-memory bundle
// ready for upload to the remote browser provider. Test artifacts are never
// part of a bundle; the browser only ever sees the extension itself.
package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/crxforge/crxforge/internal/types"
)

// File is one named file inside an extension bundle. Path is POSIX-relative.
type File struct {
	Path     string `json:"path"`
	Content  []byte `json:"content"`
	IsBinary bool   `json:"isBinary"`
}

// Bundle is the complete set of extension files for one project, plus any
// previously captured extension identity and manifest-derived page paths.
type Bundle struct {
	ProjectID string
	Files     []File
	Manifest  *Manifest
	Identity  *types.ExtensionIdentity // nil when never captured
}

// ManifestFile is the only mandatory path in a bundle.
const ManifestFile = "manifest.json"

// testArtifactPrefix marks paths that belong to the test harness, not the
// extension. They are excluded before the bundle is constructed.
const testArtifactPrefix = "tests/"

// IsTestArtifact reports whether a project file path is a test artifact.
func IsTestArtifact(path string) bool {
	return strings.HasPrefix(path, testArtifactPrefix) || strings.HasSuffix(path, ".test.js")
}

// Archive zips the bundle's files for upload to the provider.
func (b *Bundle) Archive() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range b.Files {
		w, err := zw.Create(f.Path)
		if err != nil {
			return nil, fmt.Errorf("archive %s: %w", f.Path, err)
		}
		if _, err := w.Write(f.Content); err != nil {
			return nil, fmt.Errorf("archive %s: %w", f.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// File returns the file at path, or nil if absent.
func (b *Bundle) File(path string) *File {
	for i := range b.Files {
		if b.Files[i].Path == path {
			return &b.Files[i]
		}
	}
	return nil
}
