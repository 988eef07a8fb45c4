package bundle

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTestArtifact(t *testing.T) {
	assert.True(t, IsTestArtifact("tests/popup.test.js"))
	assert.True(t, IsTestArtifact("tests/helpers.js"))
	assert.True(t, IsTestArtifact("src/popup.test.js"))
	assert.False(t, IsTestArtifact("manifest.json"))
	assert.False(t, IsTestArtifact("src/tests.js"))
	assert.False(t, IsTestArtifact("contest/entry.js"))
}

func TestArchive(t *testing.T) {
	b := &Bundle{
		ProjectID: "proj-1",
		Files: []File{
			{Path: "manifest.json", Content: []byte(`{"name":"x"}`)},
			{Path: "icons/icon.png", Content: []byte{0x89, 0x50, 0x4e, 0x47}, IsBinary: true},
		},
	}

	data, err := b.Archive()
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	got := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		got[f.Name] = content
	}

	assert.Equal(t, []byte(`{"name":"x"}`), got["manifest.json"])
	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, got["icons/icon.png"])
}

func TestBundleFile(t *testing.T) {
	b := &Bundle{Files: []File{{Path: "popup.html", Content: []byte("<html>")}}}

	require.NotNil(t, b.File("popup.html"))
	assert.Equal(t, []byte("<html>"), b.File("popup.html").Content)
	assert.Nil(t, b.File("missing.html"))
}
