package bundle

import (
	"context"
	"database/sql"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crxforge/crxforge/internal/types"
)

type fakeSource struct {
	files    []StoredFile
	identity *types.ExtensionIdentity
}

func (f *fakeSource) ProjectFiles(_ context.Context, _ string) ([]StoredFile, error) {
	return f.files, nil
}

func (f *fakeSource) ExtensionIdentity(_ context.Context, _ string) (*types.ExtensionIdentity, error) {
	if f.identity == nil {
		return nil, sql.ErrNoRows
	}
	return f.identity, nil
}

const validManifest = `{"name": "Demo", "version": "1.0", "manifest_version": 3, "action": {"default_popup": "popup.html"}}`

func TestLoad(t *testing.T) {
	source := &fakeSource{
		files: []StoredFile{
			{Path: "manifest.json", Content: []byte(validManifest)},
			{Path: "popup.html", Content: []byte("<html></html>")},
			{Path: "tests/popup.test.js", Content: []byte("test('x', () => {})")},
			{Path: "background.test.js", Content: []byte("test('y', () => {})")},
		},
		identity: &types.ExtensionIdentity{RuntimeID: "abcdefghijklmnop"},
	}

	b, err := NewLoader(source).Load(context.Background(), "proj-1")
	require.NoError(t, err)

	assert.Equal(t, "proj-1", b.ProjectID)
	assert.Len(t, b.Files, 2, "test artifacts must be excluded")
	assert.Nil(t, b.File("tests/popup.test.js"))
	assert.Nil(t, b.File("background.test.js"))
	require.NotNil(t, b.Manifest)
	assert.Equal(t, "popup.html", b.Manifest.PopupPath)
	require.NotNil(t, b.Identity)
	assert.Equal(t, "abcdefghijklmnop", b.Identity.RuntimeID)
}

func TestLoad_BinaryDecoding(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a}
	source := &fakeSource{files: []StoredFile{
		{Path: "manifest.json", Content: []byte(validManifest)},
		{Path: "icon.png", Content: []byte(base64.StdEncoding.EncodeToString(raw)), IsBinary: true},
	}}

	b, err := NewLoader(source).Load(context.Background(), "proj-1")
	require.NoError(t, err)

	icon := b.File("icon.png")
	require.NotNil(t, icon)
	assert.Equal(t, raw, icon.Content)
}

func TestLoad_InvalidBase64(t *testing.T) {
	source := &fakeSource{files: []StoredFile{
		{Path: "manifest.json", Content: []byte(validManifest)},
		{Path: "icon.png", Content: []byte("not base64 !!!"), IsBinary: true},
	}}

	_, err := NewLoader(source).Load(context.Background(), "proj-1")

	var bErr *types.BundleError
	require.ErrorAs(t, err, &bErr)
	assert.Contains(t, bErr.Reason, "icon.png")
}

func TestLoad_MissingManifest(t *testing.T) {
	source := &fakeSource{files: []StoredFile{
		{Path: "popup.html", Content: []byte("<html>")},
	}}

	_, err := NewLoader(source).Load(context.Background(), "proj-1")

	var bErr *types.BundleError
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, "proj-1", bErr.ProjectID)
	assert.Contains(t, bErr.Reason, "manifest.json not found")
}

func TestLoad_InvalidManifest(t *testing.T) {
	source := &fakeSource{files: []StoredFile{
		{Path: "manifest.json", Content: []byte(`{"version": "1.0"}`)},
	}}

	_, err := NewLoader(source).Load(context.Background(), "proj-1")

	var bErr *types.BundleError
	require.ErrorAs(t, err, &bErr)
	assert.Contains(t, bErr.Reason, "invalid manifest")
}

func TestLoad_NoStoredIdentity(t *testing.T) {
	source := &fakeSource{files: []StoredFile{
		{Path: "manifest.json", Content: []byte(validManifest)},
	}}

	b, err := NewLoader(source).Load(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Nil(t, b.Identity)
}
