package kbload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKB(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDirLoader_LoadsMarkdownAndTextInSourceOrder(t *testing.T) {
	root := t.TempDir()
	writeKB(t, root, "policies/vacation.md", "# Vacation Policy\n\n20 days per year.")
	writeKB(t, root, "faq.txt", "Q: How do I reset my password?")
	writeKB(t, root, "notes.json", `{"skipped": true}`)

	docs, err := NewDirLoader(root).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "faq.txt", docs[0].SourceID)
	assert.Equal(t, "policies/vacation.md", docs[1].SourceID)
	assert.Equal(t, "text/markdown", docs[1].ContentType)
	assert.Contains(t, docs[1].Text, "20 days per year")
}

func TestDirLoader_HonorsKBIgnore(t *testing.T) {
	root := t.TempDir()
	writeKB(t, root, ".kbignore", "drafts/\ninternal.md\n")
	writeKB(t, root, "public.md", "published")
	writeKB(t, root, "internal.md", "not published")
	writeKB(t, root, "drafts/wip.md", "work in progress")

	docs, err := NewDirLoader(root).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "public.md", docs[0].SourceID)
}

func TestDirLoader_SkipsBinaryContent(t *testing.T) {
	root := t.TempDir()
	writeKB(t, root, "real.md", "text content")
	require.NoError(t, os.WriteFile(filepath.Join(root, "fake.md"), []byte{0x00, 0x01, 0x02, 0xff}, 0o644))

	docs, err := NewDirLoader(root).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "real.md", docs[0].SourceID)
}

func TestDirLoader_CustomExtensions(t *testing.T) {
	root := t.TempDir()
	writeKB(t, root, "guide.rst", "restructured text")
	writeKB(t, root, "guide.md", "markdown")

	docs, err := NewDirLoader(root, WithExtensions(".rst")).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "guide.rst", docs[0].SourceID)
}

func TestDirLoader_MissingRoot(t *testing.T) {
	_, err := NewDirLoader(filepath.Join(t.TempDir(), "missing")).Load(context.Background())
	assert.Error(t, err)
}

func TestURLToDirectoryName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/acme/handbook.git", filepath.Join("github.com", "acme", "handbook")},
		{"git@github.com:acme/handbook.git", filepath.Join("github.com", "acme", "handbook")},
	}
	for _, tt := range tests {
		got, err := urlToDirectoryName(tt.url)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "url: %s", tt.url)
	}
}
