package agent

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
}

func TestListFilesSortedAndFiltered(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":              "package main",
		"rpc/server.go":        "package rpc",
		"version.go":           `const Version = "1.4.2"`,
		".env":                 "SECRET=1",
		".git/config":          "[core]",
		"node_modules/x/y.js":  "cache",
		"__pycache__/m.pyc":    "cache",
		"vendor/dep/dep.go":    "cache",
		"scripts/install.sh":   "#!/bin/sh",
		"docs/readme.md":       "docs",
	})

	files, err := NewPackager(root).ListFiles()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"docs/readme.md",
		"main.go",
		"rpc/server.go",
		"scripts/install.sh",
		"version.go",
	}, files)

	again, err := NewPackager(root).ListFiles()
	require.NoError(t, err)
	assert.Equal(t, files, again, "repeated listing must be identical")
}

func TestVersionFromMarker(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":    "package main",
		"version.go": "package main\n\nconst Version = \"2.0.1\"\n",
	})

	assert.Equal(t, "2.0.1", NewPackager(root).Version())
}

func TestVersionFromVersionFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"VERSION": "0.9.3\n",
		"main.go": "package main",
	})

	assert.Equal(t, "0.9.3", NewPackager(root).Version())
}

func TestVersionFallbackDev(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"main.go": "package main"})

	assert.Equal(t, "dev", NewPackager(root).Version())
}

func TestPackageMissingSourceDir(t *testing.T) {
	_, err := NewPackager("/does/not/exist").Package()

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, notFound.Path, "/does/not/exist")
}

func TestPackageRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":       "package main\n",
		"rpc/server.go": "package rpc\n",
	})

	encoded, err := NewPackager(root).Package()
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	gz, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	contents := map[string]string{}
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.False(t, filepath.IsAbs(header.Name), "paths must be relative")
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		contents[header.Name] = string(data)
	}

	assert.Equal(t, map[string]string{
		"main.go":       "package main\n",
		"rpc/server.go": "package rpc\n",
	}, contents)
}
