package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suddencreator/kibank/pkg/archive"
)

func TestRunCreateWritesBankAtomically(t *testing.T) {
	sourceDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "a.txt"), []byte("data"), 0644))

	outDir := t.TempDir()
	outPath := filepath.Join(outDir, "out.bank")

	*createOpts = archive.CreateOptions{InputPath: sourceDir, OutputPath: outPath}
	require.NoError(t, runCreate(CreateCmd, nil))

	reader, err := archive.OpenBank(outPath)
	require.NoError(t, err)
	defer reader.Close()
	require.NotNil(t, reader.Index().Get("a.txt"))

	// The temp file is gone once the rename lands.
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasSuffix(entry.Name(), ".tmp"), entry.Name())
	}

	// A rerun acquires the lock cleanly and replaces the bank in place.
	require.NoError(t, runCreate(CreateCmd, nil))

	reader2, err := archive.OpenBank(outPath)
	require.NoError(t, err)
	defer reader2.Close()
	require.NotNil(t, reader2.Index().Get("a.txt"))
}

func TestRunCreateRejectsBadExtension(t *testing.T) {
	sourceDir := t.TempDir()
	*createOpts = archive.CreateOptions{
		InputPath:  sourceDir,
		OutputPath: filepath.Join(t.TempDir(), "out.zip"),
	}
	require.Error(t, runCreate(CreateCmd, nil))
}

func TestRunCreateRequiresExistingInputDir(t *testing.T) {
	*createOpts = archive.CreateOptions{
		InputPath:  filepath.Join(t.TempDir(), "missing"),
		OutputPath: filepath.Join(t.TempDir(), "out.bank"),
	}
	require.Error(t, runCreate(CreateCmd, nil))
}
