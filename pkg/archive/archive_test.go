package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suddencreator/kibank/pkg/common"
)

func generateRandomContent(size int) []byte {
	content := make([]byte, size)
	rand.Read(content)
	return content
}

func calculateChecksum(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, content, 0644))
	}
}

func TestCreateAndExtractRoundTrip(t *testing.T) {
	sourceDir := t.TempDir()
	files := map[string][]byte{
		"file1.txt":          generateRandomContent(1024),
		"subdir/file2.txt":   generateRandomContent(64 * 1024),
		"subdir/deep/f3.bin": generateRandomContent(1024 * 1024),
		"index.json":         []byte(`{"id":"x","name":"x"}`),
	}
	writeTree(t, sourceDir, files)

	bankPath := filepath.Join(t.TempDir(), "test.bank")
	require.NoError(t, CreateBank(CreateOptions{InputPath: sourceDir, OutputPath: bankPath}))

	extractDir := t.TempDir()
	result, err := ExtractBank(ExtractOptions{InputFile: bankPath, OutputPath: extractDir})
	require.NoError(t, err)
	assert.Equal(t, len(files), result.Extracted)
	assert.Equal(t, 0, result.Skipped)

	for name, content := range files {
		extracted, err := os.ReadFile(filepath.Join(extractDir, filepath.FromSlash(name)))
		require.NoError(t, err, "file %s", name)
		assert.Equal(t, calculateChecksum(content), calculateChecksum(extracted), "file %s", name)
	}
}

func TestCreateBankConcreteLayout(t *testing.T) {
	sourceDir := t.TempDir()
	writeTree(t, sourceDir, map[string][]byte{
		"Bass/Arp1.txt":  []byte("hello"),
		"Violin/Pad.txt": []byte("abc"),
	})

	bankPath := filepath.Join(t.TempDir(), "test.bank")
	require.NoError(t, CreateBank(CreateOptions{InputPath: sourceDir, OutputPath: bankPath}))

	reader, err := OpenBank(bankPath)
	require.NoError(t, err)
	defer reader.Close()

	// Two directories plus two files plus the generated index.json.
	entries := reader.Entries()
	require.Len(t, entries, 5)

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	assert.Equal(t, []string{"Bass", "Violin", "Bass/Arp1.txt", "index.json", "Violin/Pad.txt"}, names)
	assert.True(t, entries[0].IsDir())
	assert.True(t, entries[1].IsDir())

	data, err := reader.ReadFileBytes(entries[2])
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	extractDir := t.TempDir()
	result, err := ExtractBank(ExtractOptions{InputFile: bankPath, OutputPath: extractDir})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Extracted)

	for _, rel := range []string{"Bass", "Violin"} {
		info, err := os.Stat(filepath.Join(extractDir, rel))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	content, err := os.ReadFile(filepath.Join(extractDir, "Bass", "Arp1.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)
}

func TestCreateBankGeneratesMetadata(t *testing.T) {
	sourceDir := t.TempDir()
	writeTree(t, sourceDir, map[string][]byte{"a.txt": []byte("x")})

	bankPath := filepath.Join(t.TempDir(), "test.bank")
	err := CreateBank(CreateOptions{
		InputPath:  sourceDir,
		OutputPath: bankPath,
		Metadata:   MetadataOptions{Name: "My Bank", Author: "Someone"},
	})
	require.NoError(t, err)

	reader, err := OpenBank(bankPath)
	require.NoError(t, err)
	defer reader.Close()

	entry := reader.Index().Get(common.MetadataFileName)
	require.NotNil(t, entry)
	data, err := reader.ReadFileBytes(entry)
	require.NoError(t, err)

	var meta common.BankMetadata
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, "someone.mybank", meta.ID)
	assert.Equal(t, "My Bank", meta.Name)
	assert.Equal(t, "Someone", meta.Author)
	assert.Nil(t, meta.Version)
	assert.Nil(t, meta.Hash)
}

func TestCreateBankKeepsExistingMetadata(t *testing.T) {
	sourceDir := t.TempDir()
	original := []byte(`{"id":"mine","name":"Mine"}`)
	writeTree(t, sourceDir, map[string][]byte{"index.json": original})

	bankPath := filepath.Join(t.TempDir(), "test.bank")
	require.NoError(t, CreateBank(CreateOptions{InputPath: sourceDir, OutputPath: bankPath}))

	reader, err := OpenBank(bankPath)
	require.NoError(t, err)
	defer reader.Close()

	var metadataEntries int
	for _, entry := range reader.Entries() {
		if entry.Name == common.MetadataFileName {
			metadataEntries++
			data, err := reader.ReadFileBytes(entry)
			require.NoError(t, err)
			assert.Equal(t, original, data)
		}
	}
	assert.Equal(t, 1, metadataEntries)
}

func TestCreateBankIncludesBackground(t *testing.T) {
	sourceDir := t.TempDir()
	writeTree(t, sourceDir, map[string][]byte{
		"background.png": []byte("not really a png"),
		"a.txt":          []byte("x"),
	})

	bankPath := filepath.Join(t.TempDir(), "test.bank")
	require.NoError(t, CreateBank(CreateOptions{InputPath: sourceDir, OutputPath: bankPath}))

	reader, err := OpenBank(bankPath)
	require.NoError(t, err)
	defer reader.Close()

	entry := reader.Index().Get("background.png")
	require.NotNil(t, entry)
	assert.True(t, entry.IsFile())
}

func TestCreateBankDeterministic(t *testing.T) {
	sourceDir := t.TempDir()
	writeTree(t, sourceDir, map[string][]byte{
		"Bass/Arp1.txt":  []byte("hello"),
		"Violin/Pad.txt": []byte("abc"),
	})

	outDir := t.TempDir()
	first := filepath.Join(outDir, "first.bank")
	second := filepath.Join(outDir, "second.bank")
	opts := CreateOptions{InputPath: sourceDir, Metadata: MetadataOptions{Name: "B", Author: "A"}}

	opts.OutputPath = first
	require.NoError(t, CreateBank(opts))
	opts.OutputPath = second
	require.NoError(t, CreateBank(opts))

	firstBytes, err := os.ReadFile(first)
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, firstBytes, secondBytes)
}

func TestExtractSkipsExistingFiles(t *testing.T) {
	sourceDir := t.TempDir()
	writeTree(t, sourceDir, map[string][]byte{
		"a.txt": []byte("new a"),
		"b.txt": []byte("new b"),
	})

	bankPath := filepath.Join(t.TempDir(), "test.bank")
	require.NoError(t, CreateBank(CreateOptions{InputPath: sourceDir, OutputPath: bankPath}))

	extractDir := t.TempDir()
	existing := filepath.Join(extractDir, "a.txt")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0644))

	result, err := ExtractBank(ExtractOptions{InputFile: bankPath, OutputPath: extractDir})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Extracted) // b.txt and index.json
	assert.Equal(t, 1, result.Skipped)

	content, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), content)

	// With overwrite on, the stale copy is replaced.
	result, err = ExtractBank(ExtractOptions{InputFile: bankPath, OutputPath: extractDir, Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Extracted)
	assert.Equal(t, 0, result.Skipped)

	content, err = os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, []byte("new a"), content)
}

func TestExtractRejectsTraversalEntries(t *testing.T) {
	// Hand-build a bank whose single entry tries to climb out of the
	// output directory.
	nameBlock := []byte("../escape.txt\x00")
	start := dataStart(1, len(nameBlock))
	bank := rawBank([]rawLocation{{nameOff: 0, dataOff: start, dataSize: 4}}, nameBlock, []byte("evil"))

	bankPath := filepath.Join(t.TempDir(), "evil.bank")
	require.NoError(t, os.WriteFile(bankPath, bank, 0644))

	extractDir := filepath.Join(t.TempDir(), "out")
	_, err := ExtractBank(ExtractOptions{InputFile: bankPath, OutputPath: extractDir})
	var traversal *common.TraversalError
	require.ErrorAs(t, err, &traversal)

	// Nothing may exist outside the output directory.
	_, statErr := os.Stat(filepath.Join(filepath.Dir(extractDir), "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractRejectsSymlinkedDirEscape(t *testing.T) {
	// A bank entry under a directory name that already exists in the
	// output root as a symlink to the outside must not be written.
	nameBlock := []byte("evil/x.txt\x00")
	start := dataStart(1, len(nameBlock))
	bank := rawBank([]rawLocation{{nameOff: 0, dataOff: start, dataSize: 4}}, nameBlock, []byte("data"))

	bankPath := filepath.Join(t.TempDir(), "evil.bank")
	require.NoError(t, os.WriteFile(bankPath, bank, 0644))

	base := t.TempDir()
	extractDir := filepath.Join(base, "out")
	outside := filepath.Join(base, "outside")
	require.NoError(t, os.Mkdir(extractDir, 0755))
	require.NoError(t, os.Mkdir(outside, 0755))
	require.NoError(t, os.Symlink(outside, filepath.Join(extractDir, "evil")))

	_, err := ExtractBank(ExtractOptions{InputFile: bankPath, OutputPath: extractDir})
	var escape *common.EscapeError
	require.ErrorAs(t, err, &escape)

	_, statErr := os.Stat(filepath.Join(outside, "x.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteBankShortPayloadSource(t *testing.T) {
	// Declared size exceeds what the source can deliver.
	layout, err := BuildLayout(nil, []FileEntry{{
		RelPath: "short.txt",
		Size:    10,
		Source:  InMemory([]byte("abc")),
	}})
	require.NoError(t, err)

	bankPath := filepath.Join(t.TempDir(), "short.bank")
	err = WriteBank(layout, bankPath)
	require.ErrorIs(t, err, common.ErrUnexpectedEOF)
}

func TestExtractTruncatedBank(t *testing.T) {
	sourceDir := t.TempDir()
	writeTree(t, sourceDir, map[string][]byte{"a.txt": generateRandomContent(4096)})

	bankPath := filepath.Join(t.TempDir(), "test.bank")
	require.NoError(t, CreateBank(CreateOptions{InputPath: sourceDir, OutputPath: bankPath}))

	full, err := os.ReadFile(bankPath)
	require.NoError(t, err)
	truncated := filepath.Join(t.TempDir(), "truncated.bank")
	require.NoError(t, os.WriteFile(truncated, full[:len(full)-100], 0644))

	_, err = ExtractBank(ExtractOptions{InputFile: truncated, OutputPath: t.TempDir()})
	require.ErrorIs(t, err, common.ErrUnexpectedEOF)
}

func TestCreateBankSkipsSymlinks(t *testing.T) {
	sourceDir := t.TempDir()
	writeTree(t, sourceDir, map[string][]byte{"real.txt": []byte("data")})
	require.NoError(t, os.Symlink(
		filepath.Join(sourceDir, "real.txt"),
		filepath.Join(sourceDir, "link.txt"),
	))

	bankPath := filepath.Join(t.TempDir(), "test.bank")
	require.NoError(t, CreateBank(CreateOptions{InputPath: sourceDir, OutputPath: bankPath}))

	reader, err := OpenBank(bankPath)
	require.NoError(t, err)
	defer reader.Close()

	assert.Nil(t, reader.Index().Get("link.txt"))
	assert.NotNil(t, reader.Index().Get("real.txt"))
}
