package fsx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathExists(t *testing.T) {
	tempDir := t.TempDir()

	existing := filepath.Join(tempDir, "present.txt")
	require.NoError(t, os.WriteFile(existing, []byte("data"), 0644))

	info, exists := PathExists(existing)
	assert.True(t, exists)
	assert.NotNil(t, info)
	assert.Equal(t, int64(4), info.Size())

	_, exists = PathExists(filepath.Join(tempDir, "missing.txt"))
	assert.False(t, exists)
}

func TestFileSize(t *testing.T) {
	tempDir := t.TempDir()

	file := filepath.Join(tempDir, "sized.bin")
	require.NoError(t, os.WriteFile(file, []byte("0123456789"), 0644))

	size, err := FileSize(file)
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)

	// directories are not regular files
	_, err = FileSize(tempDir)
	assert.Error(t, err)

	_, err = FileSize(filepath.Join(tempDir, "missing.bin"))
	assert.Error(t, err)
}

func TestSplitAndCombineFilePath(t *testing.T) {
	dir, name, ext := SplitFilePath("/data/fastq/sample1.fastq.gz")
	assert.Equal(t, "/data/fastq/", dir)
	assert.Equal(t, "sample1.fastq", name)
	assert.Equal(t, ".gz", ext)

	combined := CombineFilePath(dir, name, ext)
	assert.Equal(t, "/data/fastq/sample1.fastq.gz", combined)
}

func TestFileMD5(t *testing.T) {
	tempDir := t.TempDir()

	file := filepath.Join(tempDir, "checksum.txt")
	require.NoError(t, os.WriteFile(file, []byte("test content"), 0644))

	sum, err := FileMD5(file)
	require.NoError(t, err)
	// md5 of "test content"
	assert.Equal(t, "9473fdd0d880a43c21b7778d34872157", sum)

	_, err = FileMD5(filepath.Join(tempDir, "missing.txt"))
	assert.Error(t, err)
}
