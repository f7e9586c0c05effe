package fsx

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// PathExists reports whether the given path exists, returning its FileInfo when it does.
func PathExists(filePath string) (os.FileInfo, bool) {
	s, err := os.Stat(filePath)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return s, false
	}

	return s, true
}

// FileSize returns the size of a regular file in bytes.
func FileSize(filePath string) (int64, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}

	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", filePath)
	}

	return info.Size(), nil
}

func SplitFilePath(filePath string) (dir, fileNameWithoutExt, ext string) {
	dir, file := path.Split(filePath)
	ext = path.Ext(file)
	fileNameWithoutExt = strings.TrimSuffix(file, ext)
	return dir, fileNameWithoutExt, ext
}

func CombineFilePath(dir string, fileName string, ext string) string {
	return path.Join(dir, fmt.Sprintf("%s%s", fileName, ext))
}

func CloseFile(file *os.File) {
	if file == nil {
		return
	}

	if err := file.Close(); err != nil {
		fmt.Printf("warning: failed to close file: %v\n", err)
	}
}

// FileMD5 computes the hex-encoded MD5 digest of a file's contents.
func FileMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}

	defer CloseFile(file)

	hash := md5.New()
	_, err = io.Copy(hash, file)
	if err != nil {
		return "", fmt.Errorf("failed to compute hash of the file: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
