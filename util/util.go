package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/esperoj/esperoj/constants"
)

// StringListContains returns true if the list of strings contains item.
func StringListContains(list []string, item string) bool {
	if list != nil {
		for i := range list {
			if list[i] == item {
				return true
			}
		}
	}
	return false
}

// AlgorithmIsValid returns true if algorithm is one of the digest
// algorithms we support.
func AlgorithmIsValid(algorithm string) bool {
	return StringListContains(constants.DigestAlgorithms, algorithm)
}

// StatusIsValid returns true if status is a known TrackedFile status.
func StatusIsValid(status string) bool {
	return StringListContains(constants.Statuses, status)
}

// FileExists returns true if the file at path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsFile returns true if path exists and is a regular file.
func IsFile(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && stat.Mode().IsRegular()
}

// ExpandTilde expands the tilde in a file path to the current
// user's home directory.
func ExpandTilde(filePath string) (string, error) {
	if !strings.HasPrefix(filePath, "~") {
		return filePath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	separatorIndex := strings.Index(filePath, string(os.PathSeparator))
	if separatorIndex < 0 {
		return homeDir, nil
	}
	return filepath.Join(homeDir, filePath[separatorIndex+1:]), nil
}

// LooksSafeToDelete returns true if path looks safe to delete.
// To be safe, the path must have a minimum length (so we're not
// deleting "/" or "/home") and must contain at least minSeparators
// path separators.
func LooksSafeToDelete(path string, minLength, minSeparators int) bool {
	separators := strings.Count(path, string(os.PathSeparator))
	return len(path) >= minLength && separators >= minSeparators
}

// Min returns the minimum of x or y.
func Min(x, y int) int {
	if x < y {
		return x
	}
	return y
}

// TestsAreRunning returns true if we're running under "go test".
func TestsAreRunning() bool {
	return strings.HasSuffix(os.Args[0], ".test") ||
		strings.Contains(os.Args[0], "/_test/")
}

// AlgorithmForDigest returns the digest algorithm that produces hex
// digests of the given length, or an error if the length matches no
// known algorithm. Record validation uses this to catch truncated or
// mislabeled digests before they're saved.
func AlgorithmForDigest(digest string) (string, error) {
	switch len(digest) {
	case 32:
		return constants.AlgMd5, nil
	case 64:
		return constants.AlgSha256, nil
	case 128:
		return constants.AlgSha512, nil
	}
	return "", fmt.Errorf("digest %q matches no supported algorithm", digest)
}
