package testutil

import (
	"os"
	"path"
	"path/filepath"
	"runtime"
	"time"
)

// Bloomsday is a fixed timestamp for test fixtures.
var Bloomsday, _ = time.Parse(time.RFC3339, "1904-06-16T15:04:05Z")

func ProjectRoot() string {
	_, thisFile, _, _ := runtime.Caller(1)
	absPath, _ := filepath.Abs(path.Join(thisFile, "..", ".."))
	return absPath
}

func PathToTestData() string {
	return path.Join(ProjectRoot(), "testdata")
}

// WriteTempFile creates a file under dir with the given name and
// content, returning its full path.
func WriteTempFile(dir, name, content string) (string, error) {
	fullPath := filepath.Join(dir, name)
	err := os.MkdirAll(filepath.Dir(fullPath), 0755)
	if err != nil {
		return "", err
	}
	return fullPath, os.WriteFile(fullPath, []byte(content), 0644)
}
