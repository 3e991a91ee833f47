package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinBoundary_Valid(t *testing.T) {
	boundary := "/Users/test/stack"
	validPaths := []string{
		"/Users/test/stack/handlers",
		"/Users/test/stack/handlers/send-notification.js",
		"/Users/test/stack",
		"/Users/test/stack/..handlers",
	}

	for _, path := range validPaths {
		err := ValidatePathWithinBoundary(boundary, path)
		if err != nil {
			t.Errorf("Expected path %q to be valid within boundary %q, but got error: %v", path, boundary, err)
		}
	}
}

func TestValidatePathWithinBoundary_PathTraversal(t *testing.T) {
	boundary := "/Users/test/stack"
	maliciousPaths := []string{
		"/Users/test/stack/../../../etc/passwd",
		"/Users/test/stack/../other-stack",
		"/Users/test",
		"/etc/passwd",
	}

	for _, path := range maliciousPaths {
		err := ValidatePathWithinBoundary(boundary, path)
		if err == nil {
			t.Errorf("Expected path %q to be REJECTED (path traversal), but it was allowed", path)
		}
	}
}

func TestValidatePathWithinBoundary_RelativePaths(t *testing.T) {
	absBoundary, _ := filepath.Abs(".")

	tests := []struct {
		name        string
		targetPath  string
		shouldError bool
	}{
		{name: "current directory", targetPath: ".", shouldError: false},
		{name: "subdirectory", targetPath: "./handlers", shouldError: false},
		{name: "parent directory escape", targetPath: "../", shouldError: true},
		{name: "double parent escape", targetPath: "../../etc", shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinBoundary(absBoundary, tt.targetPath)
			if tt.shouldError && err == nil {
				t.Errorf("Expected error for %q but got none", tt.targetPath)
			}
			if !tt.shouldError && err != nil {
				t.Errorf("Expected no error for %q but got: %v", tt.targetPath, err)
			}
		})
	}
}

func TestValidateResolvedWithinBoundary_Symlink(t *testing.T) {
	root := t.TempDir()
	boundary := filepath.Join(root, "handlers")
	outside := filepath.Join(root, "secret.txt")

	if err := os.MkdirAll(boundary, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(outside, []byte("token"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(boundary, "index.js"), []byte("exports.handler = 1"), 0644); err != nil {
		t.Fatal(err)
	}

	link := filepath.Join(boundary, "leak.txt")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	if err := ValidateResolvedWithinBoundary(boundary, filepath.Join(boundary, "index.js")); err != nil {
		t.Errorf("Expected regular file to be valid, got: %v", err)
	}

	if err := ValidateResolvedWithinBoundary(boundary, link); err == nil {
		t.Error("Expected symlink escaping the boundary to be rejected")
	}
}
