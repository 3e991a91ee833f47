package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidatePathWithinBoundary ensures that targetPath is within or equal to boundaryPath.
// This keeps the stack file and handler assets inside the project directory even
// when stack.yaml or --set overrides contain "../" sequences.
//
// Example:
//
//	boundary := "/Users/me/stack"
//	target := "/Users/me/stack/handlers/send-notification.js"  // valid
//	target := "/Users/me/stack/../../../etc/passwd"            // invalid
func ValidatePathWithinBoundary(boundaryPath, targetPath string) error {
	absBoundary, err := filepath.Abs(boundaryPath)
	if err != nil {
		return fmt.Errorf("failed to resolve boundary path %q: %w", boundaryPath, err)
	}

	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return fmt.Errorf("failed to resolve target path %q: %w", targetPath, err)
	}

	rel, err := filepath.Rel(absBoundary, absTarget)
	if err != nil {
		return fmt.Errorf("invalid path relationship between %q and %q: %w", absBoundary, absTarget, err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %q escapes boundary %q", targetPath, boundaryPath)
	}

	return nil
}

// ValidateResolvedWithinBoundary is ValidatePathWithinBoundary after following
// symlinks on both sides, so a link inside the asset directory cannot point out of it.
func ValidateResolvedWithinBoundary(boundaryPath, targetPath string) error {
	resolvedBoundary, err := filepath.EvalSymlinks(boundaryPath)
	if err != nil {
		return fmt.Errorf("failed to resolve boundary path %q: %w", boundaryPath, err)
	}

	resolvedTarget, err := filepath.EvalSymlinks(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path %q does not exist: %w", targetPath, err)
		}
		return fmt.Errorf("failed to resolve target path %q: %w", targetPath, err)
	}

	if err := ValidatePathWithinBoundary(resolvedBoundary, resolvedTarget); err != nil {
		return fmt.Errorf("path traversal detected: %q resolves outside %q", targetPath, boundaryPath)
	}

	return nil
}
