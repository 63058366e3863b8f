// Package security guards file system writes made on behalf of a run.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is wrapped by every boundary violation.
var ErrPathTraversal = errors.New("path traversal detected")

// ValidatePathWithinBoundary ensures that targetPath is within or equal to boundaryPath.
// Relative paths are resolved against the working directory first.
//
// Example:
//
//	boundary := "reports"
//	target := "reports/checkout-report.md"  // valid
//	target := "reports/../../etc/passwd"     // rejected
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
		return fmt.Errorf("%w: %q escapes boundary %q", ErrPathTraversal, targetPath, boundaryPath)
	}

	return nil
}

// ResolveWithin joins name onto boundaryPath and rejects results outside of it.
func ResolveWithin(boundaryPath, name string) (string, error) {
	path := filepath.Join(boundaryPath, name)
	if err := ValidatePathWithinBoundary(boundaryPath, path); err != nil {
		return "", err
	}
	return path, nil
}
