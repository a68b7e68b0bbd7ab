package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	maxOwnerLength  = 39
	maxRepoLength   = 100
	maxBranchLength = 255
)

var (
	ownerPattern    = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?$`)
	repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	branchCharset   = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)
)

// ValidateRepository enforces the strict owner/repo shape required before a
// repository identity may appear in a clone command. Fails closed on anything
// that is not exactly one owner segment and one repository segment.
func ValidateRepository(s string) error {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return &ValidationError{Field: "repository", Reason: fmt.Sprintf("%q is not in owner/repo form", s)}
	}
	owner, name := parts[0], parts[1]
	if owner == "" || len(owner) > maxOwnerLength || !ownerPattern.MatchString(owner) {
		return &ValidationError{Field: "repository", Reason: fmt.Sprintf("owner segment of %q is not a valid GitHub owner", s)}
	}
	if name == "" || len(name) > maxRepoLength || !repoNamePattern.MatchString(name) {
		return &ValidationError{Field: "repository", Reason: fmt.Sprintf("name segment of %q contains unsupported characters", s)}
	}
	if name == "." || name == ".." {
		return &ValidationError{Field: "repository", Reason: fmt.Sprintf("name segment of %q is a relative path element", s)}
	}
	return nil
}

// ValidateBranch enforces a conservative subset of git's ref-name rules before
// a branch name may appear in a checkout command. The character whitelist
// rejects spaces, control characters, and every shell metacharacter outright;
// the structural rules below mirror git-check-ref-format.
func ValidateBranch(s string) error {
	if s == "" {
		return &ValidationError{Field: "branch", Reason: "empty branch name"}
	}
	if len(s) > maxBranchLength {
		return &ValidationError{Field: "branch", Reason: "branch name exceeds 255 characters"}
	}
	if !branchCharset.MatchString(s) {
		return &ValidationError{Field: "branch", Reason: fmt.Sprintf("%q contains characters outside [A-Za-z0-9._/-]", s)}
	}
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "-") {
		return &ValidationError{Field: "branch", Reason: fmt.Sprintf("%q starts with a reserved character", s)}
	}
	if strings.HasSuffix(s, "/") || strings.HasSuffix(s, ".") {
		return &ValidationError{Field: "branch", Reason: fmt.Sprintf("%q ends with a reserved character", s)}
	}
	if strings.Contains(s, "..") {
		return &ValidationError{Field: "branch", Reason: fmt.Sprintf("%q contains a traversal sequence", s)}
	}
	for _, component := range strings.Split(s, "/") {
		if component == "" {
			return &ValidationError{Field: "branch", Reason: fmt.Sprintf("%q contains an empty path component", s)}
		}
		if strings.HasPrefix(component, ".") {
			return &ValidationError{Field: "branch", Reason: fmt.Sprintf("%q contains a component starting with a dot", s)}
		}
		if strings.HasSuffix(component, ".lock") {
			return &ValidationError{Field: "branch", Reason: fmt.Sprintf("%q contains a component ending in .lock", s)}
		}
	}
	return nil
}

// EnsureWithinBase verifies that path is a strict descendant of base after
// cleaning both. The base itself is rejected so a tampered path can never turn
// a workspace removal into a removal of the whole base directory.
func EnsureWithinBase(base, path string) error {
	absBase, err := filepath.Abs(filepath.Clean(base))
	if err != nil {
		return fmt.Errorf("%w: resolve base %q: %v", ErrInvalidWorkspacePath, base, err)
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("%w: resolve path %q: %v", ErrInvalidWorkspacePath, path, err)
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil {
		return fmt.Errorf("%w: %q is not relative to %q", ErrInvalidWorkspacePath, path, base)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q escapes base %q", ErrInvalidWorkspacePath, path, base)
	}
	return nil
}
