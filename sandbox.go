package main

import (
	"errors"
	"path/filepath"
	"strings"
)

// errAccessDenied is returned for every sandbox rejection. Callers must not
// attach the offending path when surfacing it to a client.
var errAccessDenied = errors.New("access denied")

// resolvePath validates an untrusted root-relative path and resolves it to an
// absolute on-disk path. It is called on every read and write; results are
// never cached across requests because the filesystem can change between a
// listing and a later access.
//
// Rejections, in order: embedded NUL bytes, empty or absolute input, any
// resolved target that is not strictly inside root, and targets that do not
// exist. Symlinks are resolved before the containment check so a link cannot
// smuggle a target out of the root.
func resolvePath(root, rel string) (string, error) {
	if rel == "" || strings.ContainsRune(rel, 0) {
		return "", errAccessDenied
	}
	if filepath.IsAbs(rel) || filepath.IsAbs(filepath.FromSlash(rel)) {
		return "", errAccessDenied
	}

	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", errAccessDenied
	}

	target := filepath.Join(resolvedRoot, filepath.FromSlash(rel))

	// EvalSymlinks also stats the target, which covers the existence rule.
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		return "", errAccessDenied
	}

	if !isContainedIn(resolved, resolvedRoot) {
		return "", errAccessDenied
	}
	return resolved, nil
}

// isContainedIn reports whether child is strictly under root. Both paths must
// be absolute and symlink-free.
func isContainedIn(child, root string) bool {
	rel, err := filepath.Rel(root, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." &&
		!strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
