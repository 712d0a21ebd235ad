// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fsutil resolves and checks the file paths given to the command-line tools.
package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FileExists returns whether the file or directory exists, or an error if something went wrong in the filesystem.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to stat %q", path)
}

// ExpandPath replaces a leading "~" or "~user" by the home directory of the user.
// Other paths, including the empty one, are returned unchanged.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	userName, rest, _ := strings.Cut(path[1:], "/")
	var usr *user.User
	var err error
	if userName == "" {
		usr, err = user.Current()
	} else {
		usr, err = user.Lookup(userName)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to lookup home directory for user in path %q", path)
	}
	return filepath.Join(usr.HomeDir, rest), nil
}

// CheckInput expands path and checks that it is an existing regular file.
func CheckInput(path string) (string, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrapf(err, "input file %q", path)
	}
	if info.IsDir() {
		return "", errors.Errorf("input file %q is a directory", path)
	}
	return path, nil
}

// CheckOutput expands path and checks that the directory where it will be written exists, so
// failures are reported before any work is done.
func CheckOutput(path string) (string, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	exists, err := FileExists(dir)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", errors.Errorf("directory %q for output file %q does not exist", dir, path)
	}
	return path, nil
}
