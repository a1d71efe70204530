// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ConfigFileName is the backends file looked up in the data directory.
const ConfigFileName = "dbkit.yaml"

// DataDir returns the dbkit data directory.
//
// Priority:
// 1. DBKIT_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.dbkit (default)
//
// The returned path is always absolute. Tilde (~) in DBKIT_DATA_DIR is expanded
// to the user's home directory.
//
// Examples:
//
//	DBKIT_DATA_DIR=/srv/dbkit         -> /srv/dbkit
//	DBKIT_DATA_DIR=~/dbkit            -> /home/user/dbkit
//	DBKIT_DATA_DIR not set            -> /home/user/.dbkit
func DataDir() string {
	if dataDir := os.Getenv("DBKIT_DATA_DIR"); dataDir != "" {
		return expandPath(dataDir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".dbkit"
	}
	return filepath.Join(homeDir, ".dbkit")
}

// DefaultConfigFile returns the backends file inside DataDir.
func DefaultConfigFile() string {
	return filepath.Join(DataDir(), ConfigFileName)
}

// expandPath expands ~ and resolves to absolute path
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

// resolvePath makes a file path from a config file absolute, relative to the
// file's directory.
func resolvePath(baseDir, path string) string {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	if strings.HasPrefix(path, "~/") || filepath.IsAbs(path) {
		return expandPath(path)
	}
	return filepath.Join(baseDir, path)
}
