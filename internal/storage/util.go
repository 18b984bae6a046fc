package storage

import "os"

// EnsureDir ensures a directory exists with default permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// EntryKey returns the canonical composite key for an entry.
func EntryKey(spaceID, appName, date string) string {
	return date + "/" + spaceID + "/" + appName
}
