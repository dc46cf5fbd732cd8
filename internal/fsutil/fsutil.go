// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FindFilesByExtensions recursively searches the given root path for all files
// ending with any of the specified extensions. If rootPath is a regular file
// it is returned as-is. Returned paths are full paths in walk order.
func FindFilesByExtensions(rootPath string, extensions ...string) ([]string, error) {
	if len(extensions) == 0 {
		panic("at least one extension must be given")
	}

	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{rootPath}, nil
	}

	var files []string
	err = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, ext := range extensions {
			if strings.HasSuffix(d.Name(), ext) {
				files = append(files, path)
				break
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

// AllExist reports whether every given path exists. Paths that do not exist
// are not an error; any other stat failure is returned as-is.
func AllExist(paths []string) (bool, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}

// ModifiedAfter reports whether the newest of the younger paths has a
// modification time strictly after the oldest of the older paths. Every path
// must exist; a vanished file surfaces as an error so the caller can map it
// to an error state instead of a bogus answer.
func ModifiedAfter(younger, older []string) (bool, error) {
	newest, err := newestMTime(younger)
	if err != nil {
		return false, err
	}
	oldest, err := oldestMTime(older)
	if err != nil {
		return false, err
	}
	return newest.After(oldest), nil
}

func newestMTime(paths []string) (time.Time, error) {
	var newest time.Time
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return time.Time{}, err
		}
		if mt := info.ModTime(); mt.After(newest) {
			newest = mt
		}
	}
	return newest, nil
}

func oldestMTime(paths []string) (time.Time, error) {
	var oldest time.Time
	for i, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return time.Time{}, err
		}
		if mt := info.ModTime(); i == 0 || mt.Before(oldest) {
			oldest = mt
		}
	}
	return oldest, nil
}
