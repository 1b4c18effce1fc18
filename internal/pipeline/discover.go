package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Supported media file extensions (lowercase, with leading dot).
var mediaExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
}

// DiscoveryError reports that the input tree could not be traversed.
type DiscoveryError struct {
	Root string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %s: %v", e.Root, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Discover walks root and returns the absolute path of every regular file
// with a media extension (case-insensitive), in lexical walk order. Any
// traversal failure discards partial results.
func Discover(root string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &DiscoveryError{Root: root, Err: err}
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, &DiscoveryError{Root: root, Err: err}
	}
	if !fi.IsDir() {
		return nil, &DiscoveryError{Root: root, Err: errors.New("not a directory")}
	}

	var files []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if mediaExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, &DiscoveryError{Root: root, Err: err}
	}
	return files, nil
}
