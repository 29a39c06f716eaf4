package provision

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/huandu/xstrings"
)

// FilenameFromPath returns the last element of a path. An empty path stays empty.
func FilenameFromPath(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

// DBNameFromFile derives a database name from a file name, unique to the millisecond
func DBNameFromFile(filename string) string {
	return fmt.Sprintf("%s_%d", xstrings.Translate(FilenameFromPath(filename), ".", "_"), time.Now().UnixMilli())
}
