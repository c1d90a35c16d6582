// Package archive keeps a copy of every uploaded BOQ file.
package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Archive stores raw upload bytes and returns where they went.
type Archive interface {
	Put(ctx context.Context, key string, data []byte) (location string, err error)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Key builds "boq/<owner>/<project>/<importID>-<file>" with every segment
// reduced to a safe character set.
func Key(owner, project, importID, fileName string) string {
	clean := func(s string) string {
		s = unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
		s = strings.Trim(s, "._")
		if s == "" {
			return "_"
		}
		return s
	}
	return path.Join("boq", clean(owner), clean(project), clean(importID)+"-"+clean(path.Base(fileName)))
}

// Disk writes archives below a local directory.
type Disk struct {
	dir string
}

var _ Archive = (*Disk)(nil)

func NewDisk(dir string) *Disk { return &Disk{dir: dir} }

func (d *Disk) Put(_ context.Context, key string, data []byte) (string, error) {
	full := filepath.Join(d.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write archive file: %w", err)
	}
	return full, nil
}
