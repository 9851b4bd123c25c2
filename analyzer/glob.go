package analyzer

import (
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// globFiles expands one input pattern to regular files. A "**" element
// stands for any number of directories, including none; the part after it
// is matched against the trailing path elements of every file below the
// part before it. Patterns without "**" go through filepath.Glob.
func globFiles(pattern string) ([]string, error) {
	slashed := filepath.ToSlash(pattern)
	i := strings.Index(slashed, "**")
	if i < 0 {
		return filepath.Glob(pattern)
	}

	root := strings.TrimSuffix(slashed[:i], "/")
	switch {
	case root == "" && strings.HasPrefix(slashed, "/"):
		root = "/"
	case root == "":
		root = "."
	}
	tail := strings.Trim(slashed[i+2:], "/")
	if tail == "" {
		tail = "*"
	}
	if _, err := path.Match(tail, ""); err != nil {
		return nil, errors.Wrapf(err, "pattern %q", pattern)
	}
	depth := strings.Count(tail, "/") + 1
	rootDir := filepath.FromSlash(root)

	var files []string
	err := filepath.WalkDir(rootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == rootDir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(rootDir, p)
		if err != nil {
			return err
		}
		elems := strings.Split(filepath.ToSlash(rel), "/")
		if len(elems) < depth {
			return nil
		}
		// tail was validated above, so Match cannot fail here.
		if ok, _ := path.Match(tail, strings.Join(elems[len(elems)-depth:], "/")); ok {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
