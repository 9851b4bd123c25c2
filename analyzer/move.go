package analyzer

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MoveFileToDir moves srcPath into dstDir, creating dstDir if needed, and
// returns the new path. Existing files are never overwritten: a taken name
// gets a numeric suffix ("export-1.csv", "export-2.csv", ...).
func MoveFileToDir(srcPath, dstDir string) (string, error) {
	if strings.TrimSpace(dstDir) == "" {
		return "", errors.New("move: destination directory is empty")
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %q", dstDir)
	}
	dst, err := freePath(dstDir, filepath.Base(srcPath))
	if err != nil {
		return "", err
	}
	if os.Rename(srcPath, dst) == nil {
		return dst, nil
	}
	// Rename fails across filesystems.
	if err := copyNew(srcPath, dst); err != nil {
		return "", err
	}
	if err := os.Remove(srcPath); err != nil {
		return "", errors.Wrapf(err, "remove %q after copy", srcPath)
	}
	return dst, nil
}

func freePath(dir, base string) (string, error) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	candidate := filepath.Join(dir, base)
	for n := 1; ; n++ {
		_, err := os.Lstat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", errors.Wrapf(err, "stat %q", candidate)
		}
		candidate = filepath.Join(dir, stem+"-"+strconv.Itoa(n)+ext)
	}
}

// copyNew copies src to dst, which must not exist yet. A partial dst is
// removed on failure.
func copyNew(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "copy %q", src)
	}
	return nil
}
