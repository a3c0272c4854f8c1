package store

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// writeArchive writes every file under paths into a gzip'd tar at dst.
// Entries are named "<index>/<relative path>" so they can be restored into
// the same paths wherever they live on the next machine.
func writeArchive(dst string, paths []string) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for i, root := range paths {
		if err := addTree(tw, strconv.Itoa(i), root); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}

	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}

	return f.Close()
}

func addTree(tw *tar.Writer, prefix, root string) error {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return fs.SkipAll // nothing to save yet
			}

			return err
		}

		// only directories and regular files are kept
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}

		hdr.Name = path.Join(prefix, filepath.ToSlash(rel))
		if d.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		return copyInto(tw, p)
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", root, err)
	}

	return nil
}

func copyInto(w io.Writer, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

// extractArchive restores an archive written by writeArchive into paths
func extractArchive(src string, paths []string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}

		dst, err := targetPath(hdr.Name, paths)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(dst, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("failed to restore %s: %w", hdr.Name, err)
			}
		}
	}
}

// targetPath maps an archive entry name back onto the destination paths
func targetPath(name string, paths []string) (string, error) {
	index, rel, _ := strings.Cut(strings.TrimSuffix(name, "/"), "/")

	i, err := strconv.Atoi(index)
	if err != nil || i < 0 || i >= len(paths) {
		return "", fmt.Errorf("archive entry %q does not match the cache paths", name)
	}

	if rel == "" || rel == "." {
		return paths[i], nil
	}

	clean := path.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", fmt.Errorf("archive entry %q escapes its cache path", name)
	}

	return filepath.Join(paths[i], filepath.FromSlash(clean)), nil
}

func writeFile(dst string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return err
	}

	return f.Close()
}
