package core

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
)

// Prepared is an input ready to be uploaded.
type Prepared struct {
	// Source is the path the user gave.
	Source string
	// File is what gets uploaded: the source itself or a temporary archive.
	File UploadFile
	// Archived is true when File.Path is a temporary archive of a directory.
	Archived bool
}

// Prepare checks the input and archives directories into a temporary
// tarball uploaded as <name>.tar.gz.
func Prepare(input string) (Prepared, error) {
	info, err := os.Stat(input)
	if err != nil {
		if os.IsNotExist(err) {
			return Prepared{}, fmt.Errorf("%w: %s", ErrInputNotFound, input)
		}
		return Prepared{}, fmt.Errorf("cannot access input: %w", err)
	}

	p := Prepared{Source: input}
	path, name := input, filepath.Base(input)
	if info.IsDir() {
		name = filepath.Base(filepath.Clean(input)) + ".tar.gz"
		path, err = ArchiveDir(input)
		if err != nil {
			return Prepared{}, err
		}
		p.Archived = true
		if info, err = os.Stat(path); err != nil {
			return Prepared{}, fmt.Errorf("cannot access archive: %w", err)
		}
	} else if !info.Mode().IsRegular() {
		return Prepared{}, fmt.Errorf("not a regular file: %s", input)
	}

	p.File = UploadFile{
		Path: path,
		Name: CleanFilename(name),
		Size: info.Size(),
	}
	return p, nil
}

// Cleanup removes the temporary archive, and the source too when
// deleteSource is set.
func (p Prepared) Cleanup(deleteSource bool) error {
	if p.Archived {
		if err := os.Remove(p.File.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove archive: %w", err)
		}
	}
	if !deleteSource {
		return nil
	}
	log.WithField("path", p.Source).Info("Deleting input")
	if err := os.RemoveAll(p.Source); err != nil {
		return fmt.Errorf("failed to delete input: %w", err)
	}
	return nil
}

// ArchiveDir writes dir as a gzipped tarball in the temp directory and
// returns its path. Entries are stored under the directory's own name.
func ArchiveDir(dir string) (string, error) {
	dir = filepath.Clean(dir)

	f, err := os.CreateTemp("", filepath.Base(dir)+"-*.tar.gz")
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	out := f.Name()
	if err := writeTarGz(f, dir); err != nil {
		f.Close()
		os.Remove(out)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("failed to close archive: %w", err)
	}
	return out, nil
}

func writeTarGz(w io.Writer, dir string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)
	base := filepath.Dir(dir)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", dir, err)
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

// CleanFilename replaces punctuation and spaces in the stem with "_" and
// keeps every suffix ("my file!.tar.gz" becomes "my_file_.tar.gz").
func CleanFilename(name string) string {
	stem, suffixes := splitSuffixes(name)
	dot := ""
	if strings.HasPrefix(stem, ".") {
		dot, stem = ".", stem[1:]
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return r
		}
		if unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, stem)
	return dot + cleaned + suffixes
}

// splitSuffixes splits "a.tar.gz" into "a" and ".tar.gz". A leading dot
// belongs to the stem.
func splitSuffixes(name string) (string, string) {
	start := 0
	if strings.HasPrefix(name, ".") {
		start = 1
	}
	i := strings.Index(name[start:], ".")
	if i < 0 {
		return name, ""
	}
	i += start
	return name[:i], name[i:]
}
