// Package imagestore manages the on-disk image artifacts: generated
// cards under public/generated and reference photos under
// public/uploads.
package imagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	generatedDir = "generated"
	uploadsDir   = "uploads"
)

// AllowedUploadTypes are the reference photo MIME types accepted for
// upload.
var AllowedUploadTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// MaxUploadBytes caps reference photo uploads at 10MB.
const MaxUploadBytes = 10 << 20

// artifactName matches generated card file names and captures the
// company slug and the millisecond timestamp.
var artifactName = regexp.MustCompile(`^greeting-card-(.+)-(\d+)\.png$`)

// Artifact describes one stored generated card.
type Artifact struct {
	Filename string
	URL      string // public URL path, e.g. /generated/<name>.png
	ShareID  string // filename without extension
}

// Entry is one library listing row.
type Entry struct {
	Filename  string
	URL       string
	Client    string
	CreatedAt time.Time
}

// Storage stores and resolves image artifacts under a public directory.
type Storage struct {
	publicDir string
	now       func() time.Time
}

// New creates a Storage rooted at publicDir and ensures the artifact
// directories exist.
func New(publicDir string) (*Storage, error) {
	s := &Storage{publicDir: publicDir, now: time.Now}
	for _, dir := range []string{generatedDir, uploadsDir} {
		if err := os.MkdirAll(filepath.Join(publicDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("imagestore: create %s dir: %w", dir, err)
		}
	}
	return s, nil
}

// GeneratedDir returns the directory holding generated cards.
func (s *Storage) GeneratedDir() string { return filepath.Join(s.publicDir, generatedDir) }

// UploadsDir returns the directory holding uploaded reference photos.
func (s *Storage) UploadsDir() string { return filepath.Join(s.publicDir, uploadsDir) }

// SaveGenerated writes a generated card to disk. File names embed the
// company slug and a millisecond timestamp so the library can be listed
// without a database.
func (s *Storage) SaveGenerated(company string, data []byte) (Artifact, error) {
	slug := slugify(company)
	filename := fmt.Sprintf("greeting-card-%s-%d.png", slug, s.now().UnixMilli())
	if err := os.WriteFile(filepath.Join(s.GeneratedDir(), filename), data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("imagestore: write artifact: %w", err)
	}
	return Artifact{
		Filename: filename,
		URL:      "/" + generatedDir + "/" + filename,
		ShareID:  strings.TrimSuffix(filename, ".png"),
	}, nil
}

// SaveUpload stores an uploaded reference photo and returns its public
// URL path. The MIME type must be one of AllowedUploadTypes.
func (s *Storage) SaveUpload(mimeType string, data []byte) (string, error) {
	ext, ok := AllowedUploadTypes[mimeType]
	if !ok {
		return "", fmt.Errorf("imagestore: unsupported upload type %q", mimeType)
	}
	filename := fmt.Sprintf("upload-%d%s", s.now().UnixMilli(), ext)
	if err := os.WriteFile(filepath.Join(s.UploadsDir(), filename), data, 0o644); err != nil {
		return "", fmt.Errorf("imagestore: write upload: %w", err)
	}
	return "/" + uploadsDir + "/" + filename, nil
}

// ReadUpload loads a previously stored reference photo by its public URL
// path and reports its MIME type from the extension.
func (s *Storage) ReadUpload(imagePath string) ([]byte, string, error) {
	filename := filepath.Base(imagePath)
	data, err := os.ReadFile(filepath.Join(s.UploadsDir(), filename))
	if err != nil {
		return nil, "", fmt.Errorf("imagestore: read upload: %w", err)
	}
	mimeType := "image/jpeg"
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		mimeType = "image/png"
	case ".webp":
		mimeType = "image/webp"
	}
	return data, mimeType, nil
}

// ShareExists reports whether a generated card with the given share id
// is present on disk. The id is a bare filename stem; path separators
// are rejected.
func (s *Storage) ShareExists(id string) bool {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return false
	}
	_, err := os.Stat(filepath.Join(s.GeneratedDir(), id+".png"))
	return err == nil
}

// ShareURL returns the public URL path for a share id.
func (s *Storage) ShareURL(id string) string {
	return "/" + generatedDir + "/" + id + ".png"
}

// ListGenerated returns all generated cards newest first, parsing the
// company slug and timestamp out of each file name.
func (s *Storage) ListGenerated() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.GeneratedDir())
	if err != nil {
		return nil, fmt.Errorf("imagestore: read generated dir: %w", err)
	}

	var entries []Entry
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() {
			continue
		}
		match := artifactName.FindStringSubmatch(dirEntry.Name())
		if match == nil {
			continue
		}
		millis, errParse := strconv.ParseInt(match[2], 10, 64)
		if errParse != nil {
			continue
		}
		entries = append(entries, Entry{
			Filename:  dirEntry.Name(),
			URL:       "/" + generatedDir + "/" + dirEntry.Name(),
			Client:    match[1],
			CreatedAt: time.UnixMilli(millis).UTC(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// slugify turns a company name into a file-name-safe slug.
func slugify(company string) string {
	slug := strings.ToLower(strings.TrimSpace(company))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r == ' ' || r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	if slug == "" {
		slug = "client"
	}
	return slug
}
