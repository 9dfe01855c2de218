// Package upload stores user-supplied recipe images on disk.
//
// Names are sanitized and prefixed with a UTC timestamp; the file is
// created with O_EXCL so two uploads can never overwrite each other.
package upload

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sakif/recipe-box/internal/apperror"
)

// Client-facing validation messages.
const (
	MsgNoFilePart   = "No file part"
	MsgNoFileChosen = "No selected file"
	MsgInvalidType  = "Invalid file type"
	MsgTooLarge     = "File too large"
)

// URLPrefix is the path under which stored files are served.
const URLPrefix = "/uploads/"

const timestampLayout = "20060102T150405"

// maxNameAttempts bounds the collision counter; reaching it means the
// directory is being flooded within a single second.
const maxNameAttempts = 1000

// AllowedExtensions lists the accepted image types, lower case, no dot.
var AllowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
}

// Store writes uploads into one directory.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// New returns a Store for dir, creating the directory if needed.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: creating %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger, now: time.Now}, nil
}

// Dir returns the directory files are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save validates filename, copies r into a new file and returns the URL
// the file is served under.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	if filename == "" {
		return "", apperror.ValidationFailed("file", MsgNoFileChosen)
	}
	if !Allowed(filename) {
		return "", apperror.ValidationFailed("file", MsgInvalidType)
	}
	clean := Sanitize(filename)
	if !Allowed(clean) {
		return "", apperror.ValidationFailed("file", MsgInvalidType)
	}

	f, name, err := s.create(clean)
	if err != nil {
		return "", fmt.Errorf("upload: creating file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("upload: writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("upload: closing %s: %w", name, err)
	}

	s.logger.Info("image uploaded", slog.String("name", name))
	return URLPrefix + name, nil
}

// create opens a new file named <timestamp>-<clean>, inserting a counter
// when that name is already taken.
func (s *Store) create(clean string) (*os.File, string, error) {
	stamp := s.now().UTC().Format(timestampLayout)
	for n := 0; n < maxNameAttempts; n++ {
		name := stamp + "-" + clean
		if n > 0 {
			name = fmt.Sprintf("%s-%d-%s", stamp, n, clean)
		}
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, name, nil
	}
	return nil, "", fmt.Errorf("no free name for %s", clean)
}

// Allowed reports whether filename has an accepted image extension.
func Allowed(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return false
	}
	return AllowedExtensions[strings.ToLower(filename[i+1:])]
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Sanitize reduces filename to a safe single path component: separators
// become spaces, whitespace runs become "_", anything outside
// [A-Za-z0-9_.-] is dropped and leading/trailing "." and "_" are trimmed.
// The result may be empty.
func Sanitize(filename string) string {
	filename = strings.NewReplacer("/", " ", "\\", " ").Replace(filename)
	filename = strings.Join(strings.Fields(filename), "_")
	filename = unsafeChars.ReplaceAllString(filename, "")
	return strings.Trim(filename, "._")
}
