package bot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrPhotoNotFound is returned when a stored photo does not exist.
var ErrPhotoNotFound = errors.New("photo not found")

var unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N} ._-]+`)

// PhotoStore keeps user photos in a flat directory.
type PhotoStore struct {
	dir string
}

// NewPhotoStore creates a store rooted at dir. The directory is created on
// first save.
func NewPhotoStore(dir string) *PhotoStore {
	return &PhotoStore{dir: dir}
}

// Dir returns the configured directory as given.
func (s *PhotoStore) Dir() string {
	return s.dir
}

// Save writes data under name and returns the path written.
func (s *PhotoStore) Save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create photo directory: %w", err)
	}
	path := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return path, nil
}

// Load reads the named photo. Only the base name is used, so callers cannot
// escape the directory.
func (s *PhotoStore) Load(name string) ([]byte, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: %q", ErrPhotoNotFound, name)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, base))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrPhotoNotFound, name)
		}
		return nil, fmt.Errorf("read photo: %w", err)
	}
	return data, nil
}

// photoFilename derives the stored name from the caption, or from the
// message id when there is none. The result always ends in .png, .jpg or
// .jpeg.
func photoFilename(caption string, messageID int) string {
	name := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(caption), "_")
	name = strings.Trim(name, " .")
	if name == "" {
		name = fmt.Sprintf("photo_%d.jpg", messageID)
	}

	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, ".png") && !strings.HasSuffix(lower, ".jpg") && !strings.HasSuffix(lower, ".jpeg") {
		name += ".jpg"
	}
	return name
}
