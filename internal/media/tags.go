package media

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// ErrNoTags is returned for files without a supported embedded tag block
var ErrNoTags = errors.New("no embedded tags")

// Tags is the embedded metadata of a media file. Phone and dictaphone
// recorders often put the device name in Artist and a timestamp in Title.
type Tags struct {
	Format   string `json:"format"`
	FileType string `json:"file_type"`
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Genre    string `json:"genre,omitempty"`
	Comment  string `json:"comment,omitempty"`
	Year     int    `json:"year,omitempty"`
}

// IsEmpty reports whether no text field is set
func (t *Tags) IsEmpty() bool {
	return t.Title == "" && t.Artist == "" && t.Album == "" && t.Genre == "" && t.Comment == "" && t.Year == 0
}

// ReadTags reads ID3, MP4 atoms, Vorbis comments or FLAC tags from path
func ReadTags(path string) (*Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return nil, ErrNoTags
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	return &Tags{
		Format:   string(m.Format()),
		FileType: string(m.FileType()),
		Title:    strings.TrimSpace(m.Title()),
		Artist:   strings.TrimSpace(m.Artist()),
		Album:    strings.TrimSpace(m.Album()),
		Genre:    strings.TrimSpace(m.Genre()),
		Comment:  strings.TrimSpace(m.Comment()),
		Year:     m.Year(),
	}, nil
}
