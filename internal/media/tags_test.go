package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// id3v23 builds a minimal ID3v2.3 tag holding one TIT2 frame
func id3v23(title string) []byte {
	frame := append([]byte{0x00}, title...) // ISO-8859-1
	size := len(frame)

	var b []byte
	b = append(b, 'I', 'D', '3', 0x03, 0x00, 0x00)
	tagSize := 10 + size
	b = append(b, byte(tagSize>>21&0x7f), byte(tagSize>>14&0x7f), byte(tagSize>>7&0x7f), byte(tagSize&0x7f))
	b = append(b, 'T', 'I', 'T', '2')
	b = append(b, byte(size>>24), byte(size>>16), byte(size>>8), byte(size))
	b = append(b, 0x00, 0x00)
	b = append(b, frame...)
	return b
}

func TestReadTags(t *testing.T) {
	dir := t.TempDir()

	tagged := filepath.Join(dir, "standup.mp3")
	if err := os.WriteFile(tagged, append(id3v23("Standup 2024-06-03"), make([]byte, 64)...), 0644); err != nil {
		t.Fatal(err)
	}
	tags, err := ReadTags(tagged)
	if err != nil {
		t.Fatalf("ReadTags failed: %v", err)
	}
	if tags.Title != "Standup 2024-06-03" {
		t.Errorf("expected title from TIT2, got %q", tags.Title)
	}
	if tags.IsEmpty() {
		t.Error("tags with a title should not be empty")
	}

	plain := filepath.Join(dir, "notes.wav")
	// long enough to hold a trailing ID3v1 block
	if err := os.WriteFile(plain, make([]byte, 512), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadTags(plain); !errors.Is(err, ErrNoTags) {
		t.Errorf("expected ErrNoTags, got %v", err)
	}

	if _, err := ReadTags(filepath.Join(dir, "missing.m4a")); err == nil || errors.Is(err, ErrNoTags) {
		t.Errorf("expected an open error for a missing file, got %v", err)
	}
}
