package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Accepted date_created layouts
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Recording status values derived from transcript state
const (
	StatusPending     = "pending"
	StatusTranscribed = "transcribed"
	StatusCompleted   = "completed"
)

// Recording represents one media item
type Recording struct {
	ID                     int64   `json:"id"`
	Filename               string  `json:"filename"`
	FilePath               string  `json:"file_path"`
	DateCreated            string  `json:"date_created"`
	Duration               float64 `json:"duration"` // seconds
	RawTranscript          string  `json:"raw_transcript,omitempty"`
	ProcessedText          string  `json:"processed_text,omitempty"`
	RawTranscriptFormatted string  `json:"raw_transcript_formatted,omitempty"`
	ProcessedTextFormatted string  `json:"processed_text_formatted,omitempty"`
}

// RecordingUpdate names the fields to change; nil fields are left untouched
type RecordingUpdate struct {
	Filename               *string
	FilePath               *string
	DateCreated            *string
	Duration               *float64
	RawTranscript          *string
	ProcessedText          *string
	RawTranscriptFormatted *string
	ProcessedTextFormatted *string
}

// Validate checks the fields required to insert a recording
func (r *Recording) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Filename, validation.Required, validation.By(notBlank)),
		validation.Field(&r.FilePath, validation.Required, validation.By(safePath)),
		validation.Field(&r.DateCreated, validation.Required, validation.By(dateCreated)),
		validation.Field(&r.Duration, validation.Min(0.0)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecording, err)
	}
	return nil
}

// IsTranscribed reports whether a raw transcript exists
func (r *Recording) IsTranscribed() bool {
	return r.RawTranscript != ""
}

// IsProcessed reports whether processed text exists
func (r *Recording) IsProcessed() bool {
	return r.ProcessedText != ""
}

// Status returns pending, transcribed or completed
func (r *Recording) Status() string {
	switch {
	case r.IsProcessed():
		return StatusCompleted
	case r.IsTranscribed():
		return StatusTranscribed
	default:
		return StatusPending
	}
}

// DisplayDuration formats the duration as M:SS or H:MM:SS
func (r *Recording) DisplayDuration() string {
	return FormatSeconds(r.Duration)
}

// EstimateFileSize estimates the encoded size in bytes at the given bitrate (128 when <= 0)
func (r *Recording) EstimateFileSize(bitrateKbps int) int64 {
	if bitrateKbps <= 0 {
		bitrateKbps = 128
	}
	bytesPerSec := int64(bitrateKbps) * 1000 / 8
	if r.Duration <= 0 {
		return 0
	}
	return int64(r.Duration * float64(bytesPerSec))
}

// CreatedAt parses DateCreated; the zero time is returned when it does not parse
func (r *Recording) CreatedAt() time.Time {
	for _, layout := range []string{DateTimeLayout, DateLayout} {
		if t, err := time.ParseInLocation(layout, r.DateCreated, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FormatSeconds floors fractional seconds; negative values render as 0:00
func FormatSeconds(total float64) string {
	seconds := int(total)
	if seconds < 0 {
		seconds = 0
	}
	h, rem := seconds/3600, seconds%3600
	m, s := rem/60, rem%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// columns returns the SET assignments and values for the named fields
func (u RecordingUpdate) columns() ([]string, []any, error) {
	var (
		sets []string
		args []any
		errs validation.Errors = validation.Errors{}
	)

	if u.Filename != nil {
		if err := notBlank(*u.Filename); err != nil {
			errs["filename"] = err
		}
		sets, args = append(sets, "filename = ?"), append(args, *u.Filename)
	}
	if u.FilePath != nil {
		if err := safePath(*u.FilePath); err != nil {
			errs["file_path"] = err
		}
		sets, args = append(sets, "file_path = ?"), append(args, *u.FilePath)
	}
	if u.DateCreated != nil {
		if err := dateCreated(*u.DateCreated); err != nil {
			errs["date_created"] = err
		}
		sets, args = append(sets, "date_created = ?"), append(args, *u.DateCreated)
	}
	if u.Duration != nil {
		if *u.Duration < 0 {
			errs["duration"] = errors.New("must be no less than 0")
		}
		sets, args = append(sets, "duration = ?"), append(args, *u.Duration)
	}
	if u.RawTranscript != nil {
		sets, args = append(sets, "raw_transcript = ?"), append(args, nullString(*u.RawTranscript))
	}
	if u.ProcessedText != nil {
		sets, args = append(sets, "processed_text = ?"), append(args, nullString(*u.ProcessedText))
	}
	if u.RawTranscriptFormatted != nil {
		sets, args = append(sets, "raw_transcript_formatted = ?"), append(args, nullString(*u.RawTranscriptFormatted))
	}
	if u.ProcessedTextFormatted != nil {
		sets, args = append(sets, "processed_text_formatted = ?"), append(args, nullString(*u.ProcessedTextFormatted))
	}

	if len(errs) > 0 {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRecording, errs)
	}
	return sets, args, nil
}

// IsEmpty reports whether no field is named
func (u RecordingUpdate) IsEmpty() bool {
	return u.Filename == nil && u.FilePath == nil && u.DateCreated == nil && u.Duration == nil &&
		u.RawTranscript == nil && u.ProcessedText == nil &&
		u.RawTranscriptFormatted == nil && u.ProcessedTextFormatted == nil
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

// safePath rejects empty paths and ".." components
func safePath(value interface{}) error {
	p, _ := value.(string)
	if strings.TrimSpace(p) == "" {
		return errors.New("cannot be blank")
	}
	for _, part := range strings.Split(filepath.ToSlash(strings.ReplaceAll(p, `\`, "/")), "/") {
		if part == ".." {
			return errors.New("must not contain parent directory references")
		}
	}
	return nil
}

func dateCreated(value interface{}) error {
	s, _ := value.(string)
	for _, layout := range []string{DateLayout, DateTimeLayout} {
		if _, err := time.Parse(layout, s); err == nil {
			return nil
		}
	}
	return fmt.Errorf("must be in %q or %q format", DateLayout, DateTimeLayout)
}
