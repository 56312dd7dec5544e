package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseProbeOutput(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		duration  float64
		hasAudio  bool
		hasVideo  bool
		format    string
		expectErr bool
	}{
		{
			name: "audio with container duration",
			input: `{
				"streams": [{"index": 0, "codec_name": "mp3", "codec_type": "audio", "duration": "61.0"}],
				"format": {"format_name": "mp3", "duration": "61.512000", "bit_rate": "128000"}
			}`,
			duration: 61.512,
			hasAudio: true,
			format:   "mp3",
		},
		{
			name: "video falls back to longest stream",
			input: `{
				"streams": [
					{"index": 0, "codec_name": "h264", "codec_type": "video", "duration": "120.2"},
					{"index": 1, "codec_name": "aac", "codec_type": "audio", "duration": "120.5"}
				],
				"format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "N/A"}
			}`,
			duration: 120.5,
			hasAudio: true,
			hasVideo: true,
			format:   "mov,mp4,m4a,3gp,3g2,mj2",
		},
		{
			name: "cover art is not video",
			input: `{
				"streams": [
					{"index": 0, "codec_name": "mp3", "codec_type": "audio"},
					{"index": 1, "codec_name": "mjpeg", "codec_type": "video"}
				],
				"format": {"format_name": "mp3", "duration": "10"}
			}`,
			duration: 10,
			hasAudio: true,
			format:   "mp3",
		},
		{
			name:     "no format",
			input:    `{"streams": []}`,
			duration: 0,
		},
		{
			name:      "malformed",
			input:     `{"streams": [`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseProbeOutput([]byte(tt.input))
			if tt.expectErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if info.Duration != tt.duration {
				t.Errorf("expected duration %v, got %v", tt.duration, info.Duration)
			}
			if info.HasAudio != tt.hasAudio || info.HasVideo != tt.hasVideo {
				t.Errorf("expected audio=%v video=%v, got audio=%v video=%v",
					tt.hasAudio, tt.hasVideo, info.HasAudio, info.HasVideo)
			}
			if info.FormatName != tt.format {
				t.Errorf("expected format %q, got %q", tt.format, info.FormatName)
			}
		})
	}
}

func TestParseSeconds(t *testing.T) {
	tests := map[string]float64{
		"":       0,
		"N/A":    0,
		"abc":    0,
		"-3":     0,
		"0":      0,
		"12.25":  12.25,
		"3600.0": 3600,
	}
	for in, want := range tests {
		if got := parseSeconds(in); got != want {
			t.Errorf("parseSeconds(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsMediaFile(t *testing.T) {
	tests := []struct {
		path  string
		media bool
		video bool
	}{
		{"/rec/a.mp3", true, false},
		{"/rec/B.WAV", true, false},
		{"/rec/clip.MOV", true, true},
		{"/rec/talk.mkv", true, true},
		{"/rec/notes.txt", false, false},
		{"/rec/noext", false, false},
	}
	for _, tt := range tests {
		if got := IsMediaFile(tt.path); got != tt.media {
			t.Errorf("IsMediaFile(%s) = %v, want %v", tt.path, got, tt.media)
		}
		if got := IsVideoFile(tt.path); got != tt.video {
			t.Errorf("IsVideoFile(%s) = %v, want %v", tt.path, got, tt.video)
		}
	}
}

func TestProbe(t *testing.T) {
	if !CheckFFprobeAvailable() {
		_, err := Probe(context.Background(), "/nonexistent.wav")
		if !errors.Is(err, ErrFFprobeMissing) {
			t.Errorf("expected ErrFFprobeMissing, got %v", err)
		}
		return
	}

	// not a media file, so ffprobe must fail
	path := filepath.Join(t.TempDir(), "bogus.wav")
	if err := os.WriteFile(path, []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Probe(context.Background(), path); err == nil {
		t.Error("expected ffprobe to fail on a non-media file")
	}
}
