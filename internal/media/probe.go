// Package media probes audio and video files with ffprobe.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrFFprobeMissing is returned when ffprobe is not on PATH
var ErrFFprobeMissing = errors.New("ffprobe not found in PATH")

// Extensions accepted by the importer
var (
	AudioExtensions = map[string]bool{
		".mp3": true, ".wav": true, ".m4a": true, ".aac": true,
		".flac": true, ".ogg": true, ".opus": true, ".wma": true,
	}
	VideoExtensions = map[string]bool{
		".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".webm": true,
	}
)

// IsMediaFile reports whether path has an audio or video extension
func IsMediaFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return AudioExtensions[ext] || VideoExtensions[ext]
}

// IsVideoFile reports whether path has a video extension
func IsVideoFile(path string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(path))]
}

// ProbeOutput is the subset of ffprobe's JSON output used here
type ProbeOutput struct {
	Streams []ProbeStream `json:"streams"`
	Format  *ProbeFormat  `json:"format"`
}

// ProbeStream is one stream of the container
type ProbeStream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Duration   string `json:"duration"`
}

// ProbeFormat is the container metadata
type ProbeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// Info summarizes a probed file
type Info struct {
	Duration   float64 // seconds, 0 when unknown
	FormatName string
	HasAudio   bool
	HasVideo   bool
	BitRate    int // bits per second, 0 when unknown
}

// Probe runs ffprobe on path
func Probe(ctx context.Context, path string) (*Info, error) {
	if !CheckFFprobeAvailable() {
		return nil, ErrFFprobeMissing
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe failed on %s: %s", path, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	return ParseProbeOutput(output)
}

// ParseProbeOutput decodes ffprobe JSON. The container duration wins; the
// longest stream is used when the container has none.
func ParseProbeOutput(data []byte) (*Info, error) {
	var out ProbeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &Info{}
	if out.Format != nil {
		info.FormatName = out.Format.FormatName
		info.Duration = parseSeconds(out.Format.Duration)
		info.BitRate, _ = strconv.Atoi(out.Format.BitRate)
	}

	var longest float64
	for _, s := range out.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
		case "video":
			// cover art is reported as a video stream
			if s.CodecName != "mjpeg" && s.CodecName != "png" {
				info.HasVideo = true
			}
		}
		if d := parseSeconds(s.Duration); d > longest {
			longest = d
		}
	}
	if info.Duration == 0 {
		info.Duration = longest
	}

	return info, nil
}

// parseSeconds returns 0 for empty, "N/A", negative or malformed values
func parseSeconds(s string) float64 {
	if s == "" || s == "N/A" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// CheckFFprobeAvailable checks if ffprobe is available in PATH
func CheckFFprobeAvailable() bool {
	_, err := exec.LookPath("ffprobe")
	return err == nil
}
