package util

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// NetworkInfo describes the filesystem a path lives on
type NetworkInfo struct {
	IsNetwork bool   // Whether the filesystem is network-mounted
	Protocol  string // nfs, cifs, smbfs... or empty if local
	MountPath string // Mount point, when known
}

func (n *NetworkInfo) String() string {
	if n == nil || !n.IsNetwork {
		return "local"
	}
	if n.MountPath != "" {
		return fmt.Sprintf("%s (%s)", n.Protocol, n.MountPath)
	}
	return n.Protocol
}

// DetectNetworkFilesystem reports whether path is on a network mount.
// Paths that do not exist yet, such as a database about to be created,
// are resolved against their nearest existing ancestor.
func DetectNetworkFilesystem(path string) (*NetworkInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	existing := nearestExisting(absPath)

	var stat syscall.Statfs_t
	if err := syscall.Statfs(existing, &stat); err != nil {
		return nil, fmt.Errorf("failed to stat filesystem: %w", err)
	}

	return detectPlatformNetwork(existing, &stat)
}

// IsNetworkPath is DetectNetworkFilesystem reduced to a bool; errors count as local
func IsNetworkPath(path string) bool {
	info, err := DetectNetworkFilesystem(path)
	if err != nil {
		return false
	}
	return info.IsNetwork
}

func nearestExisting(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
