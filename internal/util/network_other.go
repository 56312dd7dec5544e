//go:build !linux && !darwin

package util

import "syscall"

// Network detection is unsupported here; everything is treated as local
func detectPlatformNetwork(path string, stat *syscall.Statfs_t) (*NetworkInfo, error) {
	return &NetworkInfo{}, nil
}
