//go:build linux

package util

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Kernel VFS magic numbers of network filesystems
var networkMagic = map[uint32]string{
	0x6969:     "nfs",
	0xff534d42: "cifs",
	0x517b:     "smb",
	0x01021994: "smbfs",
	0x564c:     "ncp",
	0xfe534d42: "smb2",
}

var networkFsTypes = []string{"nfs", "cifs", "smb", "ncpfs", "fuse.sshfs", "fuse.rclone", "9p"}

func detectPlatformNetwork(path string, stat *syscall.Statfs_t) (*NetworkInfo, error) {
	info := &NetworkInfo{}

	if proto, ok := networkMagic[uint32(stat.Type)]; ok {
		info.IsNetwork = true
		info.Protocol = proto
	}

	mounts, err := parseProcMounts()
	if err != nil {
		// magic number only
		return info, nil
	}

	mountPoint := longestMountPrefix(path, mounts)
	if mountPoint == "" {
		return info, nil
	}

	fsType := strings.ToLower(mounts[mountPoint])
	for _, t := range networkFsTypes {
		if strings.Contains(fsType, t) {
			info.IsNetwork = true
			info.Protocol = fsType
			info.MountPath = mountPoint
			break
		}
	}

	return info, nil
}

// longestMountPrefix returns the mount point containing path, matching on
// whole path components so /mnt/nas does not claim /mnt/nas2
func longestMountPrefix(path string, mounts map[string]string) string {
	best := ""
	for mountPoint := range mounts {
		rel, err := filepath.Rel(mountPoint, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
			continue
		}
		if len(mountPoint) > len(best) {
			best = mountPoint
		}
	}
	return best
}

// parseProcMounts maps mount points to filesystem types
func parseProcMounts() (map[string]string, error) {
	file, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mounts := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		// device mountpoint fstype options dump pass
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts[fields[1]] = fields[2]
	}

	return mounts, scanner.Err()
}
