//go:build !windows

package precheck

import "syscall"

func freeDiskBytes(path string) (uint64, error) {
	var fs syscall.Statfs_t
	if err := syscall.Statfs(path, &fs); err != nil {
		return 0, err
	}
	// #nosec G115 -- block size is always small and positive
	return fs.Bavail * uint64(fs.Bsize), nil
}
