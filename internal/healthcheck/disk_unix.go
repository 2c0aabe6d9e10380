//go:build unix

package healthcheck

import "golang.org/x/sys/unix"

// diskUsagePercent returns the used fraction of the filesystem containing
// path, in percent.
func diskUsagePercent(path string) (float64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	total := st.Blocks * uint64(st.Bsize)
	if total == 0 {
		return 0, nil
	}
	free := st.Bavail * uint64(st.Bsize)
	return float64(total-free) / float64(total) * 100, nil
}
