package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
)

const (
	// MinFreeBytes is the free space the vector store and ledger need.
	MinFreeBytes = 256 << 20

	// MinOpenFiles is the lowest open-file limit the watcher runs reliably with.
	MinOpenFiles = 256
)

// CheckDiskSpace reports the free space on the volume holding path. A path
// that does not exist yet is measured at its nearest existing parent.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	res := CheckResult{Name: "disk_space", Required: true}

	dir := existingParent(path)
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("cannot stat %s: %v", dir, err)
		return res
	}

	free := st.Bavail * uint64(st.Bsize)
	res.Message = fmt.Sprintf("%s free at %s", humanize.IBytes(free), dir)
	if free < MinFreeBytes {
		res.Status = StatusFail
		res.Details = fmt.Sprintf("the index needs at least %s", humanize.IBytes(MinFreeBytes))
		return res
	}
	res.Status = StatusPass
	return res
}

// CheckFileDescriptors reports the soft open-file limit. A low limit only
// matters for `serve --watch`, so it is a warning.
func (c *Checker) CheckFileDescriptors() CheckResult {
	res := CheckResult{Name: "file_descriptors"}

	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		res.Status = StatusWarn
		res.Message = fmt.Sprintf("cannot read limit: %v", err)
		return res
	}

	res.Message = fmt.Sprintf("soft limit %d", lim.Cur)
	if lim.Cur < MinOpenFiles {
		res.Status = StatusWarn
		res.Details = fmt.Sprintf("raise it with: ulimit -n %d", MinOpenFiles*4)
		return res
	}
	res.Status = StatusPass
	return res
}

func existingParent(path string) string {
	dir := filepath.Clean(path)
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
