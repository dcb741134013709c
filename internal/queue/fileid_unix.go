//go:build unix

package queue

import (
	"io/fs"
	"syscall"
)

func fileID(info fs.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Ino)
	}
	return 0
}
