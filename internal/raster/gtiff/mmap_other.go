//go:build !unix

package gtiff

import (
	"io"
	"os"
)

// mmapFile falls back to a full read on platforms without mmap support:
// correctness over the memory-mapped fast path.
func mmapFile(f *os.File) ([]byte, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}

func munmapFile(data []byte) error {
	return nil
}
