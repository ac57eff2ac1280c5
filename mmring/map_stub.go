//go:build !unix || tinygo

package mmring

import "os"

func mapFile(f *os.File, size int) ([]byte, error) {
	return nil, ErrUnsupported
}

func unmapFile(data []byte) error { return nil }

func syncMap(data []byte) error { return nil }
