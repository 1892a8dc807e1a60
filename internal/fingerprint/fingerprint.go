// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fingerprint derives a file's cache key from its size, its
// modification time and a bounded sample of its bytes.
//
// Files up to 2*SampleSize bytes are hashed whole. Larger files contribute
// only their first and last SampleSize bytes, so an edit confined to the
// interior that preserves size and mtime does not change the fingerprint.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pdiddy/docwalk/pkg/types"
)

// SampleSize is the number of bytes taken from each end of a large file.
const SampleSize = 1024

// File fingerprints the file at path. It returns the FileInfo used so the
// caller does not need a second stat.
func File(path string) (types.Fingerprint, os.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", nil, fmt.Errorf("stat %s: %w", path, err)
	}

	fp, err := Compute(f, info.Size(), info.ModTime())
	if err != nil {
		return "", nil, fmt.Errorf("sampling %s: %w", path, err)
	}
	return fp, info, nil
}

// Compute fingerprints content of the given size and modification time.
func Compute(r io.ReaderAt, size int64, modTime time.Time) (types.Fingerprint, error) {
	sample, err := readSample(r, size)
	if err != nil {
		return "", err
	}

	h := md5.New()
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write([]byte{'_'})
	h.Write([]byte(strconv.FormatInt(modTime.UnixNano(), 10)))
	h.Write([]byte{'_'})
	h.Write(sample)

	return types.Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

func readSample(r io.ReaderAt, size int64) ([]byte, error) {
	if size <= 2*SampleSize {
		buf := make([]byte, size)
		if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
			return nil, err
		}
		return buf, nil
	}

	buf := make([]byte, 2*SampleSize)
	if _, err := r.ReadAt(buf[:SampleSize], 0); err != nil {
		return nil, err
	}
	if _, err := r.ReadAt(buf[SampleSize:], size-SampleSize); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}
