package cache

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/uber/depbuilder/src/depbuilder/internal/fs"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"
)

// _contentDomainKey separates content digests from any other use of the same hash.
// It is the ASCII name of the domain, zero-padded to 32 bytes.
var _contentDomainKey = [32]byte{
	'd', 'e', 'p', 'b', 'u', 'i', 'l', 'd', 'e', 'r', '.', 'c', 'a', 'c', 'h', 'e',
	'.', 'c', 'o', 'n', 't', 'e', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0,
}

// Digest is the hex encoded keyed BLAKE3 hash of data.
func Digest(data []byte) string {
	hasher, err := blake3.NewKeyed(_contentDomainKey[:])
	if err != nil {
		panic("cache: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// Content is a file's bytes together with their digest.
type Content struct {
	Path string
	Hash string
	Data []byte
}

// Hasher reads and digests files. Concurrent reads of the same path share one read.
type Hasher struct {
	fs    fs.FS
	group singleflight.Group
}

// NewHasher returns a Hasher reading through fs.
func NewHasher(fs fs.FS) *Hasher {
	return &Hasher{fs: fs}
}

// Hash returns the current content of path with its digest.
func (h *Hasher) Hash(ctx context.Context, path string) (*Content, error) {
	ch := h.group.DoChan(path, func() (interface{}, error) {
		data, err := h.fs.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return &Content{Path: path, Hash: Digest(data), Data: data}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Content), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
