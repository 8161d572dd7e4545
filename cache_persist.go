package colidx

import (
	"encoding/binary"
	"os"

	"github.com/colidx/colidx/compr"
)

// Snapshot persistence for LimBoundsCache: spec.md §5 calls this
// "restorecache()", an idempotent, lazily-invoked operation that
// repopulates the cache from a sibling file after reopening the
// index, so a warm cache survives a close/open cycle instead of
// paying for every query's binary search again on first use.
//
// The on-disk format is a zstd-compressed flat encoding (via the
// teacher's compr package, the same one Optimizer scratch snapshots
// would use were scratch-file compression not explicitly disabled by
// spec.md §4.5): a little-endian uncompressed-length prefix, then the
// compressed payload of [count][key,n,(slice,start,length)*n]...

const snapshotCodec = "zstd"

func (c *LimBoundsCache) encodeFlat() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(len(c.entries)))
	for key, e := range c.entries {
		var kb [8]byte
		binary.LittleEndian.PutUint64(kb[:], key)
		buf = append(buf, kb[:]...)
		var nb [8]byte
		binary.LittleEndian.PutUint64(nb[:], uint64(len(e.spans)))
		buf = append(buf, nb[:]...)
		for _, sp := range e.spans {
			var t [24]byte
			binary.LittleEndian.PutUint64(t[0:8], uint64(sp.Slice))
			binary.LittleEndian.PutUint64(t[8:16], uint64(sp.Start))
			binary.LittleEndian.PutUint64(t[16:24], uint64(sp.Length))
			buf = append(buf, t[:]...)
		}
	}
	return buf
}

func decodeFlat(buf []byte) (map[uint64][]sliceSpan, error) {
	if len(buf) < 8 {
		return nil, errf(IOFailure, "truncated cache snapshot")
	}
	n := binary.LittleEndian.Uint64(buf[:8])
	buf = buf[8:]
	out := make(map[uint64][]sliceSpan, n)
	for i := uint64(0); i < n; i++ {
		if len(buf) < 16 {
			return nil, errf(IOFailure, "truncated cache snapshot entry")
		}
		key := binary.LittleEndian.Uint64(buf[0:8])
		cnt := binary.LittleEndian.Uint64(buf[8:16])
		buf = buf[16:]
		spans := make([]sliceSpan, cnt)
		for j := uint64(0); j < cnt; j++ {
			if len(buf) < 24 {
				return nil, errf(IOFailure, "truncated cache snapshot triple")
			}
			spans[j] = sliceSpan{
				Slice:  int(binary.LittleEndian.Uint64(buf[0:8])),
				Start:  int(binary.LittleEndian.Uint64(buf[8:16])),
				Length: int(binary.LittleEndian.Uint64(buf[16:24])),
			}
			buf = buf[24:]
		}
		out[key] = spans
	}
	return out, nil
}

// SaveSnapshot writes the cache's current contents to path.
func (c *LimBoundsCache) SaveSnapshot(path string) error {
	flat := c.encodeFlat()
	var hdr [8]byte
	binary.LittleEndian.PutUint64(hdr[:], uint64(len(flat)))
	compressed := compr.Compression(snapshotCodec).Compress(flat, nil)
	out := append(hdr[:], compressed...)
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return wrapf(IOFailure, err, "write cache snapshot")
	}
	return nil
}

// RestoreSnapshot loads and merges a snapshot written by SaveSnapshot.
// Idempotent: calling it twice just re-merges the same entries. A
// missing file is not an error; the cache simply starts cold.
func (c *LimBoundsCache) RestoreSnapshot(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return wrapf(IOFailure, err, "read cache snapshot")
	}
	if len(raw) < 8 {
		return errf(IOFailure, "truncated cache snapshot header")
	}
	n := binary.LittleEndian.Uint64(raw[:8])
	dst := make([]byte, n)
	if n > 0 {
		if err := compr.Decompression(snapshotCodec).Decompress(raw[8:], dst); err != nil {
			return wrapf(IOFailure, err, "decompress cache snapshot")
		}
	}
	entries, err := decodeFlat(dst)
	if err != nil {
		return err
	}
	for key, spans := range entries {
		c.Set(key, spans)
	}
	return nil
}
