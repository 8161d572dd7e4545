package colidx

import (
	"os"

	"github.com/colidx/colidx/ion"
)

// Params are the index construction parameters of spec.md §3/§6,
// validated at Create time.
type Params struct {
	ChunkSize      int
	SliceSize      int
	BlockSize      int
	SuperBlockSize int
	OptLevel       int
	ReordOpts      string
	Filters        string
	CacheSlots     int
	CacheBytes     int
}

func (p Params) validate() error {
	if p.ChunkSize <= 0 {
		return errf(AssertionViolation, "chunksize must be positive")
	}
	if p.SliceSize <= 0 || p.SliceSize%p.ChunkSize != 0 {
		return errf(AssertionViolation, "slicesize %d must be a positive multiple of chunksize %d", p.SliceSize, p.ChunkSize)
	}
	if p.BlockSize <= 0 || p.BlockSize%p.SliceSize != 0 {
		return errf(AssertionViolation, "blocksize %d must be a positive multiple of slicesize %d", p.BlockSize, p.SliceSize)
	}
	if p.SuperBlockSize <= 0 || p.SuperBlockSize%p.BlockSize != 0 {
		return errf(AssertionViolation, "superblocksize %d must be a positive multiple of blocksize %d", p.SuperBlockSize, p.BlockSize)
	}
	if p.OptLevel < 0 || p.OptLevel > 9 {
		return errf(AssertionViolation, "optlevel %d out of range [0,9]", p.OptLevel)
	}
	return nil
}

// Index is spec.md §6's producer/consumer API: it wires Ops, Params,
// BoundsArrays, LastRowBuffer, the two ChunkedArrays, LimBoundsCache,
// and the Optimizer into the operations named there.
type Index[T any] struct {
	Ops    Ops[T]
	Params Params

	Bound *BoundsArrays[T]
	Last  *LastRowBuffer[T]
	Data  ChunkedArray[T]
	IDs   ChunkedArray[int64]
	Cache *LimBoundsCache

	// ScratchDir is where the Optimizer creates its temporary sibling
	// file (spec.md §4.5). CachePath, if non-empty, is the sibling
	// LimBoundsCache snapshot file that Open restores from and Remove
	// deletes (SPEC_FULL.md's supplemented-features section).
	ScratchDir string
	CachePath  string

	// dirtyFlag mirrors the owning column's dirty flag (spec.md §6's
	// "dirty getter"); colidx itself never clears it — the container
	// does, once it has persisted whatever made the index dirty.
	dirtyFlag bool

	globallySorted bool
}

// Create builds a new, empty index over data/ids, per spec.md §6's
// create(). scratchDir and cachePath are as documented on Index.
func Create[T any](ops Ops[T], params Params, data ChunkedArray[T], ids ChunkedArray[int64], scratchDir, cachePath string) (*Index[T], error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Index[T]{
		Ops:        ops,
		Params:     params,
		Bound:      &BoundsArrays[T]{},
		Last:       NewLastRowBuffer[T](params.SliceSize, params.ChunkSize),
		Data:       data,
		IDs:        ids,
		Cache:      NewLimBoundsCache(params.CacheSlots, params.CacheBytes),
		ScratchDir: scratchDir,
		CachePath:  cachePath,
	}, nil
}

// Open recovers an index from metadata previously written by Save,
// reattaching it to the already-open data/ids arrays (populating all
// parameters from the stored attributes, per spec.md §6's open()), and
// restores the cache snapshot at cachePath, if one exists, before
// returning.
func Open[T any](ops Ops[T], data ChunkedArray[T], ids ChunkedArray[int64], metaPath, scratchDir, cachePath string) (*Index[T], error) {
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, wrapf(IOFailure, err, "read index metadata")
	}
	idx, err := decodeMeta(ops, raw)
	if err != nil {
		return nil, err
	}
	idx.Data = data
	idx.IDs = ids
	idx.ScratchDir = scratchDir
	idx.CachePath = cachePath
	idx.Cache = NewLimBoundsCache(idx.Params.CacheSlots, idx.Params.CacheBytes)
	if cachePath != "" {
		if err := idx.Cache.RestoreSnapshot(cachePath); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Save persists the index's parameters, BoundsArrays and LastRowBuffer
// to metaPath. The sorted/indices arrays themselves stay owned by the
// caller-provided ChunkedArray[T]/[int64] (spec.md §5: "owned by the
// index node in the container").
func (idx *Index[T]) Save(metaPath string) error {
	if err := os.WriteFile(metaPath, idx.encodeMeta(), 0o644); err != nil {
		return wrapf(IOFailure, err, "write index metadata")
	}
	return nil
}

func (idx *Index[T]) encodeMeta() []byte {
	var st ion.Symtab
	var body ion.Buffer
	body.BeginStruct(-1)

	body.BeginField(st.Intern("chunksize"))
	body.WriteInt(int64(idx.Params.ChunkSize))
	body.BeginField(st.Intern("slicesize"))
	body.WriteInt(int64(idx.Params.SliceSize))
	body.BeginField(st.Intern("blocksize"))
	body.WriteInt(int64(idx.Params.BlockSize))
	body.BeginField(st.Intern("superblocksize"))
	body.WriteInt(int64(idx.Params.SuperBlockSize))
	body.BeginField(st.Intern("optlevel"))
	body.WriteInt(int64(idx.Params.OptLevel))
	body.BeginField(st.Intern("reordopts"))
	body.WriteString(idx.Params.ReordOpts)
	body.BeginField(st.Intern("filters"))
	body.WriteString(idx.Params.Filters)
	body.BeginField(st.Intern("cacheslots"))
	body.WriteInt(int64(idx.Params.CacheSlots))
	body.BeginField(st.Intern("cachebytes"))
	body.WriteInt(int64(idx.Params.CacheBytes))
	body.BeginField(st.Intern("typekind"))
	body.WriteInt(int64(idx.Ops.Kind))
	body.BeginField(st.Intern("globallysorted"))
	body.WriteBool(idx.globallySorted)

	body.BeginField(st.Intern("bounds"))
	idx.Bound.Encode(&body, &st, idx.Ops)
	body.BeginField(st.Intern("lastrow"))
	idx.Last.Encode(&body, &st, idx.Ops)
	body.EndStruct()

	var out ion.Buffer
	out.StartChunk(&st)
	out.UnsafeAppend(body.Bytes())
	return out.Bytes()
}

func decodeMeta[T any](ops Ops[T], raw []byte) (*Index[T], error) {
	var st ion.Symtab
	rest, err := st.Unmarshal(raw)
	if err != nil {
		return nil, wrapf(IOFailure, err, "unmarshal index metadata")
	}

	idx := &Index[T]{Ops: ops}
	_, err = ion.UnpackStruct(&st, rest, func(name string, fbody []byte) error {
		switch name {
		case "chunksize":
			n, _, err := ion.ReadInt(fbody)
			idx.Params.ChunkSize = int(n)
			return err
		case "slicesize":
			n, _, err := ion.ReadInt(fbody)
			idx.Params.SliceSize = int(n)
			return err
		case "blocksize":
			n, _, err := ion.ReadInt(fbody)
			idx.Params.BlockSize = int(n)
			return err
		case "superblocksize":
			n, _, err := ion.ReadInt(fbody)
			idx.Params.SuperBlockSize = int(n)
			return err
		case "optlevel":
			n, _, err := ion.ReadInt(fbody)
			idx.Params.OptLevel = int(n)
			return err
		case "reordopts":
			s, _, err := ion.ReadString(fbody)
			idx.Params.ReordOpts = s
			return err
		case "filters":
			s, _, err := ion.ReadString(fbody)
			idx.Params.Filters = s
			return err
		case "cacheslots":
			n, _, err := ion.ReadInt(fbody)
			idx.Params.CacheSlots = int(n)
			return err
		case "cachebytes":
			n, _, err := ion.ReadInt(fbody)
			idx.Params.CacheBytes = int(n)
			return err
		case "typekind":
			_, _, err := ion.ReadInt(fbody) // informational; ops is caller-supplied
			return err
		case "globallysorted":
			v, _, err := ion.ReadBool(fbody)
			idx.globallySorted = v
			return err
		case "bounds":
			b, err := DecodeBoundsArrays[T](&st, fbody, ops)
			if err != nil {
				return err
			}
			idx.Bound = b
			return nil
		case "lastrow":
			l, err := DecodeLastRowBuffer[T](&st, fbody, idx.Params.SliceSize, idx.Params.ChunkSize, ops)
			if err != nil {
				return err
			}
			idx.Last = l
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Dirty mirrors the owning column's dirty flag (spec.md §6).
func (idx *Index[T]) Dirty() bool { return idx.dirtyFlag }

// MarkDirty is called by the container when the column it owns goes
// dirty (or by colidx itself after AssertionViolation, per spec.md
// §7's "index must be marked dirty and rebuilt").
func (idx *Index[T]) MarkDirty() { idx.dirtyFlag = true }

func (idx *Index[T]) appender() *Appender[T] {
	return &Appender[T]{
		Ops:   idx.Ops,
		CS:    idx.Params.ChunkSize,
		SS:    idx.Params.SliceSize,
		Bound: idx.Bound,
		Last:  idx.Last,
		Data:  idx.Data,
		IDs:   idx.IDs,
	}
}

// markDirtyOnFault marks the index dirty only for the fatal kinds
// spec.md §7 calls out as invariant breaks ("AssertionViolation ...
// index must be marked dirty and rebuilt"); a plain IOFailure from the
// backing store is the caller's problem to retry, not a broken index.
func (idx *Index[T]) markDirtyOnFault(err error) {
	var e *Error
	if ok := asError(err, &e); ok && (e.Kind == AssertionViolation || e.Kind == IndexOutOfRange) {
		idx.MarkDirty()
	}
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Append adds one full slice per spec.md §6's append(). len(values)
// must equal Params.SliceSize.
func (idx *Index[T]) Append(values []T) error {
	baseRow := idx.nelements()
	if err := idx.appender().Append(values, baseRow); err != nil {
		idx.markDirtyOnFault(err)
		return err
	}
	idx.Cache.Invalidate()
	return nil
}

// AppendLastRow fills the trailing partial slice, per spec.md §6's
// append_last_row(). totalRows is informational, matching the
// producer API's signature.
func (idx *Index[T]) AppendLastRow(values []T, totalRows int64) error {
	baseRow := idx.nelements()
	if err := idx.appender().AppendLastRow(values, baseRow, totalRows); err != nil {
		idx.markDirtyOnFault(err)
		return err
	}
	idx.Cache.Invalidate()
	return nil
}

// nelements is the total row count: full slices times slicesize, plus
// whatever is currently buffered in the last-row buffer.
func (idx *Index[T]) nelements() int64 {
	return int64(idx.Bound.NRows())*int64(idx.Params.SliceSize) + int64(idx.Last.N)
}

// Optimize runs optimize(level) per spec.md §6; level < 0 uses the
// persisted default (Params.OptLevel), matching the original's
// "or None" fallback without persisting a transient override
// (SPEC_FULL.md's supplemented-features section).
func (idx *Index[T]) Optimize(level int) error {
	if level < 0 {
		level = idx.Params.OptLevel
	}
	opt := &Optimizer[T]{
		Ops:        idx.Ops,
		CS:         idx.Params.ChunkSize,
		SS:         idx.Params.SliceSize,
		BS:         idx.Params.BlockSize,
		SBS:        idx.Params.SuperBlockSize,
		Bound:      idx.Bound,
		Data:       idx.Data,
		IDs:        idx.IDs,
		Cache:      idx.Cache,
		ScratchDir: idx.ScratchDir,
	}
	sorted, err := opt.Optimize(level)
	if err != nil {
		idx.markDirtyOnFault(err)
		return err
	}
	idx.globallySorted = sorted
	return nil
}

// Remove performs recursive removal per spec.md §6: it clears the
// in-memory cache and, if a cache snapshot file was ever configured,
// removes it too (the original's `_f_remove` cascading delete of both
// the index group and any orphaned cache file; SPEC_FULL.md's
// supplemented-features section). The caller is responsible for
// removing Data/IDs themselves, since their storage is owned by the
// hosting container, not by Index.
func (idx *Index[T]) Remove() error {
	idx.Cache.Invalidate()
	if idx.CachePath == "" {
		return nil
	}
	if err := os.Remove(idx.CachePath); err != nil && !os.IsNotExist(err) {
		return wrapf(IOFailure, err, "remove cache snapshot")
	}
	return nil
}

// LookupRange is get_lookup_range: translate an op/limit sequence into
// a closed [lo,hi] range, or report an empty query.
func (idx *Index[T]) LookupRange(tokens []CompareOp, limits []T) (lo, hi T, empty bool, err error) {
	return Translate(idx.Ops, tokens, limits)
}

// Search is spec.md §6's search(): produce per-slice starts[]/
// lengths[] for [lo,hi] and the total matched count.
func (idx *Index[T]) Search(lo, hi T) (total int, starts, lengths []int, err error) {
	s := &Searcher[T]{
		Ops:            idx.Ops,
		CS:             idx.Params.ChunkSize,
		SS:             idx.Params.SliceSize,
		Bound:          idx.Bound,
		Last:           idx.Last,
		Data:           idx.Data,
		Cache:          idx.Cache,
		GloballySorted: idx.globallySorted,
	}
	return s.Search(lo, hi)
}

// Coords is get_coords: the original row indices covered by starts/
// lengths (as returned by Search), starting at startCoord and
// returning at most maxCoords of them, walking the concatenation
// indices[i, starts[i]:starts[i]+lengths[i]] for i = 0..nrows-1.
func (idx *Index[T]) Coords(starts, lengths []int, startCoord, maxCoords int) ([]int64, error) {
	if len(starts) != len(lengths) {
		return nil, errf(AssertionViolation, "starts/lengths length mismatch: %d vs %d", len(starts), len(lengths))
	}
	var out []int64
	seen := 0
	row := make([]int64, idx.Params.SliceSize)
	nfull := idx.Bound.NRows()
	for i := range starts {
		if lengths[i] == 0 {
			continue
		}
		var vals []int64
		if i < nfull {
			if _, err := idx.IDs.ReadRow(i, row); err != nil {
				return nil, wrapf(IOFailure, err, "read indices %d", i)
			}
			vals = row[starts[i] : starts[i]+lengths[i]]
		} else {
			vals = idx.Last.Indices[starts[i] : starts[i]+lengths[i]]
		}
		for _, v := range vals {
			if seen < startCoord {
				seen++
				continue
			}
			if len(out) >= maxCoords {
				return out, nil
			}
			out = append(out, v)
			seen++
		}
	}
	return out, nil
}
