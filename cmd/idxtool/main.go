// idxtool is a small driver around colidx.Index, standing in for the
// hierarchical container spec.md §1 names as an external collaborator:
// it owns the sorted/indices ChunkedArray columns on disk as a pair of
// flat sidecar files next to the index metadata, exactly the division
// of labour spec.md §6 describes (colidx never touches a filesystem on
// its own).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/colidx/colidx"
	"sigs.k8s.io/yaml"
)

var (
	dashv       bool
	dashProfile string
	dashMeta    string
	dashScratch string
	dashCache   string
	dashCount   int
	dashSeed    int64
	dashLevel   int
	dashLo      int64
	dashHi      int64
)

func init() {
	flag.BoolVar(&dashv, "v", false, "verbose")
	flag.StringVar(&dashProfile, "profile", "", "sizing profile YAML (build only)")
	flag.StringVar(&dashMeta, "meta", "idx.meta", "index metadata file")
	flag.StringVar(&dashScratch, "scratch", os.TempDir(), "optimizer scratch directory")
	flag.StringVar(&dashCache, "cache", "", "LimBoundsCache snapshot file (optional)")
	flag.IntVar(&dashCount, "count", 100000, "fixture row count (build only)")
	flag.Int64Var(&dashSeed, "seed", 1, "fixture PRNG seed (build only)")
	flag.IntVar(&dashLevel, "level", -1, "optimize level (-1: build does not optimize; optimize uses the stored default)")
	flag.Int64Var(&dashLo, "lo", 0, "search lower limit")
	flag.Int64Var(&dashHi, "hi", 0, "search upper limit")
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func logf(f string, args ...interface{}) {
	if !dashv {
		return
	}
	if f[len(f)-1] != '\n' {
		f += "\n"
	}
	fmt.Fprintf(os.Stderr, f, args...)
}

// sizingProfile is the YAML shape of colidx.Params (spec.md §3's knobs:
// chunk/slice/block/superblock sizes, optimize level, reorder/filter
// hints, cache budget), decoded the way the teacher's db.Definition
// loader decodes table definitions.
type sizingProfile struct {
	ChunkSize      int    `json:"chunksize"`
	SliceSize      int    `json:"slicesize"`
	BlockSize      int    `json:"blocksize"`
	SuperBlockSize int    `json:"superblocksize"`
	OptLevel       int    `json:"optlevel"`
	ReordOpts      string `json:"reordopts"`
	Filters        string `json:"filters"`
	CacheSlots     int    `json:"cacheslots"`
	CacheBytes     int    `json:"cachebytes"`
}

func defaultProfile() sizingProfile {
	return sizingProfile{
		ChunkSize:      64,
		SliceSize:      1024,
		BlockSize:      8192,
		SuperBlockSize: 65536,
		OptLevel:       6,
		CacheSlots:     256,
		CacheBytes:     1 << 20,
	}
}

func loadProfile(path string) colidx.Params {
	p := defaultProfile()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			exitf("reading profile: %s\n", err)
		}
		if err := yaml.Unmarshal(raw, &p); err != nil {
			exitf("parsing profile: %s\n", err)
		}
	}
	return colidx.Params{
		ChunkSize:      p.ChunkSize,
		SliceSize:      p.SliceSize,
		BlockSize:      p.BlockSize,
		SuperBlockSize: p.SuperBlockSize,
		OptLevel:       p.OptLevel,
		ReordOpts:      p.ReordOpts,
		Filters:        p.Filters,
		CacheSlots:     p.CacheSlots,
		CacheBytes:     p.CacheBytes,
	}
}

func dataPath() string { return dashMeta + ".data" }
func idsPath() string  { return dashMeta + ".ids" }

// saveColumn dumps every row of a ChunkedArray[int64] to path as plain
// text, standing in for whatever the real container's columnar storage
// layer would do.
func saveColumn(path string, arr colidx.ChunkedArray[int64]) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%d %d\n", arr.Rows(), arr.Width())
	row := make([]int64, arr.Width())
	for i := 0; i < arr.Rows(); i++ {
		if _, err := arr.ReadRow(i, row); err != nil {
			return err
		}
		for j, v := range row {
			if j > 0 {
				w.WriteByte(' ')
			}
			fmt.Fprintf(w, "%d", v)
		}
		w.WriteByte('\n')
	}
	return w.Flush()
}

func loadColumn(path string) (colidx.ChunkedArray[int64], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<16), 1<<24)
	if !sc.Scan() {
		return nil, fmt.Errorf("%s: empty column file", path)
	}
	var rows, width int
	if _, err := fmt.Sscanf(sc.Text(), "%d %d", &rows, &width); err != nil {
		return nil, fmt.Errorf("%s: bad header: %w", path, err)
	}
	arr := colidx.NewMemChunkedArray[int64](width)
	row := make([]int64, width)
	for i := 0; i < rows; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("%s: truncated at row %d", path, i)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != width {
			return nil, fmt.Errorf("%s: row %d has %d fields, want %d", path, i, len(fields), width)
		}
		for j, tok := range fields {
			v, err := strconv.ParseInt(tok, 10, 64)
			if err != nil {
				return nil, err
			}
			row[j] = v
		}
		if _, err := arr.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return arr, nil
}

func build() {
	params := loadProfile(dashProfile)
	logf("building fixture: count=%d seed=%d chunksize=%d slicesize=%d", dashCount, dashSeed, params.ChunkSize, params.SliceSize)

	data := colidx.NewMemChunkedArray[int64](params.SliceSize)
	ids := colidx.NewMemChunkedArray[int64](params.SliceSize)
	idx, err := colidx.Create(colidx.Int64Ops(), params, data, ids, dashScratch, dashCache)
	if err != nil {
		exitf("create: %s\n", err)
	}

	rng := rand.New(rand.NewSource(dashSeed))
	ss := params.SliceSize
	slice := make([]int64, ss)
	row := 0
	for row+ss <= dashCount {
		for i := range slice {
			slice[i] = rng.Int63n(int64(dashCount) * 10)
		}
		if err := idx.Append(slice); err != nil {
			exitf("append: %s\n", err)
		}
		row += ss
	}
	if rem := dashCount - row; rem > 0 {
		last := make([]int64, rem)
		for i := range last {
			last[i] = rng.Int63n(int64(dashCount) * 10)
		}
		if err := idx.AppendLastRow(last, int64(dashCount)); err != nil {
			exitf("append last row: %s\n", err)
		}
	}

	if dashLevel >= 0 {
		if err := idx.Optimize(dashLevel); err != nil {
			exitf("optimize: %s\n", err)
		}
	}
	if err := idx.Save(dashMeta); err != nil {
		exitf("save: %s\n", err)
	}
	if err := saveColumn(dataPath(), data); err != nil {
		exitf("save data column: %s\n", err)
	}
	if err := saveColumn(idsPath(), ids); err != nil {
		exitf("save ids column: %s\n", err)
	}
	if dashCache != "" {
		if err := idx.Cache.SaveSnapshot(dashCache); err != nil {
			exitf("save cache: %s\n", err)
		}
	}
	logf("wrote %s (+%s, %s)", dashMeta, dataPath(), idsPath())
}

func reopen() *colidx.Index[int64] {
	data, err := loadColumn(dataPath())
	if err != nil {
		exitf("load data column: %s\n", err)
	}
	ids, err := loadColumn(idsPath())
	if err != nil {
		exitf("load ids column: %s\n", err)
	}
	idx, err := colidx.Open(colidx.Int64Ops(), data, ids, dashMeta, dashScratch, dashCache)
	if err != nil {
		exitf("open: %s\n", err)
	}
	return idx
}

func optimize() {
	idx := reopen()
	if err := idx.Optimize(dashLevel); err != nil {
		exitf("optimize: %s\n", err)
	}
	if err := idx.Save(dashMeta); err != nil {
		exitf("save: %s\n", err)
	}
	if err := saveColumn(dataPath(), idx.Data); err != nil {
		exitf("save data column: %s\n", err)
	}
	if err := saveColumn(idsPath(), idx.IDs); err != nil {
		exitf("save ids column: %s\n", err)
	}
	if dashCache != "" {
		if err := idx.Cache.SaveSnapshot(dashCache); err != nil {
			exitf("save cache: %s\n", err)
		}
	}
}

func search() {
	idx := reopen()
	total, starts, lengths, err := idx.Search(dashLo, dashHi)
	if err != nil {
		exitf("search: %s\n", err)
	}
	coords, err := idx.Coords(starts, lengths, 0, 100)
	if err != nil {
		exitf("coords: %s\n", err)
	}
	fmt.Printf("matched %d rows across %d slices\n", total, len(starts))
	fmt.Printf("first %d coords: %v\n", len(coords), coords)
	if dashCache != "" {
		if err := idx.Cache.SaveSnapshot(dashCache); err != nil {
			exitf("save cache: %s\n", err)
		}
	}
}

func stats() {
	idx := reopen()
	fmt.Printf("rows: %d\n", idx.Bound.NRows())
	fmt.Printf("dirty: %v\n", idx.Dirty())
	fmt.Printf("cache: hits=%d misses=%d evictions=%d\n", idx.Cache.Hits, idx.Cache.Misses, idx.Cache.Evictions)
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "usage:\n")
		fmt.Fprintf(os.Stderr, "    %s [-profile p.yaml] [-count n] [-seed s] [-level l] build\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "    %s [-level l] optimize\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "    %s -lo <n> -hi <n> search\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "    %s stats\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "flag usage:\n")
		flag.Usage()
		os.Exit(1)
	}
	switch args[0] {
	case "build":
		build()
	case "optimize":
		optimize()
	case "search":
		search()
	case "stats":
		stats()
	default:
		exitf("commands: build, optimize, search, stats\n")
	}
}
