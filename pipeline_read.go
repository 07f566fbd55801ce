package exr

import (
	"context"
	"io"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mandeep/goexr/internal/meta"
	"github.com/mandeep/goexr/internal/pool"
)

// NewAccumulator builds a caller-owned accumulator from the parsed headers,
// once, before any line is delivered. T is conventionally a pointer type so
// that Insert can mutate it across calls.
type NewAccumulator[T any] func(headers []meta.Header) (T, error)

// Insert delivers one decoded line to the caller's accumulator. Returning a
// non-nil error — conventionally Aborted — stops the pipeline at the next
// opportunity.
type Insert[T any] func(acc T, headers []meta.Header, line LineRef) error

// Filter is consulted once per chunk during a filtered read, before any
// chunk is decompressed, to decide whether it should be visited at all.
type Filter[T any] func(acc T, header *meta.Header, tile meta.BlockCoordinates) bool

// chunkSource yields the next chunk to decompress. ok is false once the
// source is exhausted; a non-nil error always means ok is false.
type chunkSource func() (c Chunk, ok bool, err error)

// sequentialChunkSource reads exactly `remaining` chunks from r in file
// order, without seeking.
func sequentialChunkSource(r io.Reader, md *meta.MetaData, remaining int) chunkSource {
	return func() (Chunk, bool, error) {
		if remaining <= 0 {
			return Chunk{}, false, nil
		}
		c, err := readChunkFrame(r, md.MultiPart, md.Headers)
		if err != nil {
			return Chunk{}, false, err
		}
		remaining--
		return c, true, nil
	}
}

// seekingChunkSource reads one chunk per entry of offsets, in order,
// seeking to each before reading its frame.
func seekingChunkSource(r io.ReadSeeker, md *meta.MetaData, offsets []uint64) chunkSource {
	i := 0
	return func() (Chunk, bool, error) {
		if i >= len(offsets) {
			return Chunk{}, false, nil
		}
		if _, err := r.Seek(int64(offsets[i]), io.SeekStart); err != nil {
			return Chunk{}, false, err
		}
		c, err := readChunkFrame(r, md.MultiPart, md.Headers)
		if err != nil {
			return Chunk{}, false, err
		}
		i++
		return c, true, nil
	}
}

// totalPixelBytes is the uncompressed pixel byte cost of every header's
// full-resolution data window, used to enforce ReadOptions.MaxPixelBytes
// before any chunk is touched.
func totalPixelBytes(md *meta.MetaData) int64 {
	var total int64
	for i := range md.Headers {
		h := &md.Headers[i]
		total += int64(h.DataWindowSize.Area()) * int64(h.Channels.BytesPerPixel())
	}
	return total
}

func checkMaxPixelBytes(op string, md *meta.MetaData, max int) error {
	if max <= 0 {
		return nil
	}
	want := totalPixelBytes(md)
	if want > int64(max) {
		return notEnoughMemoryErr(op, int(want), max)
	}
	return nil
}

// ReadAllLinesFromBuffered reads and decompresses every chunk of a file
// sequentially, without seeking: metadata is assumed already parsed into
// md, and r is positioned at the start of the offset-table region.
// r should be a buffered reader (e.g. *bufio.Reader);
// this function performs no buffering of its own.
func ReadAllLinesFromBuffered[T any](r io.Reader, md *meta.MetaData, newAcc NewAccumulator[T], insert Insert[T], opts ReadOptions) (T, error) {
	var zero T
	if err := checkMaxPixelBytes("ReadAllLinesFromBuffered", md, opts.MaxPixelBytes); err != nil {
		return zero, err
	}
	if err := skipOffsetTables(r, md); err != nil {
		return zero, ioErr("ReadAllLinesFromBuffered", err)
	}

	acc, err := newAcc(md.Headers)
	if err != nil {
		return zero, err
	}

	total := totalChunkCount(md)
	next := sequentialChunkSource(r, md, total)
	if err := runDecompressionCore(next, total, md, acc, insert, opts); err != nil {
		return zero, err
	}
	return acc, nil
}

// ReadFilteredLinesFromBuffered reads and decompresses only the chunks
// `filter` accepts, possibly seeking: metadata is assumed already parsed
// into md, and r is positioned at the start of the offset-table region.
// Accepted offsets are visited in ascending file
// order regardless of the order `filter` happens to accept them in.
func ReadFilteredLinesFromBuffered[T any](r io.ReadSeeker, md *meta.MetaData, newAcc NewAccumulator[T], filter Filter[T], insert Insert[T], opts ReadOptions) (T, error) {
	var zero T
	if err := checkMaxPixelBytes("ReadFilteredLinesFromBuffered", md, opts.MaxPixelBytes); err != nil {
		return zero, err
	}

	tables, err := readOffsetTables(r, md)
	if err != nil {
		return zero, ioErr("ReadFilteredLinesFromBuffered", err)
	}

	acc, err := newAcc(md.Headers)
	if err != nil {
		return zero, err
	}

	// Blocks are offered to the filter in increasing-y order, which is
	// also how each offset table is indexed regardless of the header's
	// line order.
	var offsets []uint64
	for hi := range md.Headers {
		header := &md.Headers[hi]
		for bi, bc := range header.BlocksIncreasingYOrder() {
			if filter(acc, header, bc) {
				offsets = append(offsets, tables[hi][bi])
			}
		}
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	next := seekingChunkSource(r, md, offsets)
	if err := runDecompressionCore(next, len(offsets), md, acc, insert, opts); err != nil {
		return zero, err
	}
	return acc, nil
}

// runDecompressionCore is the decompression core shared by both read entry
// points: it decides sequential vs. parallel mode, decompresses
// every chunk next yields, and delivers each resulting line to insert in
// the canonical per-block order. Lines of different blocks may be
// delivered in arbitrary order when running in parallel.
func runDecompressionCore[T any](next chunkSource, total int, md *meta.MetaData, acc T, insert Insert[T], opts ReadOptions) error {
	hasCompression := false
	for i := range md.Headers {
		if md.Headers[i].Compression != meta.Uncompressed {
			hasCompression = true
			break
		}
	}
	parallel := opts.ParallelDecompression && hasCompression

	processed := 0
	report := func() error {
		if opts.OnProgress == nil {
			return nil
		}
		fraction := 1.0
		if total > 0 {
			fraction = float64(processed) / float64(total)
		}
		return opts.OnProgress(fraction)
	}

	// Line views are only valid for the duration of the insert call; once a
	// block's lines are delivered its buffer goes back to the pool.
	deliver := func(block *UncompressedBlock) error {
		header := &md.Headers[block.Index.LayerIndex]
		for _, addr := range block.Index.LineIndices(header) {
			line := LineRef{Index: addr.Index, Bytes: block.Bytes[addr.ByteStart:addr.ByteEnd]}
			if err := insert(acc, md.Headers, line); err != nil {
				return err
			}
		}
		pool.Put(block.Bytes)
		return nil
	}

	if !parallel {
		for {
			c, ok, err := next()
			if err != nil {
				return ioErr("runDecompressionCore", err)
			}
			if !ok {
				return nil
			}
			block, err := DecompressChunk(c, md)
			if err != nil {
				return err
			}
			if err := deliver(block); err != nil {
				return err
			}
			processed++
			if err := report(); err != nil {
				return err
			}
		}
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(context.Background())
	chunks := make(chan Chunk, workers)
	results := make(chan *UncompressedBlock, workers)

	// Feeder: the only goroutine performing sequential I/O (reads, seeks).
	g.Go(func() error {
		defer close(chunks)
		for {
			c, ok, err := next()
			if err != nil {
				return ioErr("runDecompressionCore", err)
			}
			if !ok {
				return nil
			}
			select {
			case chunks <- c:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	// Workers: decompress only, no shared mutable state.
	var workersDone sync.WaitGroup
	workersDone.Add(workers)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			defer workersDone.Done()
			for c := range chunks {
				block, err := DecompressChunk(c, md)
				if err != nil {
					return err
				}
				select {
				case results <- block:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workersDone.Wait()
		close(results)
	}()

	// Single reader thread: line delivery and progress stay on one
	// goroutine.
	g.Go(func() error {
		for block := range results {
			if err := deliver(block); err != nil {
				return err
			}
			processed++
			if err := report(); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}
