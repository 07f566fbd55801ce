package exr

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/mandeep/goexr/internal/meta"
	"github.com/mandeep/goexr/internal/pool"
)

// GetLine supplies one line's worth of sample bytes during a write. It must
// write into line.Bytes only; returning a non-nil error — conventionally
// Aborted — stops the pipeline at the next opportunity.
type GetLine func(headers []meta.Header, line LineRefMut) error

// trackingWriter wraps an io.WriteSeeker and tracks its absolute byte
// position locally, so the write pipeline can record chunk offsets without
// issuing a Seek(0, io.SeekCurrent) after every write.
type trackingWriter struct {
	w   io.WriteSeeker
	pos int64
}

func newTrackingWriter(w io.WriteSeeker, start int64) *trackingWriter {
	return &trackingWriter{w: w, pos: start}
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	t.pos += int64(n)
	return n, err
}

func (t *trackingWriter) Seek(offset int64, whence int) (int64, error) {
	pos, err := t.w.Seek(offset, whence)
	if err == nil {
		t.pos = pos
	}
	return pos, err
}

// blockJob identifies one uncompressed block still to be produced,
// compressed and written: its owning layer, its index within that layer's
// offset table, and the block coordinates needed to resolve its pixel
// rectangle.
type blockJob struct {
	layerIndex int
	chunkIndex int
	bc         meta.BlockCoordinates
}

// enumerateBlockJobs flattens every header's declared chunk order into
// one job list, header by header. The job list order is the exact order
// in which chunks must land in the file when a header requires ordering
// (the "expected_id_order" used by the sorting write path); each job's
// chunkIndex is its increasing-y offset-table slot, which only differs
// from the job's position under a Decreasing line order.
func enumerateBlockJobs(md *meta.MetaData) []blockJob {
	var jobs []blockJob
	for li := range md.Headers {
		tableSlot := make(map[meta.BlockCoordinates]int)
		for i, bc := range md.Headers[li].BlocksIncreasingYOrder() {
			tableSlot[bc] = i
		}
		for _, bc := range md.Headers[li].EnumerateOrderedBlocks() {
			jobs = append(jobs, blockJob{layerIndex: li, chunkIndex: tableSlot[bc], bc: bc})
		}
	}
	return jobs
}

// buildBlock materializes one uncompressed block by calling getLine for
// every line_indices entry in the block's canonical interleave, growing the
// backing buffer from an initial ~512KiB cap up to the header's true
// worst-case block size as needed, then truncating to what was actually
// written.
func buildBlock(md *meta.MetaData, getLine GetLine, job blockJob) (*UncompressedBlock, error) {
	header := &md.Headers[job.layerIndex]
	rect := header.GetAbsoluteBlockIndices(job.bc)
	blockIndex := BlockIndex{
		LayerIndex:    job.layerIndex,
		Level:         job.bc.Level,
		PixelPosition: rect.Position,
		PixelSize:     rect.Size,
	}

	const initialCap = 512 * 1024
	maxSize := header.MaxBlockByteSize()
	bufCap := maxSize
	if bufCap > initialCap {
		bufCap = initialCap
	}
	buf := pool.Get(bufCap)
	written := 0

	for _, addr := range blockIndex.LineIndices(header) {
		if len(buf) < addr.ByteEnd {
			grown := addr.ByteEnd + initialCap
			if grown > maxSize {
				grown = maxSize
			}
			if grown < addr.ByteEnd {
				grown = addr.ByteEnd
			}
			grownBuf := pool.Get(grown)
			copy(grownBuf, buf)
			pool.Put(buf)
			buf = grownBuf
		}
		if err := getLine(md.Headers, LineRefMut{Index: addr.Index, Bytes: buf[addr.ByteStart:addr.ByteEnd]}); err != nil {
			return nil, err
		}
		written = addr.ByteEnd
	}

	return &UncompressedBlock{Index: blockIndex, Bytes: buf[:written]}, nil
}

// writeOneChunkFunc records a chunk's starting file offset and writes its
// on-disk framing, reporting progress afterward.
type writeOneChunkFunc func(layerIndex, chunkIndex int, c Chunk) error

// validatePedantic rejects metadata a strict reader would refuse, beyond
// what the non-pedantic path already tolerates. Whether overlapping or
// interleaved header regions are legal under an Unspecified line order in
// a multi-part file is implementation-defined; pedantic
// mode resolves it by rejecting Unspecified line order whenever more than
// one header is present, since nothing here can prove the headers' block
// ranges don't interleave on disk.
func validatePedantic(md *meta.MetaData) error {
	if len(md.Headers) <= 1 {
		return nil
	}
	for i := range md.Headers {
		if md.Headers[i].LineOrder == meta.Unspecified {
			return invalidErr("WriteAllLinesToBuffered", fmt.Errorf("pedantic mode rejects unspecified line order in a multi-part file"))
		}
	}
	return nil
}

// WriteAllLinesToBuffered compresses and writes every line of md to w,
// calling getLine to obtain each line's sample bytes. w must already hold
// the written metadata header; this function reserves the offset-table
// region at the writer's current position, writes every chunk, and
// backfills the offset tables once every chunk's file position is known.
// w should be a buffered writer (e.g. bufio.Writer wrapping a
// seekable file); this function performs no buffering of its own, but
// does flush if w exposes a Flush method.
func WriteAllLinesToBuffered(w io.WriteSeeker, md *meta.MetaData, getLine GetLine, opts WriteOptions) error {
	hasCompression := false
	for i := range md.Headers {
		if md.Headers[i].Compression != meta.Uncompressed {
			hasCompression = true
			break
		}
	}
	parallel := opts.ParallelCompression && hasCompression

	// If compression is disabled or parallelism is off, the file layout
	// is always deterministic, so any Unspecified order is pinned to
	// Increasing.
	if !parallel {
		for i := range md.Headers {
			if md.Headers[i].LineOrder == meta.Unspecified {
				md.Headers[i].LineOrder = meta.Increasing
			}
		}
	}

	if opts.Pedantic {
		if err := validatePedantic(md); err != nil {
			return err
		}
	}

	startPos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return ioErr("WriteAllLinesToBuffered", err)
	}
	tw := newTrackingWriter(w, startPos)

	offsetTableStart, err := reserveOffsetTables(tw, md)
	if err != nil {
		return ioErr("WriteAllLinesToBuffered", err)
	}

	offsetTables := make([][]uint64, len(md.Headers))
	for i := range md.Headers {
		offsetTables[i] = make([]uint64, md.Headers[i].ChunkCount())
	}

	total := totalChunkCount(md)
	processed := 0

	writeOneChunk := writeOneChunkFunc(func(layerIndex, chunkIndex int, c Chunk) error {
		offsetTables[layerIndex][chunkIndex] = uint64(tw.pos)
		if _, err := writeChunkFrame(tw, md.MultiPart, c); err != nil {
			return ioErr("WriteAllLinesToBuffered", err)
		}
		pool.Put(c.Bytes)
		processed++
		if opts.OnProgress != nil {
			fraction := 1.0
			if total > 0 {
				fraction = float64(processed) / float64(total)
			}
			if err := opts.OnProgress(fraction, tw.pos); err != nil {
				return err
			}
		}
		return nil
	})

	if err := compressAndWriteBlocks(md, getLine, parallel, writeOneChunk); err != nil {
		return err
	}

	if err := writeOffsetTables(tw, offsetTableStart, offsetTables); err != nil {
		return ioErr("WriteAllLinesToBuffered", err)
	}

	if f, ok := w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return ioErr("WriteAllLinesToBuffered", err)
		}
	}
	return nil
}

// compressAndWriteBlocks dispatches to the sequential or parallel
// compression path.
func compressAndWriteBlocks(md *meta.MetaData, getLine GetLine, parallel bool, writeOneChunk writeOneChunkFunc) error {
	jobs := enumerateBlockJobs(md)
	if len(jobs) == 0 {
		return nil
	}

	if !parallel {
		for _, job := range jobs {
			block, err := buildBlock(md, getLine, job)
			if err != nil {
				return err
			}
			chunk, err := CompressToChunk(block, md)
			if err != nil {
				return err
			}
			pool.Put(block.Bytes)
			if err := writeOneChunk(job.layerIndex, job.chunkIndex, *chunk); err != nil {
				return err
			}
		}
		return nil
	}

	requiresSorting := false
	for i := range md.Headers {
		if md.Headers[i].LineOrder != meta.Unspecified {
			requiresSorting = true
			break
		}
	}

	return writeBlocksParallel(md, jobs, getLine, requiresSorting, writeOneChunk)
}

// blockResult is one compressed chunk produced by a worker, still tagged
// with the job that produced it so the writer can place it correctly.
type blockResult struct {
	job   blockJob
	chunk Chunk
}

// writeBlocksParallel streams jobs through a worker pool that both builds
// (calls getLine) and compresses each block — matching the upstream
// parallel iterator's behavior of driving the whole block pipeline
// per-worker, not just its compression stage. Workers share no mutable
// state beyond an atomic job cursor; the only goroutine touching the
// output is the result-draining goroutine below, so chunk buffers are
// owned by exactly one worker or by the writer at any moment.
func writeBlocksParallel(md *meta.MetaData, jobs []blockJob, getLine GetLine, requiresSorting bool, writeOneChunk writeOneChunkFunc) error {
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	g, ctx := errgroup.WithContext(context.Background())
	results := make(chan blockResult, workers)

	var nextJob int64 = -1
	var workersDone sync.WaitGroup
	workersDone.Add(workers)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			defer workersDone.Done()
			for {
				idx := atomic.AddInt64(&nextJob, 1)
				if int(idx) >= len(jobs) {
					return nil
				}
				job := jobs[idx]
				block, err := buildBlock(md, getLine, job)
				if err != nil {
					return err
				}
				chunk, err := CompressToChunk(block, md)
				if err != nil {
					return err
				}
				pool.Put(block.Bytes)
				select {
				case results <- blockResult{job: job, chunk: *chunk}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}
	go func() {
		workersDone.Wait()
		close(results)
	}()

	g.Go(func() error {
		if !requiresSorting {
			for r := range results {
				if err := writeOneChunk(r.job.layerIndex, r.job.chunkIndex, r.chunk); err != nil {
					return err
				}
			}
			return nil
		}

		// Reorder buffer: hold compressed chunks that arrived early,
		// draining from the front whenever the next chunk the file layout
		// requires has already arrived.
		type key struct{ layer, chunk int }
		pending := make(map[key]Chunk)
		next := 0
		for r := range results {
			pending[key{r.job.layerIndex, r.job.chunkIndex}] = r.chunk
			for next < len(jobs) {
				k := key{jobs[next].layerIndex, jobs[next].chunkIndex}
				c, ok := pending[k]
				if !ok {
					break
				}
				if err := writeOneChunk(k.layer, k.chunk, c); err != nil {
					return err
				}
				delete(pending, k)
				next++
			}
		}
		if next != len(jobs) || len(pending) != 0 {
			return invalidErr("WriteAllLinesToBuffered", fmt.Errorf("reorder buffer left %d of %d chunks unwritten", len(jobs)-next, len(jobs)))
		}
		return nil
	})

	return g.Wait()
}
