package exr

import (
	"encoding/binary"
	"io"

	"github.com/mandeep/goexr/internal/meta"
)

// totalChunkCount returns the sum of every header's chunk count — the
// total number of entries across all of md's offset tables.
func totalChunkCount(md *meta.MetaData) int {
	total := 0
	for i := range md.Headers {
		total += md.Headers[i].ChunkCount()
	}
	return total
}

// skipOffsetTables advances r past the offset-table region without
// interpreting it, for the sequential read path.
func skipOffsetTables(r io.Reader, md *meta.MetaData) error {
	n := int64(totalChunkCount(md)) * 8
	_, err := io.CopyN(io.Discard, r, n)
	return err
}

// readOffsetTables reads each header's offset table in turn, in header
// order, from the reader's current position.
func readOffsetTables(r io.Reader, md *meta.MetaData) ([][]uint64, error) {
	tables := make([][]uint64, len(md.Headers))
	for hi := range md.Headers {
		count := md.Headers[hi].ChunkCount()
		table := make([]uint64, count)
		if err := binary.Read(r, binary.LittleEndian, table); err != nil {
			return nil, err
		}
		tables[hi] = table
	}
	return tables, nil
}

// reserveOffsetTables seeks forward past the region that will eventually
// hold every header's offset table and returns the region's starting
// byte position, so it can be filled in later once every chunk's
// position is known.
func reserveOffsetTables(w io.WriteSeeker, md *meta.MetaData) (int64, error) {
	start, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	n := int64(totalChunkCount(md)) * 8
	if _, err := w.Seek(n, io.SeekCurrent); err != nil {
		return 0, err
	}
	return start, nil
}

// writeOffsetTables seeks to start and writes every header's offset
// table, in header order, as little-endian u64 values.
func writeOffsetTables(w io.WriteSeeker, start int64, tables [][]uint64) error {
	if _, err := w.Seek(start, io.SeekStart); err != nil {
		return err
	}
	for _, table := range tables {
		if err := binary.Write(w, binary.LittleEndian, table); err != nil {
			return err
		}
	}
	return nil
}
