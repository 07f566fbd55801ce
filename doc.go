// Package exr implements the block pipeline of an OpenEXR-compatible
// high-dynamic-range image codec: the subsystem that maps an image (layers
// x channels x mip/rip levels x pixels) onto a stream of independently
// compressed chunks on disk, preserving EXR's bit-exact file layout
// (offset tables, line order, tile coordinates) while streaming
// compression and decompression across a worker pool.
//
// This package does not parse EXR attribute headers or validate metadata;
// internal/meta supplies the minimal in-memory header shape the pipeline
// needs to address blocks and chunks. Concrete user-facing image types
// (RGBA helpers, full/simple image shapes) are left to callers, who
// interact with this package purely in terms of BlockIndex, LineIndex, and
// the Chunk framing below.
//
// Basic usage for reading:
//
//	acc, err := exr.ReadAllLinesFromBuffered(bufio.NewReader(r), &meta, newAcc, insert, exr.DefaultReadOptions())
//
// Basic usage for writing:
//
//	err := exr.WriteAllLinesToBuffered(w, &meta, getLine, exr.DefaultWriteOptions())
package exr
