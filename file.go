// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import (
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/evtxgo/evtx/internal/elog"
	"golang.org/x/text/encoding"
)

// ValidationReport accumulates non-fatal warnings tolerated while
// decoding a file: lenient checksum mismatches, chunks skipped entirely
// (a parse failure, or a checksum mismatch under ValidateChecksums), and
// records that failed to decode.
type ValidationReport struct {
	ChecksumMismatches []int // chunk indexes with a header/events CRC32 mismatch
	SkippedChunks      []int // chunk indexes that failed to parse and were skipped
	SkippedRecords     []RecordSkip
}

// RecordSkip records one record that could not be decoded and was
// skipped rather than aborting the whole file.
type RecordSkip struct {
	ChunkIndex int
	Offset     uint32
	Err        error
}

// File is an opened EVTX log: its header plus lazy access to chunks and
// records. Open memory-maps the backing file; OpenBytes wraps an
// in-memory buffer the caller already owns.
type File struct {
	opts    Options
	data    []byte
	mm      mmap.MMap
	header  *FileHeader
	ansiEnc encoding.Encoding
	logger  *elog.Helper

	mu     sync.Mutex
	report ValidationReport
}

// Open memory-maps path read-only and parses its file header.
func Open(path string, opts Options) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	file, err := newFile(m, opts)
	if err != nil {
		m.Unmap()
		return nil, err
	}
	file.mm = m
	return file, nil
}

// OpenBytes wraps an in-memory EVTX image already held by the caller.
func OpenBytes(data []byte, opts Options) (*File, error) {
	return newFile(data, opts)
}

func newFile(data []byte, opts Options) (*File, error) {
	header, err := parseFileHeader(data)
	if err != nil {
		return nil, err
	}
	enc, err := resolveANSICodec(opts.ANSICodec)
	if err != nil {
		return nil, err
	}
	f := &File{
		opts:    opts,
		data:    data,
		header:  header,
		ansiEnc: enc,
		logger:  opts.resolveLogger(),
	}
	if got := fileHeaderChecksum(data); got != header.Checksum {
		if opts.ValidateChecksums {
			return nil, ErrFileHeaderChecksum
		}
		f.logger.Warnf("file header checksum mismatch: got 0x%x want 0x%x", got, header.Checksum)
	}
	return f, nil
}

// Close releases the mmap backing a File opened with Open. It is a no-op
// for a File opened with OpenBytes.
func (f *File) Close() error {
	if f.mm != nil {
		return f.mm.Unmap()
	}
	return nil
}

// Header returns the decoded file header.
func (f *File) Header() *FileHeader { return f.header }

// ChunkCount returns the number of chunk slots following the file
// header, derived from the file's total size rather than trusting the
// header's own chunk_count field.
func (f *File) ChunkCount() int {
	body := len(f.data) - fileHeaderSize
	if body <= 0 {
		return 0
	}
	return body / chunkSize
}

func (f *File) chunkBytes(index int) []byte {
	start := fileHeaderSize + index*chunkSize
	end := start + chunkSize
	if end > len(f.data) {
		end = len(f.data)
	}
	return f.data[start:end]
}

func (f *File) warnChecksum(index int) {
	f.mu.Lock()
	f.report.ChecksumMismatches = append(f.report.ChecksumMismatches, index)
	f.mu.Unlock()
	f.logger.Warnf("chunk %d checksum mismatch", index)
}

func (f *File) warnSkippedChunk(index int, err error) {
	f.mu.Lock()
	f.report.SkippedChunks = append(f.report.SkippedChunks, index)
	f.mu.Unlock()
	f.logger.Warnf("chunk %d skipped: %v", index, err)
}

func (f *File) warnSkippedRecord(index int, offset uint32, err error) {
	f.mu.Lock()
	f.report.SkippedRecords = append(f.report.SkippedRecords, RecordSkip{ChunkIndex: index, Offset: offset, Err: err})
	f.mu.Unlock()
	f.logger.Warnf("chunk %d record at 0x%x skipped: %v", index, offset, err)
}

// Report returns the ValidationReport accumulated so far. Call it after
// Records (or RecordsBetween) has been fully drained for a complete
// picture.
func (f *File) Report() ValidationReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.report
}

// decodeChunkRecords decodes every record in chunk index idx, appending
// warnings to the report and skipping (rather than aborting) a record
// that fails to decode.
func (f *File) decodeChunkRecords(idx int) []*EventRecord {
	buf := f.chunkBytes(idx)
	if isZeroChunk(buf) {
		return nil
	}
	chunk, checksumOK, err := parseChunk(idx, buf, f.ansiEnc, f.opts.ValidateChecksums)
	if err != nil {
		f.warnSkippedChunk(idx, err)
		return nil
	}
	if !checksumOK {
		f.warnChecksum(idx)
	}

	var out []*EventRecord
	off := uint32(chunkHeaderSize)
	for off < chunk.Header.FreeSpaceOffset {
		rh, err := parseRecordHeader(buf[off:])
		if err != nil {
			break
		}
		end := off + rh.Size
		if end > uint32(len(buf)) || rh.Size < recordHeaderSize+4 {
			f.warnSkippedRecord(idx, off, ErrRecordTooSmall)
			break
		}
		body := buf[off+recordHeaderSize : end-4]
		rec, err := decodeRecord(chunk, rh, body, f.ansiEnc)
		if err != nil {
			f.warnSkippedRecord(idx, off, err)
			off = end
			continue
		}
		out = append(out, rec)
		off = end
	}
	return out
}

// RecordIterator pulls decoded records from a File one at a time. Chunks
// are decoded chunk-by-chunk (and, with Options.NumThreads > 1,
// up to that many chunks ahead of the caller concurrently) but no more
// than that: the file is never materialized into memory all at once, and
// a caller that stops calling Next early leaves the remaining chunks
// undecoded. Call Close when done, whether or not Next ran to
// exhaustion, to release the decoder goroutine.
type RecordIterator struct {
	records chan *EventRecord
	cancel  chan struct{}
	closeIt sync.Once
	current *EventRecord
}

// Iterator returns a pull iterator over every record in f, in
// chunk-index then in-chunk order (spec's ordering guarantee holds even
// with concurrent chunk decoding: per-chunk output is buffered and
// handed to the caller strictly in chunk order).
func (f *File) Iterator() *RecordIterator {
	it := &RecordIterator{
		records: make(chan *EventRecord, 64),
		cancel:  make(chan struct{}),
	}
	go it.run(f)
	return it
}

func (it *RecordIterator) run(f *File) {
	defer close(it.records)

	n := f.ChunkCount()
	threads := f.opts.NumThreads
	if threads <= 1 {
		for i := 0; i < n; i++ {
			if it.emit(f.decodeChunkRecords(i)) {
				return
			}
		}
		return
	}

	// Up to `threads` chunks decode concurrently; a bounded buffered slot
	// per chunk index lets the merge loop below hand results to the
	// caller strictly in chunk order without waiting for the whole file.
	// A chunk's sem token is released only once the merge loop has taken
	// its records, so at most `threads` chunks are decoding or waiting.
	slots := make([]chan []*EventRecord, n)
	for i := range slots {
		slots[i] = make(chan []*EventRecord, 1)
	}
	sem := make(chan struct{}, threads)
	var wg sync.WaitGroup
	go func() {
		defer wg.Wait()
		for i := 0; i < n; i++ {
			select {
			case sem <- struct{}{}:
			case <-it.cancel:
				return
			}
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				slots[idx] <- f.decodeChunkRecords(idx)
			}(i)
		}
	}()

	for i := 0; i < n; i++ {
		select {
		case recs := <-slots[i]:
			<-sem
			if it.emit(recs) {
				return
			}
		case <-it.cancel:
			return
		}
	}
}

// emit pushes recs onto the output channel one at a time, reporting
// whether the iterator was canceled mid-flight.
func (it *RecordIterator) emit(recs []*EventRecord) (canceled bool) {
	for _, r := range recs {
		select {
		case it.records <- r:
		case <-it.cancel:
			return true
		}
	}
	return false
}

// Next advances to the next record, returning false once the file is
// exhausted. Call Record to retrieve the value it advanced to.
func (it *RecordIterator) Next() bool {
	r, ok := <-it.records
	if !ok {
		return false
	}
	it.current = r
	return true
}

// Record returns the record Next most recently advanced to.
func (it *RecordIterator) Record() *EventRecord { return it.current }

// Close cancels outstanding chunk decoding and releases the decoder
// goroutine. Safe to call more than once, and safe to call before Next
// has returned false.
func (it *RecordIterator) Close() error {
	it.closeIt.Do(func() { close(it.cancel) })
	return nil
}

// Records drains the whole file into a slice, for callers that want the
// full set rather than pulling one record at a time. Prefer Iterator for
// a large file, since Records holds every decoded record in memory at
// once.
func (f *File) Records() []*EventRecord {
	it := f.Iterator()
	defer it.Close()
	var all []*EventRecord
	for it.Next() {
		all = append(all, it.Record())
	}
	return all
}

// RecordsBetween returns the records whose RecordID falls within
// [firstID, lastID], inclusive, draining the iterator early once lastID
// has passed (record ids are monotonically increasing in yield order).
func (f *File) RecordsBetween(firstID, lastID uint64) []*EventRecord {
	it := f.Iterator()
	defer it.Close()
	var out []*EventRecord
	for it.Next() {
		rec := it.Record()
		if rec.RecordID > lastID {
			break
		}
		if rec.RecordID >= firstID {
			out = append(out, rec)
		}
	}
	return out
}
