// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import (
	"strings"
	"testing"
)

func putU32(buf []byte, off int, v uint32) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
	buf[off+3] = byte(v >> 24)
}

func putU64(buf []byte, off int, v uint64) {
	for i := 0; i < 8; i++ {
		buf[off+i] = byte(v >> (8 * i))
	}
}

func putU16(buf []byte, off int, v uint16) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
}

// buildMinimalEvtxFile assembles a one-chunk, one-record EVTX image whose
// record body is the byte-level equivalent of "<E/>": a FragmentHeader,
// an OpenStartElement for "E", a CloseEmptyElement, and EOF.
func buildMinimalEvtxFile(t *testing.T) []byte {
	t.Helper()

	// The name table lives well past the record area so the events
	// checksum region ([chunkHeaderSize, FreeSpaceOffset)) covers only
	// the record itself, the way a real chunk's record area never
	// includes its own name/template tables.
	const nameOffset = 2048
	nameBlob := buildNameBlob(0, 0, "E")

	body := []byte{
		0x0F, 0x01, 0x01, 0x00, // FragmentHeader major=1 minor=1 flags=0
		0x01, 0x00, 0x00, 0x00, 0x00, // OpenStartElement, dataSize=0
		0x00, 0x00, 0x00, 0x00, // nameOffset placeholder, patched below
		0x03, // CloseEmptyElement
		0x00, // EOF
	}
	putU32(body, 9, uint32(nameOffset))

	const recordOffset = chunkHeaderSize
	recordSize := uint32(recordHeaderSize + len(body) + 4)

	record := make([]byte, recordSize)
	record[0], record[1], record[2], record[3] = 0x2A, 0x2A, 0x00, 0x00
	putU32(record, 4, recordSize)
	putU64(record, 8, 1) // record id
	// filetime left zero; formatTimestamp of the zero FILETIME epoch is
	// still well-defined, it is not under test here.
	copy(record[recordHeaderSize:], body)
	putU32(record, int(recordSize)-4, recordSize)

	chunk := make([]byte, chunkSize)
	copy(chunk[0:8], chunkMagic[:])
	putU64(chunk, 8, 0)  // first record number
	putU64(chunk, 16, 1) // last record number
	putU64(chunk, 24, 1) // first record id
	putU64(chunk, 32, 1) // last record id
	putU32(chunk, 40, chunkHeaderSize)
	putU32(chunk, 44, uint32(recordOffset))
	freeSpaceOffset := uint32(recordOffset) + recordSize
	putU32(chunk, 48, freeSpaceOffset)
	// EventsChecksum at 52, filled in after the record area is written.
	copy(chunk[nameOffset:], nameBlob)
	copy(chunk[recordOffset:], record)
	putU32(chunk, 52, chunkEventsChecksum(chunk, freeSpaceOffset))
	// NameOffsets table starts at 128 (64 entries, [128,384)); bucket 0
	// points at our one name. TemplateOffsets follows at [384,512).
	putU32(chunk, 128, uint32(nameOffset))
	putU32(chunk, 124, chunkHeaderChecksum(chunk))

	file := make([]byte, fileHeaderSize+chunkSize)
	copy(file[0:8], fileMagic[:])
	putU64(file, 8, 0)
	putU64(file, 16, 0)
	putU64(file, 24, 2)
	putU32(file, 32, fileHeaderSize)
	putU16(file, 36, 1)
	putU16(file, 38, 3)
	putU16(file, 40, fileHeaderSize)
	putU16(file, 42, 1)
	copy(file[fileHeaderSize:], chunk)
	putU32(file, 124, fileHeaderChecksum(file))

	return file
}

func TestOpenBytesMinimalRecord(t *testing.T) {
	data := buildMinimalEvtxFile(t)

	f, err := OpenBytes(data, Options{ValidateChecksums: true})
	if err != nil {
		t.Fatalf("OpenBytes() error = %v", err)
	}

	records := f.Records()
	if len(records) != 1 {
		t.Fatalf("Records() returned %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.RecordID != 1 {
		t.Errorf("Records()[0].RecordID = %d, want 1", rec.RecordID)
	}

	xml := rec.XML("")
	if xml != "<E></E>" {
		t.Errorf("EventRecord.XML() = %q, want %q", xml, "<E></E>")
	}

	raw, err := rec.JSON("", false)
	if err != nil {
		t.Fatalf("EventRecord.JSON() error = %v", err)
	}
	if !strings.Contains(string(raw), `"E"`) {
		t.Errorf("EventRecord.JSON() = %s, want it to mention %q", raw, "E")
	}

	report := f.Report()
	if len(report.ChecksumMismatches) != 0 || len(report.SkippedChunks) != 0 {
		t.Errorf("Report() = %+v, want a clean report for a well-formed file", report)
	}
}

func TestOpenBytesChecksumMismatchLenient(t *testing.T) {
	data := buildMinimalEvtxFile(t)
	// Corrupt the chunk's events checksum without fixing it up, then open
	// in lenient mode: decoding must still succeed, with the mismatch
	// surfaced through the validation report instead of an error.
	putU32(data, fileHeaderSize+52, 0xDEADBEEF)

	f, err := OpenBytes(data, Options{ValidateChecksums: false})
	if err != nil {
		t.Fatalf("OpenBytes() error = %v", err)
	}
	records := f.Records()
	if len(records) != 1 {
		t.Fatalf("Records() returned %d records, want 1", len(records))
	}
	report := f.Report()
	if len(report.ChecksumMismatches) != 1 || report.ChecksumMismatches[0] != 0 {
		t.Errorf("Report().ChecksumMismatches = %v, want [0]", report.ChecksumMismatches)
	}
}

func TestOpenBytesChecksumMismatchStrict(t *testing.T) {
	data := buildMinimalEvtxFile(t)
	putU32(data, fileHeaderSize+52, 0xDEADBEEF)

	f, err := OpenBytes(data, Options{ValidateChecksums: true})
	if err != nil {
		t.Fatalf("OpenBytes() error = %v", err)
	}
	records := f.Records()
	if len(records) != 0 {
		t.Fatalf("Records() returned %d records, want 0 (chunk should be skipped)", len(records))
	}
	report := f.Report()
	if len(report.SkippedChunks) != 1 {
		t.Errorf("Report().SkippedChunks = %v, want [0]", report.SkippedChunks)
	}
}

func TestOpenBytesInvalidFileMagic(t *testing.T) {
	data := buildMinimalEvtxFile(t)
	copy(data[0:8], "Garbage\x00")

	if _, err := OpenBytes(data, Options{}); err != ErrFileMagicNotFound {
		t.Errorf("OpenBytes() with bad magic = %v, want ErrFileMagicNotFound", err)
	}
}

func TestRecordsBetween(t *testing.T) {
	data := buildMinimalEvtxFile(t)
	f, err := OpenBytes(data, Options{})
	if err != nil {
		t.Fatalf("OpenBytes() error = %v", err)
	}
	in := f.RecordsBetween(1, 1)
	if len(in) != 1 {
		t.Errorf("RecordsBetween(1,1) = %d records, want 1", len(in))
	}
	out := f.RecordsBetween(2, 5)
	if len(out) != 0 {
		t.Errorf("RecordsBetween(2,5) = %d records, want 0", len(out))
	}
}
