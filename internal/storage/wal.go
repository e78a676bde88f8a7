package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"hash/crc32"
	"io"
	"io/fs"
	"os"

	"github.com/google/uuid"

	"github.com/prismdb/prismdb/internal/errs"
)

const (
	walMagic   = "PRISMWAL"
	walVersion = 1

	// walHeaderSize = magic(8) + version(4) + uuid(16).
	walHeaderSize = 8 + 4 + 16
)

// Mutation opcodes recorded in the log.
const (
	opCreateTable = 1
	opInsert      = 2
)

// walRecord is one logged mutation. Seq values are strictly increasing
// within a database.
type walRecord struct {
	Seq    uint64
	Op     int
	Table  string
	Cols   []Column // opCreateTable
	Values []Value  // opInsert
}

// wal is an append-only log of mutating statements. Every record is
// framed as: uint32 payload length, uint32 CRC32 of the payload, then
// the gob-encoded walRecord. Records are flushed and fsynced before
// the statement that produced them is acknowledged.
type wal struct {
	f      *os.File
	id     uuid.UUID
	seq    uint64
	sync   bool
	closed bool
}

// openWAL opens or creates a WAL file and replays its records into
// the catalog. Records with Seq <= fromSeq (already covered by the
// snapshot) are skipped. One incomplete trailing record is silently
// truncated; any earlier corruption fails the open.
func openWAL(path string, id uuid.UUID, fromSeq uint64, cat *Catalog, syncOnWrite bool) (*wal, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "open wal", err)
	}
	w := &wal{f: f, id: id, seq: fromSeq, sync: syncOnWrite}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IO, "stat wal", err)
	}
	if info.Size() == 0 {
		if w.id == uuid.Nil {
			w.id = uuid.New()
		}
		if err := w.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
		return w, nil
	}

	if err := w.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if err := w.replay(fromSeq, cat); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, errs.Wrap(errs.IO, "seek wal", err)
	}
	return w, nil
}

func (w *wal) writeHeader() error {
	buf := make([]byte, walHeaderSize)
	copy(buf[0:8], walMagic)
	binary.BigEndian.PutUint32(buf[8:12], walVersion)
	copy(buf[12:28], w.id[:])
	if _, err := w.f.Write(buf); err != nil {
		return errs.Wrap(errs.IO, "write wal header", err)
	}
	if err := w.f.Sync(); err != nil {
		return errs.Wrap(errs.IO, "sync wal header", err)
	}
	return nil
}

func (w *wal) readHeader() error {
	buf := make([]byte, walHeaderSize)
	if _, err := io.ReadFull(w.f, buf); err != nil {
		return errs.Wrap(errs.IO, "read wal header", err)
	}
	if string(buf[0:8]) != walMagic {
		return errs.New(errs.IO, "not a prismdb wal file")
	}
	if v := binary.BigEndian.Uint32(buf[8:12]); v != walVersion {
		return errs.Newf(errs.IO, "unsupported wal version %d", v)
	}
	var fileID uuid.UUID
	copy(fileID[:], buf[12:28])
	if w.id != uuid.Nil && fileID != w.id {
		return errs.Newf(errs.IO, "wal belongs to database %s, expected %s", fileID, w.id)
	}
	w.id = fileID
	return nil
}

// replay reads framed records from the current file position and
// applies those newer than fromSeq. A short read at the very end of
// the file is a torn write from a crash: the file is truncated back to
// the last complete record. A CRC or decode failure anywhere before
// that is real corruption and aborts the open.
func (w *wal) replay(fromSeq uint64, cat *Catalog) error {
	offset := int64(walHeaderSize)
	frame := make([]byte, 8)
	for {
		if _, err := io.ReadFull(w.f, frame); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return w.truncateTo(offset)
			}
			return errs.Wrap(errs.IO, "read wal frame", err)
		}
		length := binary.BigEndian.Uint32(frame[0:4])
		sum := binary.BigEndian.Uint32(frame[4:8])

		payload := make([]byte, length)
		n, err := io.ReadFull(w.f, payload)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return w.truncateTo(offset)
			}
			return errs.Wrap(errs.IO, "read wal record", err)
		}
		if crc32.ChecksumIEEE(payload) != sum {
			// A bad checksum on the final record is also a torn write.
			if w.atEOF() {
				return w.truncateTo(offset)
			}
			return errs.Newf(errs.IO, "wal corrupt at offset %d: checksum mismatch", offset)
		}

		var rec walRecord
		if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&rec); err != nil {
			return errs.Wrap(errs.IO, "decode wal record", err)
		}
		if rec.Seq <= w.seq && rec.Seq > fromSeq {
			return errs.Newf(errs.IO, "wal corrupt at offset %d: sequence %d after %d", offset, rec.Seq, w.seq)
		}
		if rec.Seq > fromSeq {
			if err := applyRecord(cat, &rec); err != nil {
				return errs.Wrap(errs.IO, "replay wal record", err)
			}
			w.seq = rec.Seq
		}
		offset += int64(8 + n)
	}
}

func (w *wal) atEOF() bool {
	cur, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return false
	}
	info, err := w.f.Stat()
	if err != nil {
		return false
	}
	return cur == info.Size()
}

func (w *wal) truncateTo(offset int64) error {
	if err := w.f.Truncate(offset); err != nil {
		return errs.Wrap(errs.IO, "truncate torn wal record", err)
	}
	if _, err := w.f.Seek(offset, io.SeekStart); err != nil {
		return errs.Wrap(errs.IO, "seek wal", err)
	}
	return nil
}

// applyRecord replays one mutation into the catalog.
func applyRecord(cat *Catalog, rec *walRecord) error {
	switch rec.Op {
	case opCreateTable:
		_, err := cat.Create(rec.Table, rec.Cols)
		return err
	case opInsert:
		t, err := cat.Lookup(rec.Table)
		if err != nil {
			return err
		}
		row, err := t.coerceRow(rec.Values)
		if err != nil {
			return err
		}
		t.appendRow(row)
		return nil
	}
	return errs.Newf(errs.IO, "unknown wal opcode %d", rec.Op)
}

// append frames, writes and syncs one record. The record's Seq is
// assigned here.
func (w *wal) append(rec *walRecord) error {
	rec.Seq = w.seq + 1

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(rec); err != nil {
		return errs.Wrap(errs.IO, "encode wal record", err)
	}
	frame := make([]byte, 8)
	binary.BigEndian.PutUint32(frame[0:4], uint32(payload.Len()))
	binary.BigEndian.PutUint32(frame[4:8], crc32.ChecksumIEEE(payload.Bytes()))

	if _, err := w.f.Write(frame); err != nil {
		return errs.Wrap(errs.IO, "append wal frame", err)
	}
	if _, err := w.f.Write(payload.Bytes()); err != nil {
		return errs.Wrap(errs.IO, "append wal record", err)
	}
	if w.sync {
		if err := w.f.Sync(); err != nil {
			return errs.Wrap(errs.IO, "sync wal", err)
		}
	}
	w.seq = rec.Seq
	return nil
}

// reset discards all records after a checkpoint, leaving only the
// header. The sequence counter keeps advancing; it never restarts.
func (w *wal) reset() error {
	if err := w.f.Truncate(walHeaderSize); err != nil {
		return errs.Wrap(errs.IO, "reset wal", err)
	}
	if _, err := w.f.Seek(walHeaderSize, io.SeekStart); err != nil {
		return errs.Wrap(errs.IO, "seek wal", err)
	}
	if err := w.f.Sync(); err != nil {
		return errs.Wrap(errs.IO, "sync wal", err)
	}
	return nil
}

func (w *wal) close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.f.Close(); err != nil && !errors.Is(err, fs.ErrClosed) {
		return errs.Wrap(errs.IO, "close wal", err)
	}
	return nil
}
