package storage

import (
	"github.com/google/uuid"

	"github.com/prismdb/prismdb/internal/errs"
)

// Config controls how a Store persists data.
type Config struct {
	// Path is the snapshot file; the WAL lives next to it at
	// Path + ".wal". Empty means in-memory only.
	Path string

	// CheckpointEvery triggers a checkpoint after that many mutating
	// statements. Zero disables count-based checkpoints.
	CheckpointEvery int

	// CheckpointSchedule is an optional cron expression for scheduled
	// checkpoints, e.g. "@every 5m". Empty disables the scheduler.
	CheckpointSchedule string

	// SyncOnWrite fsyncs the WAL after every appended record.
	SyncOnWrite bool
}

// DefaultConfig returns the settings used by prismdb.Connect.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncOnWrite: true}
}

// Store owns the catalog and its persistence. All mutations flow
// through CreateTable and Insert so that validation happens before the
// WAL append and the in-memory apply happens after it.
type Store struct {
	cfg Config
	cat *Catalog
	id  uuid.UUID
	wal *wal

	sinceCheckpoint int
	closed          bool
}

// Open loads the snapshot at cfg.Path (if any), replays the WAL, and
// returns a ready Store. With an empty path the Store is purely
// in-memory and Checkpoint is a no-op.
func Open(cfg Config) (*Store, error) {
	s := &Store{cfg: cfg}
	if cfg.Path == "" {
		s.cat = NewCatalog()
		s.id = uuid.New()
		return s, nil
	}

	cat, id, lastSeq, err := loadSnapshot(cfg.Path)
	if err != nil {
		return nil, err
	}
	// id is Nil for a fresh database; the WAL then adopts the identity
	// from its own header, or mints one for a brand-new file.
	w, err := openWAL(cfg.Path+".wal", id, lastSeq, cat, cfg.SyncOnWrite)
	if err != nil {
		return nil, err
	}
	s.cat = cat
	s.id = w.id
	s.wal = w
	return s, nil
}

// Catalog exposes the schema registry for read paths.
func (s *Store) Catalog() *Catalog { return s.cat }

// ID returns the database identity shared by snapshot and WAL.
func (s *Store) ID() uuid.UUID { return s.id }

// CreateTable validates, logs and applies a CREATE TABLE.
func (s *Store) CreateTable(name string, cols []Column) error {
	if s.closed {
		return errs.New(errs.ConnectionClosed, "store is closed")
	}
	if _, err := s.cat.Lookup(name); err == nil {
		return errs.Newf(errs.DuplicateTable, "table %q already exists", name)
	}
	if err := s.log(&walRecord{Op: opCreateTable, Table: name, Cols: cols}); err != nil {
		return err
	}
	if _, err := s.cat.Create(name, cols); err != nil {
		return err
	}
	return s.maybeCheckpoint()
}

// Insert validates, logs and applies one row.
func (s *Store) Insert(table string, values []Value) error {
	if s.closed {
		return errs.New(errs.ConnectionClosed, "store is closed")
	}
	t, err := s.cat.Lookup(table)
	if err != nil {
		return err
	}
	row, err := t.coerceRow(values)
	if err != nil {
		return err
	}
	if err := s.log(&walRecord{Op: opInsert, Table: table, Values: row}); err != nil {
		return err
	}
	t.appendRow(row)
	return s.maybeCheckpoint()
}

func (s *Store) log(rec *walRecord) error {
	if s.wal == nil {
		return nil
	}
	return s.wal.append(rec)
}

func (s *Store) maybeCheckpoint() error {
	if s.wal == nil || s.cfg.CheckpointEvery <= 0 {
		return nil
	}
	s.sinceCheckpoint++
	if s.sinceCheckpoint < s.cfg.CheckpointEvery {
		return nil
	}
	return s.Checkpoint()
}

// Checkpoint writes a full snapshot and resets the WAL to an empty
// log. In-memory stores return nil without touching disk.
func (s *Store) Checkpoint() error {
	if s.closed {
		return errs.New(errs.ConnectionClosed, "store is closed")
	}
	if s.wal == nil {
		return nil
	}
	if err := writeSnapshot(s.cfg.Path, s.id, s.wal.seq, s.cat); err != nil {
		return err
	}
	if err := s.wal.reset(); err != nil {
		return err
	}
	s.sinceCheckpoint = 0
	return nil
}

// Close checkpoints (file-backed stores) and releases the WAL file.
// Close is idempotent.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	if s.wal != nil {
		if err := s.Checkpoint(); err != nil {
			s.closed = true
			s.wal.close()
			return err
		}
	}
	s.closed = true
	if s.wal != nil {
		return s.wal.close()
	}
	return nil
}
