// Package corpus stores golden wire samples and checks that they still
// decode against the current schema catalog.
//
// Samples live in a pebble database, keyed by a KSUID and stored as
// wiremsg-encoded records. A store never hands out an ID at or below one it
// already holds, so key order is creation order even within one second.
package corpus

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/blockberries/wiremsg/pkg/schema"
	"github.com/blockberries/wiremsg/pkg/wiremsg"
)

// ErrNotFound is returned for an ID with no stored sample.
var ErrNotFound = errors.New("corpus: sample not found")

var (
	samplePrefix = []byte("s/")
	typePrefix   = []byte("t/")
)

// Sample is one stored encoding of a message.
type Sample struct {
	ID   ksuid.KSUID
	Type string // full message name
	Data []byte
	Note string
}

// Created returns the time embedded in the sample ID.
func (s Sample) Created() time.Time { return s.ID.Time() }

const recordType = "wiremsg.corpus.Sample"

// record fields
const (
	recID   schema.FieldNumber = 1
	recType schema.FieldNumber = 2
	recData schema.FieldNumber = 3
	recNote schema.FieldNumber = 4
)

var recordCatalog = schema.NewCatalog(&schema.Message{
	Name:    recordType,
	Package: "wiremsg.corpus",
	Fields: []*schema.Field{
		{Name: "id", Number: recID, Kind: schema.BytesKind},
		{Name: "type", Number: recType, Kind: schema.StringKind},
		{Name: "data", Number: recData, Kind: schema.BytesKind},
		{Name: "note", Number: recNote, Kind: schema.StringKind},
	},
}).MustResolve()

// Store is a sample corpus. It is safe for concurrent use.
type Store struct {
	db  *pebble.DB
	log zerolog.Logger

	mu   sync.Mutex
	last ksuid.KSUID // highest ID handed out or found on open
}

type storeOptions struct {
	fs  vfs.FS
	log zerolog.Logger
}

// Option configures Open.
type Option func(*storeOptions)

// WithFS opens the store on fs instead of the OS filesystem.
func WithFS(fs vfs.FS) Option {
	return func(o *storeOptions) { o.fs = fs }
}

// WithLogger sets the logger for store events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *storeOptions) { o.log = l }
}

// Open opens or creates the corpus in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	o := storeOptions{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	po := &pebble.Options{}
	if o.fs != nil {
		po.FS = o.fs
	}
	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, fmt.Errorf("open corpus %s: %w", dir, err)
	}
	s := &Store{db: db, log: o.log}
	if s.last, err = s.lastID(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open corpus %s: %w", dir, err)
	}
	o.log.Debug().Str("dir", dir).Msg("corpus opened")
	return s, nil
}

func (s *Store) lastID() (ksuid.KSUID, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: samplePrefix,
		UpperBound: prefixEnd(samplePrefix),
	})
	if err != nil {
		return ksuid.Nil, err
	}
	defer iter.Close()
	if !iter.Last() {
		return ksuid.Nil, iter.Error()
	}
	id, err := ksuid.FromBytes(bytes.TrimPrefix(iter.Key(), samplePrefix))
	if err != nil {
		return ksuid.Nil, fmt.Errorf("corpus: bad sample key %x: %w", iter.Key(), err)
	}
	return id, nil
}

// nextID returns a fresh KSUID above every ID the store has seen.
func (s *Store) nextID() ksuid.KSUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := ksuid.New()
	if ksuid.Compare(id, s.last) <= 0 {
		id = s.last.Next()
	}
	s.last = id
	return id
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func sampleKey(id ksuid.KSUID) []byte {
	return append(append([]byte{}, samplePrefix...), id.Bytes()...)
}

func typeKey(msgType string, id ksuid.KSUID) []byte {
	k := append(append([]byte{}, typePrefix...), msgType...)
	k = append(k, 0)
	return append(k, id.Bytes()...)
}

// Add stores data as a sample of msgType and returns its new ID.
func (s *Store) Add(msgType string, data []byte, note string) (ksuid.KSUID, error) {
	if msgType == "" {
		return ksuid.Nil, fmt.Errorf("corpus: sample type is required")
	}
	id := s.nextID()
	rec, err := encodeRecord(Sample{ID: id, Type: msgType, Data: data, Note: note})
	if err != nil {
		return ksuid.Nil, err
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(sampleKey(id), rec, nil); err != nil {
		return ksuid.Nil, err
	}
	if err := b.Set(typeKey(msgType, id), nil, nil); err != nil {
		return ksuid.Nil, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return ksuid.Nil, fmt.Errorf("corpus: write sample: %w", err)
	}
	s.log.Debug().Str("id", id.String()).Str("type", msgType).Int("bytes", len(data)).Msg("sample added")
	return id, nil
}

// Get returns the sample with the given ID.
func (s *Store) Get(id ksuid.KSUID) (Sample, error) {
	val, closer, err := s.db.Get(sampleKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return Sample{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Sample{}, err
	}
	defer closer.Close()
	return decodeRecord(val)
}

// Delete removes a sample. Deleting a missing ID is not an error.
func (s *Store) Delete(id ksuid.KSUID) error {
	sample, err := s.Get(id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(sampleKey(id), nil); err != nil {
		return err
	}
	if err := b.Delete(typeKey(sample.Type, id), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// List returns samples in creation order. An empty msgType lists every
// sample; otherwise only samples of that type.
func (s *Store) List(msgType string) ([]Sample, error) {
	if msgType == "" {
		return s.scanSamples()
	}

	prefix := append(append([]byte{}, typePrefix...), msgType...)
	prefix = append(prefix, 0)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Sample
	for iter.First(); iter.Valid(); iter.Next() {
		id, err := ksuid.FromBytes(bytes.TrimPrefix(iter.Key(), prefix))
		if err != nil {
			return nil, fmt.Errorf("corpus: bad index key %x: %w", iter.Key(), err)
		}
		sample, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, sample)
	}
	return out, iter.Error()
}

func (s *Store) scanSamples() ([]Sample, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: samplePrefix,
		UpperBound: prefixEnd(samplePrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Sample
	for iter.First(); iter.Valid(); iter.Next() {
		sample, err := decodeRecord(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("corpus: key %x: %w", iter.Key(), err)
		}
		out = append(out, sample)
	}
	return out, iter.Error()
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func encodeRecord(s Sample) ([]byte, error) {
	m := wiremsg.NewMessage(recordCatalog.Message(recordType))
	for _, set := range []struct {
		n schema.FieldNumber
		v wiremsg.Value
	}{
		{recID, wiremsg.ValueOfBytes(s.ID.Bytes())},
		{recType, wiremsg.ValueOfString(s.Type)},
		{recData, wiremsg.ValueOfBytes(s.Data)},
		{recNote, wiremsg.ValueOfString(s.Note)},
	} {
		if err := m.Set(set.n, set.v); err != nil {
			return nil, err
		}
	}
	return wiremsg.MarshalWithOptions(m, wiremsg.DefaultOptions.WithLimits(wiremsg.NoLimits))
}

func decodeRecord(b []byte) (Sample, error) {
	m, err := wiremsg.UnmarshalWithOptions(b, recordCatalog.Message(recordType), wiremsg.DefaultOptions.WithLimits(wiremsg.NoLimits))
	if err != nil {
		return Sample{}, fmt.Errorf("corpus: decode record: %w", err)
	}
	id, err := ksuid.FromBytes(m.Get(recID).Bytes())
	if err != nil {
		return Sample{}, fmt.Errorf("corpus: record id: %w", err)
	}
	return Sample{
		ID:   id,
		Type: m.Get(recType).String(),
		Data: m.Get(recData).Bytes(),
		Note: m.Get(recNote).String(),
	}, nil
}
