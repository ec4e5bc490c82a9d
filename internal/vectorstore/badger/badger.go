package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/phuslu/log"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

// Key layout:
//
//	current            -> generation number (uint64, big endian)
//	g/<gen>/meta       -> header JSON
//	g/<gen>/v/<pos>    -> encoded vector
//	g/<gen>/m/<pos>    -> metadata JSON
//
// A save clears and writes a fresh generation and then flips "current" in one
// transaction, so a reader sees either the old corpus or the new one.
var currentKey = []byte("current")

type header struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	Count     int    `json:"count"`
}

// Store keeps the corpus in a Badger key-value directory.
type Store struct {
	db     *badger.DB
	logger *log.Logger
}

// Open opens or creates a Badger database in dir.
func Open(dir string, logger *log.Logger) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func genPrefix(gen uint64) []byte { return []byte(fmt.Sprintf("g/%020d/", gen)) }

func posKey(gen uint64, kind byte, pos int) []byte {
	return append(genPrefix(gen), []byte(fmt.Sprintf("%c/%010d", kind, pos))...)
}

func (s *Store) currentGeneration(txn *badger.Txn) (uint64, bool, error) {
	item, err := txn.Get(currentKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var gen uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("bad generation value of %d bytes", len(val))
		}
		gen = binary.BigEndian.Uint64(val)
		return nil
	})
	return gen, true, err
}

// Save writes the corpus as a new generation and makes it current.
func (s *Store) Save(ctx context.Context, c *domain.Corpus) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var prev uint64
	var hasPrev bool
	if err := s.db.View(func(txn *badger.Txn) error {
		var err error
		prev, hasPrev, err = s.currentGeneration(txn)
		return err
	}); err != nil {
		return fmt.Errorf("read current generation: %w", err)
	}
	gen := prev + 1
	// An interrupted save may have left keys under gen.
	if err := s.db.DropPrefix(genPrefix(gen)); err != nil {
		return fmt.Errorf("clear generation %d: %w", gen, err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i := range c.Vectors {
		if err := ctx.Err(); err != nil {
			return err
		}
		meta, err := json.Marshal(c.Metadata[i])
		if err != nil {
			return fmt.Errorf("marshal metadata %d: %w", i, err)
		}
		if err := wb.Set(posKey(gen, 'v', i), vectorstore.EncodeVector(c.Vectors[i])); err != nil {
			return fmt.Errorf("write vector %d: %w", i, err)
		}
		if err := wb.Set(posKey(gen, 'm', i), meta); err != nil {
			return fmt.Errorf("write metadata %d: %w", i, err)
		}
	}
	h, err := json.Marshal(header{Model: c.Model, Dimension: c.Dimension, Count: c.Len()})
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	if err := wb.Set(append(genPrefix(gen), "meta"...), h); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush generation %d: %w", gen, err)
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], gen)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(currentKey, buf[:])
	}); err != nil {
		return fmt.Errorf("switch to generation %d: %w", gen, err)
	}

	if hasPrev {
		if err := s.db.DropPrefix(genPrefix(prev)); err != nil {
			s.logger.Warn().Err(err).Uint64("generation", prev).Msg("failed to drop previous generation")
		}
	}
	return nil
}

// Load reads the current generation.
func (s *Store) Load(ctx context.Context) (*domain.Corpus, error) {
	var c *domain.Corpus
	err := s.db.View(func(txn *badger.Txn) error {
		gen, ok, err := s.currentGeneration(txn)
		if err != nil {
			return &domain.CorpusLoadError{Reason: "reading generation", Err: err}
		}
		if !ok {
			return vectorstore.ErrNotFound
		}
		prefix := genPrefix(gen)

		item, err := txn.Get(append(prefix, "meta"...))
		if err != nil {
			return &domain.CorpusLoadError{Reason: "reading header", Err: err}
		}
		var h header
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &h) }); err != nil {
			return &domain.CorpusLoadError{Reason: "decoding header", Err: err}
		}

		c = domain.NewCorpus(h.Model, h.Dimension)
		c.Vectors = make([][]float32, 0, h.Count)
		c.Metadata = make([]domain.Metadata, 0, h.Count)
		for i := 0; i < h.Count; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			vi, err := txn.Get(posKey(gen, 'v', i))
			if err != nil {
				return &domain.CorpusLoadError{Reason: fmt.Sprintf("vector %d", i), Err: err}
			}
			var vec []float32
			if err := vi.Value(func(val []byte) error {
				vec, err = vectorstore.DecodeVector(val)
				return err
			}); err != nil {
				return &domain.CorpusLoadError{Reason: fmt.Sprintf("vector %d", i), Err: err}
			}
			mi, err := txn.Get(posKey(gen, 'm', i))
			if err != nil {
				return &domain.CorpusLoadError{Reason: fmt.Sprintf("metadata %d", i), Err: err}
			}
			var m domain.Metadata
			if err := mi.Value(func(val []byte) error { return json.Unmarshal(val, &m) }); err != nil {
				return &domain.CorpusLoadError{Reason: fmt.Sprintf("metadata %d", i), Err: err}
			}
			c.Vectors = append(c.Vectors, vec)
			c.Metadata = append(c.Metadata, m)
		}
		return c.Validate()
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

var _ vectorstore.Store = (*Store)(nil)
