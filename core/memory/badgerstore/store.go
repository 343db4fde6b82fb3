// Package badgerstore persists conversation turns in BadgerDB and recalls
// the ones relevant to a query by keyword overlap.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	turnKeyPrefix = "turn:"

	defaultMaxResults = 5

	// minTermLength filters out articles and pronouns that would match
	// nearly every stored turn.
	minTermLength = 3
)

// turnRecord is the msgpack-encoded value stored per conversation turn.
type turnRecord struct {
	ID        string `msgpack:"id"`
	Speaker   string `msgpack:"speaker"`
	Text      string `msgpack:"text"`
	IsAgent   bool   `msgpack:"is_agent"`
	Timestamp int64  `msgpack:"ts"`
}

type Store struct {
	db         *badger.DB
	maxResults int
}

type StoreOption func(*storeOptions)

type storeOptions struct {
	dir        string
	inMemory   bool
	maxResults int
}

// WithDir sets the directory for the database files. Required unless the
// store is in-memory.
func WithDir(dir string) StoreOption {
	return func(o *storeOptions) {
		o.dir = dir
	}
}

// WithInMemory keeps the whole store in memory, without disk persistence.
func WithInMemory() StoreOption {
	return func(o *storeOptions) {
		o.inMemory = true
	}
}

// WithMaxResults caps how many turns a search may return.
func WithMaxResults(maxResults int) StoreOption {
	return func(o *storeOptions) {
		o.maxResults = maxResults
	}
}

func NewStore(opts ...StoreOption) (*Store, error) {
	options := storeOptions{maxResults: defaultMaxResults}
	for _, opt := range opts {
		opt(&options)
	}

	if !options.inMemory && options.dir == "" {
		return nil, errors.New("a directory is required unless the store is in-memory")
	}

	dbOpts := badger.DefaultOptions(options.dir).WithLogger(quietLogger{})
	if options.inMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open turn store: %w", err)
	}

	return &Store{db: db, maxResults: options.maxResults}, nil
}

// StoreTurn persists one conversation turn.
func (s *Store) StoreTurn(_ context.Context, speaker string, text string, isAgent bool) error {
	record := turnRecord{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		IsAgent:   isAgent,
		Timestamp: time.Now().UnixNano(),
	}

	data, err := msgpack.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode turn: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(turnKey(record.Timestamp), data)
	})
}

// SearchRelevant scores every stored turn by keyword overlap with the query
// and renders the best matches as a context block, oldest first. It returns
// an empty string when nothing relevant is stored.
func (s *Store) SearchRelevant(_ context.Context, query string) (string, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return "", nil
	}

	records, err := s.loadTurns()
	if err != nil {
		return "", err
	}

	scored := make([]scoredTurn, 0, len(records))
	for _, record := range records {
		score := overlapScore(terms, tokenize(record.Text))
		if score == 0 {
			continue
		}
		scored = append(scored, scoredTurn{record: record, score: score})
	}
	if len(scored) == 0 {
		return "", nil
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].record.Timestamp > scored[j].record.Timestamp
	})
	if len(scored) > s.maxResults {
		scored = scored[:s.maxResults]
	}

	// Selection is by score, rendering is chronological.
	sort.Slice(scored, func(i, j int) bool {
		return scored[i].record.Timestamp < scored[j].record.Timestamp
	})

	var block strings.Builder
	block.WriteString("Relevant earlier conversation:")
	for _, turn := range scored {
		block.WriteString(fmt.Sprintf("\n[%s]: %s", turn.record.Speaker, turn.record.Text))
	}
	return block.String(), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scoredTurn struct {
	record turnRecord
	score  float64
}

func (s *Store) loadTurns() ([]turnRecord, error) {
	var records []turnRecord
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte(turnKeyPrefix)
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(iterOpts.Prefix); it.ValidForPrefix(iterOpts.Prefix); it.Next() {
			var record turnRecord
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &record)
			})
			if err != nil {
				// Skip malformed entries.
				continue
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan turns: %w", err)
	}
	return records, nil
}

// turnKey builds a key whose lexicographic ordering matches chronological
// ordering.
func turnKey(ts int64) []byte {
	return fmt.Appendf(nil, "%s%020d", turnKeyPrefix, ts)
}

// tokenize splits text into deduplicated lowercase terms.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.Trim(field, ".,!?;:\"'")
		if len([]rune(field)) < minTermLength {
			continue
		}
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		terms = append(terms, field)
	}
	return terms
}

// overlapScore computes the fraction of query terms found among the turn's
// terms.
func overlapScore(queryTerms []string, turnTerms []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	turnSet := make(map[string]struct{}, len(turnTerms))
	for _, term := range turnTerms {
		turnSet[term] = struct{}{}
	}
	hits := 0
	for _, term := range queryTerms {
		if _, ok := turnSet[term]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}

// quietLogger keeps badger's chatter out of the logs, surfacing only
// problems.
type quietLogger struct{}

func (quietLogger) Errorf(f string, v ...interface{})   { log.Printf("[badger] ERROR: "+f, v...) }
func (quietLogger) Warningf(f string, v ...interface{}) { log.Printf("[badger] WARN: "+f, v...) }
func (quietLogger) Infof(string, ...interface{})        {}
func (quietLogger) Debugf(string, ...interface{})       {}
