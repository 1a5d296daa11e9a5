package library

import (
	"fmt"
	"log/slog"
)

// LibraryManager wires every store over one Database, keeping CLI code
// simple.
type LibraryManager struct {
	db *Database

	Catalog     *Catalog
	Members     *Directory
	Staff       *Staff
	Circulation *Circulation
}

type settings struct {
	logger      *slog.Logger
	clock       Clock
	ids         IDGen
	loanPeriod  int
	finePerDay  float64
	pageSize    int
	searchLimit int
}

// Option configures a LibraryManager.
type Option func(*settings) error

// WithLogger sets the structured logger used by every store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		s.logger = logger
		return nil
	}
}

// WithClock replaces the wall clock; tests use it to pin "today".
func WithClock(clock Clock) Option {
	return func(s *settings) error {
		if clock == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		s.clock = clock
		return nil
	}
}

// WithIDGen replaces the ULID borrow reference generator.
func WithIDGen(ids IDGen) Option {
	return func(s *settings) error {
		if ids == nil {
			return fmt.Errorf("id generator cannot be nil")
		}
		s.ids = ids
		return nil
	}
}

// WithLoanPeriod sets the default number of days a book is issued for.
func WithLoanPeriod(days int) Option {
	return func(s *settings) error {
		if days <= 0 {
			return fmt.Errorf("loan period must be > 0, got %d", days)
		}
		s.loanPeriod = days
		return nil
	}
}

// WithFinePerDay sets the fine charged per whole day overdue.
func WithFinePerDay(amount float64) Option {
	return func(s *settings) error {
		if amount < 0 {
			return fmt.Errorf("fine per day must be >= 0, got %v", amount)
		}
		s.finePerDay = amount
		return nil
	}
}

// WithPageSize sets how many books ListBooks returns per page.
func WithPageSize(n int) Option {
	return func(s *settings) error {
		s.pageSize = n
		return nil
	}
}

// WithSearchLimit caps SearchBooks results.
func WithSearchLimit(n int) Option {
	return func(s *settings) error {
		s.searchLimit = n
		return nil
	}
}

// ConfigOptions translates a Config into manager options.
func ConfigOptions(cfg *Config) []Option {
	return []Option{
		WithLoanPeriod(cfg.Circulation.LoanPeriodDays),
		WithFinePerDay(cfg.Circulation.FinePerDay),
		WithPageSize(cfg.Catalog.PageSize),
		WithSearchLimit(cfg.Catalog.SearchLimit),
	}
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
func NewLibraryManager(dbPath string, opts ...Option) (*LibraryManager, error) {
	s := settings{
		clock:       realClock{},
		loanPeriod:  DefaultLoanPeriodDays,
		finePerDay:  DefaultFinePerDay,
		pageSize:    DefaultPageSize,
		searchLimit: DefaultSearchLimit,
	}
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return nil, err
		}
	}
	if s.ids == nil {
		s.ids = ulidGen{clock: s.clock}
	}

	db, err := NewDatabase(dbPath, s.logger)
	if err != nil {
		return nil, err
	}
	return &LibraryManager{
		db:      db,
		Catalog: newCatalog(db, s.pageSize, s.searchLimit),
		Members: &Directory{db: db, clock: s.clock},
		Staff:   &Staff{db: db},
		Circulation: &Circulation{
			db:         db,
			clock:      s.clock,
			ids:        s.ids,
			loanPeriod: s.loanPeriod,
			finePerDay: s.finePerDay,
		},
	}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }
