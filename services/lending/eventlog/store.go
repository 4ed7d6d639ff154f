package eventlog

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"lendingcore/core/events"
	"lendingcore/core/types"
	"lendingcore/observability"
)

// ErrChainBroken is returned by Verify when a stored digest does not match
// the record it covers.
var ErrChainBroken = errors.New("eventlog: digest chain broken")

// Record is one committed pool event. Digest chains every record to its
// predecessor so tampering with history is detectable.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex;not null"`
	Type       string    `gorm:"size:64;index"`
	Reserve    string    `gorm:"size:42;index"`
	Account    string    `gorm:"size:42;index"`
	Attributes string    `gorm:"type:text"`
	PrevDigest string    `gorm:"size:64"`
	Digest     string    `gorm:"size:64;uniqueIndex"`
	CreatedAt  time.Time
}

// Event decodes the stored attributes.
func (r Record) Event() (*types.Event, error) {
	attrs := map[string]string{}
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return nil, err
		}
	}
	return &types.Event{Type: r.Type, Attributes: attrs}, nil
}

// Open connects to the event database. Driver is "sqlite" or "postgres".
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "":
		if strings.TrimSpace(dsn) == "" {
			dsn = "file:lendingd-events?mode=memory&cache=shared"
		}
		return gorm.Open(sqlite.Open(dsn), cfg)
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("eventlog: unsupported driver %q", driver)
	}
}

// AutoMigrate creates the event table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// Store appends committed events and serves them back filtered by reserve
// and user. It implements events.Emitter.
type Store struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *observability.EventMetrics
	now     func() time.Time

	mu   sync.Mutex
	seq  uint64
	head string
}

// New migrates db and resumes the digest chain from the last stored record.
func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("eventlog: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	s := &Store{db: db, logger: log, now: time.Now}
	var last Record
	err := db.Order("sequence desc").Limit(1).Take(&last).Error
	switch {
	case err == nil:
		s.seq = last.Sequence
		s.head = last.Digest
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("eventlog: load head: %w", err)
	}
	return s, nil
}

// SetMetrics enables emission counters.
func (s *Store) SetMetrics(metrics *observability.EventMetrics) { s.metrics = metrics }

// Emit persists evt. Failures are logged and counted; the pool has already
// committed the state change the event describes.
func (s *Store) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	if _, err := s.Append(context.Background(), events.Render(evt)); err != nil {
		s.metrics.RecordPersistFailure(evt.EventType())
		s.logger.Error("persist lending event",
			slog.String("type", evt.EventType()),
			slog.String("error", err.Error()))
		return
	}
	s.metrics.RecordEmitted(evt.EventType())
}

// Append stores evt at the next sequence number.
func (s *Store) Append(ctx context.Context, evt *types.Event) (*Record, error) {
	if evt == nil {
		return nil, fmt.Errorf("eventlog: nil event")
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record := Record{
		ID:         uuid.New(),
		Sequence:   s.seq + 1,
		Type:       evt.Type,
		Reserve:    evt.Attributes["reserve"],
		Account:    evt.Attributes["user"],
		Attributes: string(attrs),
		PrevDigest: s.head,
		CreatedAt:  s.now().UTC(),
	}
	record.Digest = digest(record)
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	s.seq = record.Sequence
	s.head = record.Digest
	return &record, nil
}

// Filter narrows List. Zero fields match everything; Limit defaults to 100.
type Filter struct {
	Reserve string
	Account string
	Type    string
	After   uint64
	Limit   int
}

// List returns records in sequence order.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := s.db.WithContext(ctx).Model(&Record{}).Where("sequence > ?", filter.After)
	if v := strings.ToLower(strings.TrimSpace(filter.Reserve)); v != "" {
		query = query.Where("reserve = ?", v)
	}
	if v := strings.ToLower(strings.TrimSpace(filter.Account)); v != "" {
		query = query.Where("account = ?", v)
	}
	if v := strings.TrimSpace(filter.Type); v != "" {
		query = query.Where("type = ?", v)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var out []Record
	if err := query.Order("sequence asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Head returns the latest sequence number and digest.
func (s *Store) Head() (uint64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq, s.head
}

// Verify walks the whole log and recomputes every digest.
func (s *Store) Verify(ctx context.Context) error {
	var records []Record
	if err := s.db.WithContext(ctx).Order("sequence asc").Find(&records).Error; err != nil {
		return err
	}
	prev := ""
	for i, record := range records {
		if record.Sequence != uint64(i+1) || record.PrevDigest != prev || digest(record) != record.Digest {
			return fmt.Errorf("%w at sequence %d", ErrChainBroken, record.Sequence)
		}
		prev = record.Digest
	}
	return nil
}

func digest(r Record) string {
	h := blake3.New(32, nil)
	for _, part := range []string{r.PrevDigest, strconv.FormatUint(r.Sequence, 10), r.Type, r.Attributes} {
		_, _ = h.Write([]byte(strconv.Itoa(len(part))))
		_, _ = h.Write([]byte{':'})
		_, _ = h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
