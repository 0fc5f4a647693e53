// Package storage persists sniff reports in a catalog table so repeated runs
// can be compared and downstream importers can look up a source's last known
// dialect.
//
// Backends register themselves by kind from an init function; import
// csvsniff/internal/storage/all to get every backend.
package storage

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"csvsniff/pkg/sniffer"
)

// DefaultTable is the catalog table name used when Config.Table is empty.
const DefaultTable = "sniff_reports"

// Config is the minimal configuration needed to open a catalog.
//
// Edge cases:
//   - Kind must match a registered backend kind.
//   - DSN is passed through to the backend; validation is backend-specific.
//   - Table may be schema-qualified ("catalog.sniff_reports").
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// TableName returns the configured table or DefaultTable.
func (c Config) TableName() string {
	if t := strings.TrimSpace(c.Table); t != "" {
		return t
	}
	return DefaultTable
}

var tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateTableName rejects names that would need quoting beyond plain
// identifiers.
func ValidateTableName(name string) error {
	if !tableNameRE.MatchString(name) {
		return fmt.Errorf("storage: invalid table name %q", name)
	}
	return nil
}

// Record is one persisted sniff result.
type Record struct {
	ID        uuid.UUID
	Source    string
	SniffedAt time.Time

	Delimiter  string
	Quote      string
	NumFields  int
	HasHeader  bool
	Flexible   bool
	FieldTypes []string

	// Report is the full JSON-encoded sniffer.Report.
	Report []byte
}

// NewRecord builds a Record for rep with a fresh random ID.
func NewRecord(source string, rep *sniffer.Report, now time.Time) (Record, error) {
	if rep == nil {
		return Record{}, fmt.Errorf("storage: nil report")
	}
	raw, err := json.Marshal(rep)
	if err != nil {
		return Record{}, fmt.Errorf("storage: encode report: %w", err)
	}

	types := make([]string, len(rep.FieldTypes))
	for i, t := range rep.FieldTypes {
		types[i] = t.String()
	}

	var quote string
	if rep.Dialect.HasQuote() {
		quote = string(rep.Dialect.Quote)
	}

	return Record{
		ID:         uuid.New(),
		Source:     source,
		SniffedAt:  now.UTC(),
		Delimiter:  string(rep.Dialect.Delimiter),
		Quote:      quote,
		NumFields:  rep.NumFields,
		HasHeader:  rep.HasHeader,
		Flexible:   rep.Flexible,
		FieldTypes: types,
		Report:     raw,
	}, nil
}

// DecodeReport decodes the stored JSON report.
func (r Record) DecodeReport() (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(r.Report, &out); err != nil {
		return nil, fmt.Errorf("storage: decode report %s: %w", r.ID, err)
	}
	return out, nil
}

// JoinTypes and SplitTypes encode FieldTypes for backends without array
// columns. Type names never contain commas.
func JoinTypes(types []string) string { return strings.Join(types, ",") }

func SplitTypes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Repository is a sniff catalog.
type Repository interface {
	// EnsureSchema creates the catalog table if it does not exist.
	EnsureSchema(ctx context.Context) error
	// Save inserts rec.
	Save(ctx context.Context, rec Record) error
	// Latest returns the most recent record for source. ok is false when the
	// source has never been sniffed.
	Latest(ctx context.Context, source string) (rec Record, ok bool, err error)
	// Close releases backend resources. Call once.
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Call it from an init
// function in the backend package.
//
// Panics if kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds lists registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Repository with the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}
	if err := ValidateTableName(cfg.TableName()); err != nil {
		return nil, err
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s (registered: %s)", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	return f(ctx, cfg)
}
