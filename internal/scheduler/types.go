package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"printdesk/internal/audit"
	"printdesk/internal/civic"
	"printdesk/internal/model"
	"printdesk/internal/printer"
	"printdesk/internal/store"
	logx "printdesk/pkg/logx"
)

// Config controls the loop service.
type Config struct {
	// TickInterval is the fixed sweep interval (default 60s).
	TickInterval time.Duration
	// BaseURL is the appliance's own address, used for receipt QR
	// fallbacks (e.g. "http://desk.local:8080").
	BaseURL string
	// DefaultLookback bounds the fetch window for a listener that has
	// never successfully checked (default 1h). Without it the first poll
	// would ask for unbounded history.
	DefaultLookback time.Duration
}

func (c Config) tickInterval() time.Duration {
	if c.TickInterval <= 0 {
		return time.Minute
	}
	return c.TickInterval
}

func (c Config) lookback() time.Duration {
	if c.DefaultLookback <= 0 {
		return time.Hour
	}
	return c.DefaultLookback
}

// IssueFetcher is the slice of the civic client the loop needs.
type IssueFetcher interface {
	FetchSince(ctx context.Context, q civic.Query) ([]model.Issue, error)
}

// Deps are the collaborators of the loop. Audit may be nil (disabled).
// Now may be nil (wall clock); tests inject a fake.
type Deps struct {
	Tasks     *store.Tasks
	Listeners *store.Listeners
	History   *store.History
	Printer   printer.Gateway
	Issues    IssueFetcher
	Audit     audit.Store
	Log       logx.Logger
	Now       func() time.Time
}

// Service owns the background loop.
type Service struct {
	mu   sync.Mutex
	cfg  Config
	deps Deps
	log  logx.Logger
	now  func() time.Time

	c     *cron.Cron
	entry cron.EntryID
	// ctx carries the daemon lifetime into renders and fetches started
	// by the tick. Set by Start.
	ctx context.Context

	// ticking guards against overlapping ticks when a sweep outlives the
	// interval (slow printer, slow external API).
	ticking atomic.Bool

	ticks    atomic.Uint64
	lastTick atomic.Int64 // unix nano; 0 = never
}

// Snapshot is a point-in-time view for the dashboard.
type Snapshot struct {
	Ticks    uint64
	LastTick time.Time
}
