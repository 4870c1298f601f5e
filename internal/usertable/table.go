// Package usertable holds the non-visual state of the user admin table:
// search, status filter and page selection, the rows to display and the
// outcome of the last action.
package usertable

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"k8s.io/utils/clock"

	"github.com/EO-DataHub/eodhp-user-admin/internal/debounce"
	"github.com/EO-DataHub/eodhp-user-admin/internal/querycache"
	"github.com/EO-DataHub/eodhp-user-admin/models"
)

const (
	DefaultPageSize = 10
	DefaultDebounce = 300 * time.Millisecond

	LoadFailedMessage   = "Failed to load users. Please try again."
	UpdateFailedMessage = "Failed to update user status"
)

// ErrConfirmationRequired is returned by Toggle when a deactivation has not
// been confirmed.
var ErrConfirmationRequired = errors.New("deactivation requires confirmation")

// Source is the cache the table reads through. *querycache.Cache
// satisfies it.
type Source interface {
	GetOrFetch(ctx context.Context, params models.ListParams) (models.ListResult, error)
	Refetch(ctx context.Context, params models.ListParams) (models.ListResult, error)
	Read(params models.ListParams) querycache.View
	MutateStatus(ctx context.Context, userID string, status models.Status) (models.UpdateStatusResult, error)
}

// MessageKind classifies a Message.
type MessageKind string

const (
	MessageNone    MessageKind = ""
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

// Message is the outcome shown to the operator after a load or an action.
type Message struct {
	Kind MessageKind
	Text string
	// Retry is set when the operator can retry a failed load.
	Retry bool
}

// Row is one displayed user.
type Row struct {
	models.User
	// Action is the label of the row's status button.
	Action string
}

// Snapshot is everything needed to render the table once.
type Snapshot struct {
	Search     string
	Status     models.StatusFilter
	Page       int
	PageSize   int
	PageCount  int
	TotalCount int
	Rows       []Row
	// Loading is true while the displayed rows are not fresh for the
	// current parameters.
	Loading bool
	// Placeholder is true when the rows belong to previously shown
	// parameters.
	Placeholder bool
	Message     Message
}

// Option configures a Table.
type Option func(*Table)

func WithPageSize(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.pageSize = n
		}
	}
}

func WithDebounce(d time.Duration) Option {
	return func(t *Table) { t.debounce = d }
}

// WithClock sets the clock used to debounce the search input.
func WithClock(clk clock.WithDelayedExecution) Option {
	return func(t *Table) { t.clock = clk }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Table) { t.log = logger }
}

// WithOnChange registers a callback run whenever the effective parameters
// change without a direct call, i.e. when the debounced search settles.
func WithOnChange(fn func()) Option {
	return func(t *Table) { t.onChange = fn }
}

// Table is the admin table state. It is safe for concurrent use.
type Table struct {
	source   Source
	log      zerolog.Logger
	clock    clock.WithDelayedExecution
	pageSize int
	debounce time.Duration
	onChange func()

	query *debounce.Debouncer[string]

	mu      sync.Mutex
	search  string
	status  models.StatusFilter
	page    int
	message Message
}

// New returns a table on page 1 with no search and the "all" filter.
func New(source Source, opts ...Option) *Table {
	t := &Table{
		source:   source,
		log:      log.With().Str("component", "usertable").Logger(),
		clock:    clock.RealClock{},
		pageSize: DefaultPageSize,
		debounce: DefaultDebounce,
		status:   models.StatusFilterAll,
		page:     1,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.query = debounce.New(t.clock, t.debounce, "", t.querySettled)
	return t
}

// Close stops the search debounce.
func (t *Table) Close() {
	t.query.Stop()
}

// SetSearch records the raw search input. The query used for loading
// follows it once the input has been stable for the debounce delay.
func (t *Table) SetSearch(s string) {
	t.mu.Lock()
	t.search = s
	t.mu.Unlock()
	t.query.Set(s)
}

// ApplySearch makes a pending search input effective immediately.
func (t *Table) ApplySearch() {
	t.query.Flush()
}

func (t *Table) querySettled(q string) {
	t.mu.Lock()
	t.page = 1
	t.mu.Unlock()

	t.log.Debug().Str("query", q).Msg("search settled")
	if t.onChange != nil {
		t.onChange()
	}
}

// SetStatusFilter changes the filter and returns to page 1.
func (t *Table) SetStatusFilter(f models.StatusFilter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = f
	t.page = 1
}

// SetPage selects a 1-based page.
func (t *Table) SetPage(page int) error {
	if page < 1 {
		return errors.New("page must be >= 1")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.page = page
	return nil
}

// Params returns the parameters the table currently loads.
func (t *Table) Params() models.ListParams {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paramsLocked()
}

func (t *Table) paramsLocked() models.ListParams {
	return models.ListParams{
		Page:     t.page,
		PageSize: t.pageSize,
		Query:    t.query.Value(),
		Status:   t.status,
	}
}

// Load fetches the current page if it is not fresh and returns the
// resulting snapshot. On failure the snapshot keeps any cached rows and
// carries a retryable error message.
func (t *Table) Load(ctx context.Context) (Snapshot, error) {
	return t.load(ctx, t.source.GetOrFetch)
}

// Retry forces a new load of the current page.
func (t *Table) Retry(ctx context.Context) (Snapshot, error) {
	return t.load(ctx, t.source.Refetch)
}

func (t *Table) load(ctx context.Context, fetch func(context.Context, models.ListParams) (models.ListResult, error)) (Snapshot, error) {
	params := t.Params()
	_, err := fetch(ctx, params)

	t.mu.Lock()
	if err != nil {
		t.message = Message{Kind: MessageError, Text: LoadFailedMessage, Retry: true}
	} else if t.message.Retry {
		t.message = Message{}
	}
	t.mu.Unlock()

	if err != nil {
		t.log.Error().Err(err).Str("key", params.Key()).Msg("failed to load users")
	}
	return t.Snapshot(), err
}

// Snapshot returns the current state without loading.
func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	params := t.paramsLocked()
	s := Snapshot{
		Search:   t.search,
		Status:   t.status,
		Page:     t.page,
		PageSize: t.pageSize,
		Message:  t.message,
	}
	t.mu.Unlock()

	view := t.source.Read(params)
	s.Loading = view.State != querycache.StateFresh
	s.Placeholder = view.Placeholder
	if view.HasData {
		s.TotalCount = view.Result.TotalCount
		s.Rows = make([]Row, 0, len(view.Result.Users))
		for _, u := range view.Result.Users {
			s.Rows = append(s.Rows, Row{User: u, Action: actionLabel(u.Status)})
		}
	}
	s.PageCount = pageCount(s.TotalCount, s.PageSize)
	return s
}

// Toggle flips the status of a displayed user. Deactivating requires
// confirmed to be true; activating does not.
func (t *Table) Toggle(ctx context.Context, userID string, confirmed bool) (models.UpdateStatusResult, error) {
	u, ok := t.row(userID)
	if !ok {
		return models.UpdateStatusResult{}, querycache.ErrNotFound
	}
	target := u.Status.Toggle()
	if target == models.StatusInactive && !confirmed {
		return models.UpdateStatusResult{}, ErrConfirmationRequired
	}
	return t.SetStatus(ctx, userID, target)
}

// SetStatus applies status to userID and records the outcome message.
func (t *Table) SetStatus(ctx context.Context, userID string, status models.Status) (models.UpdateStatusResult, error) {
	result, err := t.source.MutateStatus(ctx, userID, status)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.message = Message{Kind: MessageError, Text: UpdateFailedMessage}
		return result, err
	}
	t.message = Message{Kind: MessageSuccess, Text: result.Message}
	return result, nil
}

// DismissMessage clears the current message.
func (t *Table) DismissMessage() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.message = Message{}
}

func (t *Table) row(userID string) (models.User, bool) {
	view := t.source.Read(t.Params())
	if !view.HasData || view.Placeholder {
		return models.User{}, false
	}
	for _, u := range view.Result.Users {
		if u.UserID == userID {
			return u, true
		}
	}
	return models.User{}, false
}

func actionLabel(s models.Status) string {
	if s == models.StatusActive {
		return "Deactivate"
	}
	return "Activate"
}

func pageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
