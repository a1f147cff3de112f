package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"habibeat/backend/internal/catalog"
	"habibeat/backend/internal/domain"
	"habibeat/backend/internal/feed"
	"habibeat/backend/internal/ledger"
	"habibeat/backend/internal/store"
)

var (
	ErrFutureMonth   = errors.New("month is in the future")
	ErrFutureDay     = errors.New("day is in the future")
	ErrInvalidPeriod = errors.New("invalid month")
	ErrAdminRequired = errors.New("admin role required")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Clock            func() time.Time
	PersistTimeout   time.Duration
	StatusClearAfter time.Duration
	// ResubscribeDelay is the pause before a failed feed subscription is retried.
	ResubscribeDelay time.Duration
}

// Service owns one View per actor, the shared product master list and the feed
// fan-out.
type Service struct {
	repo      store.Repository
	resolver  *ledger.CarryOverResolver
	persister *persister
	opts      Options
	clock     func() time.Time

	mu    sync.Mutex
	views map[string]*View

	productsMu      sync.RWMutex
	products        []domain.Product
	productsByID    map[string]domain.Product
	productsVersion uint64
}

func New(repo store.Repository, resolver *ledger.CarryOverResolver, publisher feed.Publisher, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ResubscribeDelay <= 0 {
		opts.ResubscribeDelay = time.Second
	}
	if publisher == nil {
		publisher = feed.NoopPublisher{}
	}
	if resolver == nil {
		resolver = ledger.NewCarryOverResolver(repo, nil, 0)
	}
	return &Service{
		repo:      repo,
		resolver:  resolver,
		persister: &persister{repo: repo, publisher: publisher},
		opts:      opts,
		clock:     opts.Clock,
		views:     make(map[string]*View),
	}
}

// View returns the actor's view, opening it on the current month the first time.
func (s *Service) View(ctx context.Context, actor domain.Actor) (*View, error) {
	if strings.TrimSpace(actor.Username) == "" {
		return nil, errors.New("actor required")
	}

	s.mu.Lock()
	v, ok := s.views[actor.Username]
	if ok {
		s.mu.Unlock()
		return v, nil
	}
	v = newView(s, actor)
	s.views[actor.Username] = v
	s.mu.Unlock()

	s.ensureCatalog(ctx)
	if err := v.Navigate(ctx, domain.PeriodOf(s.clock())); err != nil {
		return nil, err
	}
	return v, nil
}

// CloseView drops the actor's view after its pending persists finish.
func (s *Service) CloseView(username string) {
	s.mu.Lock()
	v, ok := s.views[username]
	delete(s.views, username)
	s.mu.Unlock()
	if ok {
		v.Wait()
	}
}

func (s *Service) openViews() []*View {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := make([]*View, 0, len(s.views))
	for _, v := range s.views {
		views = append(views, v)
	}
	return views
}

// Dispatch delivers a feed notification to every open view.
func (s *Service) Dispatch(change domain.EntryChange) {
	for _, v := range s.openViews() {
		outcome := v.Receive(change)
		log.Debug().
			Str("user", v.actor.Username).
			Str("slot", change.Entry.Slot().String()).
			Str("period", change.Entry.Period().String()).
			Str("outcome", outcome.String()).
			Msg("entry change merged")
	}
}

// Run consumes the feed until ctx is done, resubscribing after failures.
func (s *Service) Run(ctx context.Context, sub feed.Subscriber) {
	for {
		err := sub.Subscribe(ctx, s.Dispatch)
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Dur("retry_in", s.opts.ResubscribeDelay).Msg("feed subscription ended")
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.opts.ResubscribeDelay):
		}
	}
}

// Wait blocks until every open view's persists finish.
func (s *Service) Wait() {
	for _, v := range s.openViews() {
		v.Wait()
	}
}

// RefreshProducts reloads the master list. On failure the previous list is kept.
func (s *Service) RefreshProducts(ctx context.Context) error {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("product list refresh failed")
		return err
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	s.productsMu.Lock()
	s.products = products
	s.productsByID = byID
	s.productsVersion++
	s.productsMu.Unlock()
	return nil
}

func (s *Service) ensureCatalog(ctx context.Context) {
	s.productsMu.RLock()
	loaded := s.productsVersion > 0
	s.productsMu.RUnlock()
	if !loaded {
		_ = s.RefreshProducts(ctx)
	}
}

func (s *Service) catalog() ([]domain.Product, uint64) {
	s.productsMu.RLock()
	defer s.productsMu.RUnlock()
	return s.products, s.productsVersion
}

func (s *Service) product(id string) (domain.Product, bool) {
	s.productsMu.RLock()
	defer s.productsMu.RUnlock()
	p, ok := s.productsByID[id]
	return p, ok
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Unit = strings.TrimSpace(req.Unit)
	if err := Validate(req); err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{Name: req.Name, Unit: req.Unit, UnitPrice: req.UnitPrice})
	if err != nil {
		return domain.Product{}, err
	}
	_ = s.RefreshProducts(ctx)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if err := Validate(req); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	updated := *existing
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Unit != nil {
		updated.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.IsNegative() {
			return domain.Product{}, &ValidationError{Fields: map[string]string{"UnitPrice": "min"}}
		}
		updated.UnitPrice = *req.UnitPrice
	}
	if updated.Name == "" || updated.Unit == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	_ = s.RefreshProducts(ctx)
	return *saved, nil
}

// DeleteProduct removes a product from the master list. Its past entries stay stored.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	_ = s.RefreshProducts(ctx)
	return nil
}

// ImportProducts creates one product per item at a zero unit price. It stops at the
// first failure and reports how many were created before it.
func (s *Service) ImportProducts(ctx context.Context, items []catalog.Item) (int, error) {
	if err := requireAdmin(ctx); err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, catalog.ErrEmptyImport
	}

	created := 0
	var err error
	for _, item := range items {
		_, err = s.repo.CreateProduct(ctx, domain.Product{
			Name:      strings.TrimSpace(item.Name),
			Unit:      strings.TrimSpace(item.Unit),
			UnitPrice: decimal.Zero,
		})
		if err != nil {
			break
		}
		created++
	}
	if created > 0 {
		_ = s.RefreshProducts(ctx)
	}
	return created, err
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrAdminRequired
	}
	return nil
}

// persister writes entries durably and announces them on the feed.
type persister struct {
	repo      store.EntryRepository
	publisher feed.Publisher
}

// UpsertEntry only announces rows that were written. A row the store kept a newer
// version of is already superseded on the feed.
func (p *persister) UpsertEntry(ctx context.Context, entry domain.StockEntry) error {
	written, err := p.repo.UpsertEntry(ctx, entry)
	if err != nil {
		return err
	}
	if !written {
		log.Debug().Str("slot", entry.Slot().String()).Str("period", entry.Period().String()).Msg("stored row is newer, not publishing")
		return nil
	}
	if err := p.publisher.Publish(ctx, domain.EntryChange{Entry: entry}); err != nil {
		log.Warn().Err(err).Str("slot", entry.Slot().String()).Str("period", entry.Period().String()).Msg("entry change publish failed")
	}
	return nil
}
