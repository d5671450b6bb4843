package symbols

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"viraltrade/internal/cache"
	"viraltrade/internal/domain"
	"viraltrade/internal/storage"
)

// defaultBasePrice anchors new listings when no virality data exists yet.
const defaultBasePrice = 10.0

// collisionAttempts bounds the suffix walk when a derived symbol is taken.
const collisionAttempts = 5

// ErrSymbolExhausted is returned when every alternative suffix for a topic
// collides with an existing listing.
var ErrSymbolExhausted = errors.New("no free symbol suffix for topic")

// Registry lists topics as tradable symbols. The hash-derived suffix is
// probabilistic, so listing is an insert-with-retry loop: on a duplicate
// canonical id for a different topic, the alternative-symbol generator is
// the mandatory recovery path.
type Registry struct {
	symbols    storage.SymbolStore
	snapshots  storage.SnapshotStore
	normalizer *Normalizer
	cache      cache.Cache
	logger     *zap.Logger
	now        func() time.Time
}

// NewRegistry creates a Registry. snapshots may be nil; new listings then
// anchor at the default base price instead of the topic's virality index.
// c may be nil when no read path caches listing state.
func NewRegistry(symbolStore storage.SymbolStore, snapshotStore storage.SnapshotStore, normalizer *Normalizer, c cache.Cache, logger *zap.Logger) *Registry {
	return &Registry{
		symbols:    symbolStore,
		snapshots:  snapshotStore,
		normalizer: normalizer,
		cache:      c,
		logger:     logger,
		now:        time.Now,
	}
}

// EnsureSymbol returns the symbol listed for a topic, creating it when the
// topic is listed for the first time. Listing is idempotent per topic.
func (r *Registry) EnsureSymbol(ctx context.Context, topic *domain.Topic) (*domain.Symbol, error) {
	if topic == nil || topic.TopicID == "" {
		return nil, storage.ErrInvalidInput
	}

	existing, err := r.symbols.GetByTopicID(ctx, topic.TopicID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup symbol for topic %s: %w", topic.TopicID, err)
	}

	canonical, err := r.normalizer.Normalize(topic)
	if err != nil {
		return nil, fmt.Errorf("normalize topic %s: %w", topic.TopicID, err)
	}

	candidates := append([]string{canonical}, r.normalizer.GenerateAlternativeSymbols(canonical, collisionAttempts)...)
	for _, candidate := range candidates {
		sym := r.newListing(ctx, candidate, topic)
		err := r.symbols.Insert(ctx, sym)
		if err == nil {
			r.invalidate(ctx, sym.Symbol)
			r.logger.Info("listed symbol",
				zap.String("symbol", sym.Symbol),
				zap.String("topic_id", topic.TopicID),
				zap.Float64("base_price", sym.BasePrice))
			return sym, nil
		}
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("insert symbol %s: %w", candidate, err)
		}

		// Suffix collision with another topic's listing; walk alternatives.
		r.logger.Warn("symbol suffix collision",
			zap.String("symbol", candidate),
			zap.String("topic_id", topic.TopicID))
	}

	return nil, fmt.Errorf("list topic %s: %w", topic.TopicID, ErrSymbolExhausted)
}

// newListing builds the initial symbol row for a topic.
func (r *Registry) newListing(ctx context.Context, canonical string, topic *domain.Topic) *domain.Symbol {
	now := r.now().UTC()
	sym := &domain.Symbol{
		Symbol:    canonical,
		TopicID:   topic.TopicID,
		Name:      topic.Title,
		BasePrice: defaultBasePrice,
		Status:    domain.StatusActive,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if r.snapshots != nil {
		if snap, err := r.snapshots.Latest(ctx, topic.TopicID); err == nil && snap.ViralityIndex > 0 {
			sym.BasePrice = snap.ViralityIndex
			sym.LastViralityScore = snap.ViralityIndex
			sym.LastVelocity = snap.Velocity
			sym.LastSentiment = snap.SentimentMean
			sym.BaselineAt = snap.Timestamp
		}
	}

	sym.CurrentPrice = sym.BasePrice
	sym.High24h = sym.BasePrice
	sym.Low24h = sym.BasePrice
	return sym
}

// Delist soft-deletes a symbol. Price history is retained; the symbol is
// never hard-deleted while history exists.
func (r *Registry) Delist(ctx context.Context, symbol string) error {
	sym, err := r.symbols.GetBySymbol(ctx, symbol)
	if err != nil {
		return err
	}
	sym.Status = domain.StatusDelisted
	sym.Active = false
	sym.UpdatedAt = r.now().UTC()
	if err := r.symbols.Update(ctx, sym); err != nil {
		return err
	}
	r.invalidate(ctx, sym.Symbol)
	return nil
}

// Suspend halts pricing for a symbol without delisting it.
func (r *Registry) Suspend(ctx context.Context, symbol string) error {
	sym, err := r.symbols.GetBySymbol(ctx, symbol)
	if err != nil {
		return err
	}
	sym.Status = domain.StatusSuspended
	sym.Active = false
	sym.UpdatedAt = r.now().UTC()
	if err := r.symbols.Update(ctx, sym); err != nil {
		return err
	}
	r.invalidate(ctx, sym.Symbol)
	return nil
}

// invalidate deletes the keys a listing mutation makes stale: the symbol's
// own keys, the active-symbol list and the market summary.
func (r *Registry) invalidate(ctx context.Context, symbol string) {
	if r.cache == nil {
		return
	}
	keys := append(cache.SymbolKeys(symbol), cache.ActiveSymbolsKey(), cache.SummaryKey())
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn("cache invalidation failed", zap.String("symbol", symbol), zap.Error(err))
	}
}
