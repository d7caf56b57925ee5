// Package search implements the search orchestrator: it decides when a
// viewport or location change warrants a new remote search, runs that search
// exactly once per admitted trigger, and reports lifecycle notifications.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/sadewadee/dynamic-search/internal/bandwidth"
	"github.com/sadewadee/dynamic-search/internal/cache"
	"github.com/sadewadee/dynamic-search/internal/domain"
	"github.com/sadewadee/dynamic-search/tlmt"
)

// Common orchestrator errors
var (
	ErrBandwidthLimited = errors.New("search refused by bandwidth governor")
	ErrNoUsableResult   = errors.New("no usable search result")
)

// Significance thresholds at the wifi_optimal baseline. Constrained-network
// strategies scale these up via SignificanceScale. Preserved from production
// tuning; the tests pin these values.
const (
	minMovementMeters = 100.0
	minSpanDelta      = 0.005
)

// Cache validity and invalidation similarity thresholds.
const (
	cacheHitSimilarity    = 0.8
	invalidateSimilarity  = 0.7
	estimatedRequestBytes = 2 << 10
	estimatedResultBytes  = 64 << 10
)

// Statistics is the read-only diagnostic snapshot.
type Statistics struct {
	TotalSearches       int64                   `json:"total_searches"`
	CacheSize           int                     `json:"cache_size"`
	ActiveSearches      int                     `json:"active_searches"`
	QueuedRequests      int                     `json:"queued_requests"`
	CurrentStrategyName string                  `json:"current_strategy_name"`
	NetworkCondition    domain.NetworkCondition `json:"network_condition"`
	DataUsage           domain.DataUsageMetrics `json:"data_usage"`
}

// Orchestrator coordinates region-change batching, significance filtering,
// admission control, caching, fetching and notification fan-out. Construct
// with New and share one instance; its mutable state is private.
type Orchestrator struct {
	clock    clock.Clock
	governor *bandwidth.Governor
	cache    cache.ResultCache
	fetcher  Fetcher
	history  domain.HistoryRepository
	prefRepo domain.PreferenceRepository
	notifier *Notifier
	tel      tlmt.Telemetry

	flight singleflight.Group

	mu            sync.Mutex
	active        map[string]struct{}
	pending       []pendingChange
	debounce      *clock.Timer
	lastRegion    *domain.SearchRegion
	lastLocation  *domain.Location
	prefs         domain.Preferences
	query         string
	category      string
	totalSearches int64
}

type pendingChange struct {
	region  domain.SearchRegion
	trigger domain.RegionChangeTrigger
}

// searchContext is the blob persisted under the last_context namespace so a
// restart resumes with the previous query and viewport.
type searchContext struct {
	Query    string              `json:"query,omitempty"`
	Category string              `json:"category,omitempty"`
	Region   domain.SearchRegion `json:"region"`
}

// Config bundles the orchestrator dependencies.
type Config struct {
	Clock     clock.Clock
	Governor  *bandwidth.Governor
	Cache     cache.ResultCache
	Fetcher   Fetcher
	History   domain.HistoryRepository
	Prefs     domain.PreferenceRepository
	Notifier  *Notifier
	Telemetry tlmt.Telemetry
}

// New creates an Orchestrator. Preferences are loaded from the repository
// when one is configured, falling back to defaults.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		clock:    cfg.Clock,
		governor: cfg.Governor,
		cache:    cfg.Cache,
		fetcher:  cfg.Fetcher,
		history:  cfg.History,
		prefRepo: cfg.Prefs,
		notifier: cfg.Notifier,
		tel:      cfg.Telemetry,
		active:   make(map[string]struct{}),
		prefs:    domain.DefaultPreferences(),
	}

	if o.prefRepo != nil {
		if prefs, err := o.prefRepo.GetPreferences(context.Background()); err == nil && prefs != nil {
			o.prefs = *prefs
		}

		if blob, err := o.prefRepo.GetContext(context.Background(), domain.NamespaceLastContext); err == nil && len(blob) > 0 {
			var sc searchContext
			if err := json.Unmarshal(blob, &sc); err == nil {
				o.query = sc.Query
				o.category = sc.Category
				if sc.Region.IsValid() {
					region := sc.Region
					o.lastRegion = &region
				}
			}
		}
	}

	o.governor.SetDataUsageMode(o.prefs.DataUsageMode)

	return o
}

// Notifier returns the notification hub for subscribers.
func (o *Orchestrator) Notifier() *Notifier {
	return o.notifier
}

// Preferences returns the current preference set.
func (o *Orchestrator) Preferences() domain.Preferences {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.prefs
}

// SetPreferences applies and persists new preferences. The data usage mode
// is forwarded to the governor, where the minimal mode pins data_saver.
func (o *Orchestrator) SetPreferences(ctx context.Context, prefs domain.Preferences) error {
	o.mu.Lock()
	o.prefs = prefs
	o.mu.Unlock()

	o.governor.SetDataUsageMode(prefs.DataUsageMode)

	if o.prefRepo == nil {
		return nil
	}
	if err := o.prefRepo.SetPreferences(ctx, &prefs); err != nil {
		return fmt.Errorf("failed to persist preferences: %w", err)
	}
	return nil
}

// SetQuery updates the free-text query and category applied to criteria
// built from subsequent region changes.
func (o *Orchestrator) SetQuery(query, category string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.query = query
	o.category = category
}

// HandleLocationUpdate ingests a device location push. The location becomes
// the reference point of subsequent criteria and is treated as a potential
// region change around the new coordinate.
func (o *Orchestrator) HandleLocationUpdate(loc domain.Location) {
	o.mu.Lock()
	o.lastLocation = &loc
	span := 0.01
	if o.lastRegion != nil && o.lastRegion.LatSpan > 0 {
		span = o.lastRegion.LatSpan
	}
	o.mu.Unlock()

	region := domain.SearchRegion{
		CenterLat:  loc.Lat,
		CenterLon:  loc.Lon,
		LatSpan:    span,
		LonSpan:    span,
		ObservedAt: loc.ObservedAt,
	}
	o.HandleRegionChange(region, domain.TriggerLocationUpdate)
}

// HandleRegionChange buffers a viewport change and resets the trailing
// debounce timer. Within one debounce window only the last region is acted
// on; earlier ones are superseded, never replayed.
func (o *Orchestrator) HandleRegionChange(region domain.SearchRegion, trigger domain.RegionChangeTrigger) {
	if region.ObservedAt.IsZero() {
		region.ObservedAt = o.clock.Now()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending = append(o.pending, pendingChange{region: region, trigger: trigger})

	debounce := o.governor.CurrentStrategy().Debounce
	if o.debounce != nil {
		o.debounce.Stop()
	}
	o.debounce = o.clock.AfterFunc(debounce, o.processPendingChanges)
}

// processPendingChanges fires when the debounce window goes quiet: it takes
// the last buffered region, applies preference and significance filters, and
// kicks off a search.
func (o *Orchestrator) processPendingChanges() {
	o.mu.Lock()

	if len(o.pending) == 0 {
		o.mu.Unlock()
		return
	}
	last := o.pending[len(o.pending)-1]
	dropped := len(o.pending) - 1
	o.pending = o.pending[:0]

	if !o.prefs.AutoSearchEnabled {
		o.mu.Unlock()
		return
	}

	if !o.significantLocked(last.region) {
		o.mu.Unlock()
		return
	}

	region := last.region
	o.lastRegion = &region
	criteria := o.buildCriteriaLocked(region)
	o.mu.Unlock()

	if dropped > 0 {
		log.Printf("[Orchestrator] collapsed %d superseded region changes", dropped)
	}

	go func() {
		if _, err := o.PerformDynamicSearch(context.Background(), criteria); err != nil &&
			!errors.Is(err, ErrBandwidthLimited) {
			log.Printf("[Orchestrator] dynamic search failed: %v", err)
		}
	}()
}

// significantLocked applies the significance test against the last acted-on
// region: a center movement beyond the scaled minimum, or a zoom-level span
// change beyond the scaled delta. The first region is always significant.
func (o *Orchestrator) significantLocked(region domain.SearchRegion) bool {
	if o.lastRegion == nil {
		return true
	}

	scale := o.governor.CurrentStrategy().SignificanceScale
	if scale <= 0 {
		scale = 1
	}

	moved := region.DistanceKmTo(*o.lastRegion) * 1000
	if moved > minMovementMeters*scale {
		return true
	}

	prevSpan := o.lastRegion.LatSpan + o.lastRegion.LonSpan
	curSpan := region.LatSpan + region.LonSpan
	delta := curSpan - prevSpan
	if delta < 0 {
		delta = -delta
	}

	return delta > minSpanDelta*scale
}

func (o *Orchestrator) buildCriteriaLocked(region domain.SearchRegion) *domain.SearchCriteria {
	radius := region.RadiusKm
	if radius <= 0 {
		radius = 5
	}

	var loc domain.Location
	if o.lastLocation != nil {
		loc = *o.lastLocation
	} else {
		loc = domain.Location{Lat: region.CenterLat, Lon: region.CenterLon, ObservedAt: region.ObservedAt}
	}

	return &domain.SearchCriteria{
		Query:     o.query,
		Category:  o.category,
		RadiusKm:  radius,
		Location:  loc,
		Region:    region,
		CreatedAt: o.clock.Now(),
	}
}

// PerformDynamicSearch runs one search for the given criteria: cache first,
// then governor admission, then the remote fetch. Concurrent calls with the
// same normalized criteria share a single in-flight execution.
func (o *Orchestrator) PerformDynamicSearch(ctx context.Context, criteria *domain.SearchCriteria) (*domain.SearchResult, error) {
	if err := criteria.Validate(); err != nil {
		return nil, fmt.Errorf("invalid criteria: %w", err)
	}

	searchID := criteria.Key().String()

	v, err, _ := o.flight.Do(searchID, func() (interface{}, error) {
		o.mu.Lock()
		o.active[searchID] = struct{}{}
		o.totalSearches++
		o.mu.Unlock()

		defer func() {
			o.mu.Lock()
			delete(o.active, searchID)
			o.mu.Unlock()
		}()

		return o.executeSearch(ctx, searchID, criteria)
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.SearchResult), nil
}

func (o *Orchestrator) executeSearch(ctx context.Context, searchID string, criteria *domain.SearchCriteria) (*domain.SearchResult, error) {
	now := o.clock.Now()

	// Cache hit: no network or governor involvement, one completed event. A
	// pending retry for the same criteria is satisfied by the hit.
	if hit := o.validCachedResult(ctx, criteria, now); hit != nil {
		o.governor.DropRequest(searchID)
		result := hit.AsCached()
		o.publish(ctx, domain.SearchNotification{
			Type:        domain.NotificationCompleted,
			SearchID:    searchID,
			Timestamp:   now,
			Region:      criteria.Region,
			ResultCount: result.TotalCount,
			Source:      domain.SourceCached,
			Confidence:  result.Confidence,
		})
		o.recordHistory(ctx, result, 0)
		o.sendTelemetry(ctx, "search_cache_hit", nil)
		return result, nil
	}

	strategy := o.governor.CurrentStrategy()

	ok, reason := o.governor.CanMakeRequest(estimatedRequestBytes, estimatedResultBytes, strategy.RequestPriority)
	if !ok {
		return o.refuse(ctx, searchID, criteria, strategy, reason)
	}

	o.governor.StartRequest(searchID, estimatedRequestBytes+estimatedResultBytes)

	o.publish(ctx, domain.SearchNotification{
		Type:      domain.NotificationStarted,
		SearchID:  searchID,
		Timestamp: o.clock.Now(),
		Region:    criteria.Region,
	})

	o.publishProgress(ctx, searchID, criteria.Region, 25)

	fetchCtx, cancel := context.WithTimeout(ctx, strategy.RequestTimeout)
	defer cancel()

	// The 75% mark fires mid-flight once half the request timeout elapses;
	// for fetches faster than that it is emitted right after the return.
	halfway := o.clock.AfterFunc(strategy.RequestTimeout/2, func() {
		o.publishProgress(ctx, searchID, criteria.Region, 75)
	})

	started := o.clock.Now()
	resp, err := o.fetcher.Fetch(fetchCtx, criteria)
	elapsed := o.clock.Now().Sub(started)

	stopped := halfway.Stop()

	if err != nil {
		return o.handleFetchFailure(ctx, searchID, criteria, err)
	}

	if stopped {
		o.publishProgress(ctx, searchID, criteria.Region, 75)
	}

	if cerr := o.governor.CompleteRequest(searchID, resp.Bytes); cerr != nil {
		log.Printf("[Orchestrator] governor complete failed for %s: %v", searchID, cerr)
	}

	condition := o.governor.CurrentCondition()
	result := &domain.SearchResult{
		ID:           searchID,
		Businesses:   resp.Businesses,
		TotalCount:   resp.TotalCount,
		Region:       criteria.Region,
		RegionCode:   criteria.Region.PlusCode(),
		Criteria:     *criteria,
		ProducedAt:   o.clock.Now(),
		Source:       domain.SourceFresh,
		Confidence:   Confidence(criteria, resp.Businesses, elapsed, condition),
		ExpiresAt:    o.clock.Now().Add(strategy.CacheTTL),
		NetworkLabel: condition.Label(),
	}

	if err := o.cache.Store(ctx, result); err != nil {
		log.Printf("[Orchestrator] cache store failed for %s: %v", searchID, err)
	}

	o.recordHistory(ctx, result, elapsed)
	o.persistContext(ctx, criteria)

	o.publish(ctx, domain.SearchNotification{
		Type:        domain.NotificationCompleted,
		SearchID:    searchID,
		Timestamp:   o.clock.Now(),
		Region:      criteria.Region,
		ResultCount: result.TotalCount,
		Source:      domain.SourceFresh,
		Confidence:  result.Confidence,
	})
	o.sendTelemetry(ctx, "search_performed", map[string]any{
		"results":  result.TotalCount,
		"strategy": strategy.Name,
	})

	return result, nil
}

// refuse handles an admission refusal: not an error, a deliberate decision.
// A stale cached result is returned when one exists. The refusal is
// terminal, so any queued retry for the same criteria is dropped.
func (o *Orchestrator) refuse(ctx context.Context, searchID string, criteria *domain.SearchCriteria, strategy domain.BandwidthStrategy, reason string) (*domain.SearchResult, error) {
	o.governor.DropRequest(searchID)

	fallback := o.staleCachedResult(ctx, criteria)

	action := domain.ActionWait
	if fallback != nil {
		action = domain.ActionShowCached
	}

	o.publish(ctx, domain.SearchNotification{
		Type:      domain.NotificationBandwidthLimited,
		SearchID:  searchID,
		Timestamp: o.clock.Now(),
		Region:    criteria.Region,
		Bandwidth: &domain.BandwidthInfo{
			StrategyName: strategy.Name,
			NetworkLabel: o.governor.CurrentCondition().Label(),
			Reason:       reason,
		},
		SuggestedAction: action,
	})
	o.sendTelemetry(ctx, "search_bandwidth_limited", map[string]any{"reason": reason})

	if fallback != nil {
		o.recordHistory(ctx, fallback, 0)
		return fallback, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrBandwidthLimited, reason)
}

// handleFetchFailure emits failed, registers the failure with the governor
// and degrades to a stale cached result when one exists. While the governor
// still grants retries the search is re-run after the backoff gate.
func (o *Orchestrator) handleFetchFailure(ctx context.Context, searchID string, criteria *domain.SearchCriteria, fetchErr error) (*domain.SearchResult, error) {
	requeued, gerr := o.governor.FailRequest(searchID)
	switch {
	case gerr == nil && requeued != nil:
		o.scheduleRetry(requeued, criteria)
	case gerr != nil && !errors.Is(gerr, bandwidth.ErrRetriesExhausted):
		log.Printf("[Orchestrator] governor fail for %s: %v", searchID, gerr)
	}

	o.publish(ctx, domain.SearchNotification{
		Type:         domain.NotificationFailed,
		SearchID:     searchID,
		Timestamp:    o.clock.Now(),
		Region:       criteria.Region,
		ErrorMessage: fetchErr.Error(),
	})

	if fallback := o.staleCachedResult(ctx, criteria); fallback != nil {
		log.Printf("[Orchestrator] %s: fetch failed, serving stale cache: %v", searchID, fetchErr)
		o.recordHistory(ctx, fallback, 0)
		return fallback, nil
	}

	return nil, fmt.Errorf("search fetch failed: %w", fetchErr)
}

// scheduleRetry re-runs the search once the requeued entry's backoff gate
// passes. The retry is a full search pass: it reclaims the queued entry
// through admission (preserving its retry count) or resolves it via cache
// or a refusal drop.
func (o *Orchestrator) scheduleRetry(entry *bandwidth.QueueEntry, criteria *domain.SearchCriteria) {
	delay := entry.NotBefore.Sub(o.clock.Now())
	if delay < 0 {
		delay = 0
	}

	log.Printf("[Orchestrator] retrying %s in %s (retry %d/%d)", entry.ID, delay, entry.RetryCount, entry.MaxRetries)

	o.clock.AfterFunc(delay, func() {
		go func() {
			if _, err := o.PerformDynamicSearch(context.Background(), criteria); err != nil &&
				!errors.Is(err, ErrBandwidthLimited) {
				log.Printf("[Orchestrator] retry for %s failed: %v", entry.ID, err)
			}
		}()
	})
}

// validCachedResult returns a cached result iff it is unexpired and its
// region similarity to the requested region meets the cache-hit threshold.
func (o *Orchestrator) validCachedResult(ctx context.Context, criteria *domain.SearchCriteria, now time.Time) *domain.SearchResult {
	hit, err := o.cache.Lookup(ctx, criteria.Key())
	if err != nil {
		return nil
	}
	if hit.Expired(now) {
		return nil
	}
	if hit.Region.SimilarityTo(criteria.Region) < cacheHitSimilarity {
		return nil
	}
	return hit
}

// staleCachedResult is the graceful-degradation lookup: expiry is ignored,
// only key identity matters.
func (o *Orchestrator) staleCachedResult(ctx context.Context, criteria *domain.SearchCriteria) *domain.SearchResult {
	hit, err := o.cache.Lookup(ctx, criteria.Key())
	if err != nil {
		return nil
	}
	return hit.AsCached()
}

// InvalidateSearchResults evicts cached results whose region overlaps the
// given region, emitting one invalidated notification naming the reason.
func (o *Orchestrator) InvalidateSearchResults(ctx context.Context, region domain.SearchRegion, reason string) (int, error) {
	entries, err := o.cache.Entries(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to scan cache: %w", err)
	}

	evicted := 0
	for _, entry := range entries {
		if entry.Region.SimilarityTo(region) < invalidateSimilarity {
			continue
		}
		if err := o.cache.Delete(ctx, entry.Criteria.Key()); err != nil {
			log.Printf("[Orchestrator] cache delete failed: %v", err)
			continue
		}
		evicted++
	}

	if evicted > 0 {
		o.publish(ctx, domain.SearchNotification{
			Type:      domain.NotificationInvalidated,
			SearchID:  uuid.NewString(),
			Timestamp: o.clock.Now(),
			Region:    region,
			Reason:    reason,
		})
	}

	return evicted, nil
}

// GetStatistics returns the diagnostic snapshot.
func (o *Orchestrator) GetStatistics(ctx context.Context) Statistics {
	o.mu.Lock()
	total := o.totalSearches
	activeCount := len(o.active)
	o.mu.Unlock()

	size, err := o.cache.Size(ctx)
	if err != nil {
		log.Printf("[Orchestrator] cache size failed: %v", err)
	}

	return Statistics{
		TotalSearches:       total,
		CacheSize:           size,
		ActiveSearches:      activeCount,
		QueuedRequests:      o.governor.QueuedRequests(),
		CurrentStrategyName: o.governor.CurrentStrategy().Name,
		NetworkCondition:    o.governor.CurrentCondition(),
		DataUsage:           o.governor.UsageSnapshot(),
	}
}

func (o *Orchestrator) publish(ctx context.Context, n domain.SearchNotification) {
	if o.notifier != nil {
		o.notifier.Publish(ctx, n)
	}
}

func (o *Orchestrator) publishProgress(ctx context.Context, searchID string, region domain.SearchRegion, pct int) {
	o.publish(ctx, domain.SearchNotification{
		Type:        domain.NotificationProgress,
		SearchID:    searchID,
		Timestamp:   o.clock.Now(),
		Region:      region,
		ProgressPct: pct,
	})
}

func (o *Orchestrator) recordHistory(ctx context.Context, result *domain.SearchResult, elapsed time.Duration) {
	if o.history == nil {
		return
	}

	rec := &domain.SearchRecord{
		ID:           uuid.New(),
		SearchID:     result.ID,
		Query:        result.Criteria.Query,
		Category:     result.Criteria.Category,
		CenterLat:    result.Region.CenterLat,
		CenterLon:    result.Region.CenterLon,
		RadiusKm:     result.Criteria.RadiusKm,
		RegionCode:   result.RegionCode,
		ResultCount:  result.TotalCount,
		Source:       result.Source,
		Confidence:   result.Confidence,
		NetworkLabel: result.NetworkLabel,
		DurationMs:   elapsed.Milliseconds(),
		CreatedAt:    o.clock.Now(),
	}

	if err := o.history.Record(ctx, rec); err != nil {
		log.Printf("[Orchestrator] history record failed: %v", err)
	}
}

// persistContext saves the acted-on query and viewport so a restart resumes
// where the user left off. Best effort.
func (o *Orchestrator) persistContext(ctx context.Context, criteria *domain.SearchCriteria) {
	if o.prefRepo == nil {
		return
	}

	blob, err := json.Marshal(searchContext{
		Query:    criteria.Query,
		Category: criteria.Category,
		Region:   criteria.Region,
	})
	if err != nil {
		return
	}

	if err := o.prefRepo.SetContext(ctx, domain.NamespaceLastContext, blob); err != nil {
		log.Printf("[Orchestrator] context persist failed: %v", err)
	}
}

func (o *Orchestrator) sendTelemetry(ctx context.Context, name string, props map[string]any) {
	if o.tel == nil {
		return
	}
	if err := o.tel.Send(ctx, tlmt.NewEvent(name, props)); err != nil {
		log.Printf("[Orchestrator] telemetry send failed: %v", err)
	}
}
