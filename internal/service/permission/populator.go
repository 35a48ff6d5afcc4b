package permission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/headstart-tech/admissions-api/internal/cache"
	"github.com/headstart-tech/admissions-api/internal/model"
	"github.com/headstart-tech/admissions-api/internal/repository"
	"github.com/headstart-tech/admissions-api/internal/tenant"
	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
	"github.com/headstart-tech/admissions-api/pkg/logger"
	"github.com/headstart-tech/admissions-api/pkg/metrics"
)

const DefaultTTL = 3600 * time.Second

// Cache is the subset of the cache client the populator needs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	HSet(ctx context.Context, key, field string, value interface{}) error
	HDel(ctx context.Context, key string, fields ...string) error
	HKeys(ctx context.Context, key string) ([]string, error)
}

// Populator serves flattened permission trees from the cache and rebuilds them from
// the document store on a miss or when forced. Every cache failure degrades to the
// rebuilt value; only document store failures reach the caller.
type Populator struct {
	repo    repository.PermissionRepository
	cache   Cache
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewPopulator(repo repository.PermissionRepository, c Cache, ttl time.Duration, log *logger.Logger, m *metrics.Metrics) *Populator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Populator{
		repo:    repo,
		cache:   c,
		ttl:     ttl,
		logger:  log,
		metrics: m,
		now:     time.Now,
	}
}

// Entity returns the flattened tree of one document. A nil tree with a nil error
// means no such document has features.
func (p *Populator) Entity(ctx context.Context, src model.PermissionSource, id, collegeID string, force bool) (model.Tree, error) {
	ks, err := keyspace(ctx)
	if err != nil {
		return nil, err
	}
	collegeID = scope(src, collegeID)

	if !force {
		if tree, ok := p.lookup(ctx, src, ks.Key(src.Name, collegeID, id)); ok {
			return tree, nil
		}
	}

	trees, err := p.rebuild(ctx, ks, src, id, collegeID, force)
	if err != nil {
		return nil, err
	}
	return trees[id], nil
}

// All rebuilds every tree of src, re-caching each one.
func (p *Populator) All(ctx context.Context, src model.PermissionSource, collegeID string, force bool) (map[string]model.Tree, error) {
	ks, err := keyspace(ctx)
	if err != nil {
		return nil, err
	}
	return p.rebuild(ctx, ks, src, "", scope(src, collegeID), force)
}

func (p *Populator) Evict(ctx context.Context, src model.PermissionSource, id, collegeID string) error {
	ks, err := keyspace(ctx)
	if err != nil {
		return err
	}
	collegeID = scope(src, collegeID)

	if err := p.cache.Delete(ctx, ks.Key(src.Name, collegeID, id)); err != nil {
		return fmt.Errorf("failed to evict %s %s: %w", src.Name, id, err)
	}
	if err := p.cache.HDel(ctx, ks.IndexKey(src.Name, collegeID), id); err != nil {
		return fmt.Errorf("failed to update %s index: %w", src.Name, err)
	}
	return nil
}

// EvictAll deletes every entry of src recorded in its index, then the index itself.
func (p *Populator) EvictAll(ctx context.Context, src model.PermissionSource, collegeID string) (int, error) {
	ks, err := keyspace(ctx)
	if err != nil {
		return 0, err
	}
	collegeID = scope(src, collegeID)
	index := ks.IndexKey(src.Name, collegeID)

	ids, err := p.cache.HKeys(ctx, index)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s index: %w", src.Name, err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, ks.Key(src.Name, collegeID, id))
	}
	keys = append(keys, index)

	if err := p.cache.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("failed to evict %s: %w", src.Name, err)
	}
	return len(ids), nil
}

func (p *Populator) lookup(ctx context.Context, src model.PermissionSource, key string) (model.Tree, bool) {
	data, err := p.cache.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrMiss):
		p.countLookup(src, "miss")
		return nil, false
	case err != nil:
		p.countLookup(src, "error")
		p.logger.Warn(err, "permission cache unavailable, rebuilding", "key", key)
		return nil, false
	}

	var tree model.Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		p.countLookup(src, "corrupt")
		p.logger.Warn(err, "discarding corrupt permission cache entry", "key", key)
		if err := p.cache.Delete(ctx, key); err != nil {
			p.logger.Warn(err, "failed to delete corrupt permission cache entry", "key", key)
		}
		return nil, false
	}

	p.countLookup(src, "hit")
	return tree, true
}

func (p *Populator) rebuild(ctx context.Context, ks cache.Keyspace, src model.PermissionSource, id, collegeID string, force bool) (map[string]model.Tree, error) {
	start := p.now()
	trees, err := p.repo.FeatureTrees(ctx, src, id, collegeID)
	if p.metrics != nil {
		p.metrics.PermissionRebuildLatency.WithLabelValues(src.Name).Observe(p.now().Sub(start).Seconds())
	}
	if err != nil {
		p.logger.Error(err, "failed to rebuild permission trees", "source", src.Name, "id", id, "college_id", collegeID)
		return nil, apperrors.BadRequest(fmt.Sprintf("failed to build %s", src.Name), err)
	}

	flat := make(map[string]model.Tree, len(trees))
	for docID, tree := range trees {
		flat[docID] = Flatten(tree)
	}

	if force {
		p.prune(ctx, ks, src, id, collegeID, flat)
	}
	p.store(ctx, ks, src, collegeID, flat, force)
	return flat, nil
}

// prune deletes entries a forced rebuild no longer produces, so a document whose
// features were emptied or removed stops being served at once. With an empty id every
// indexed entry of the namespace missing from trees is pruned.
func (p *Populator) prune(ctx context.Context, ks cache.Keyspace, src model.PermissionSource, id, collegeID string, trees map[string]model.Tree) {
	index := ks.IndexKey(src.Name, collegeID)

	var stale []string
	if id != "" {
		if _, ok := trees[id]; !ok {
			stale = append(stale, id)
		}
	} else {
		indexed, err := p.cache.HKeys(ctx, index)
		if err != nil {
			p.logger.Warn(err, "failed to read permission index, stale entries kept", "index", index)
			return
		}
		for _, docID := range indexed {
			if _, ok := trees[docID]; !ok {
				stale = append(stale, docID)
			}
		}
	}
	if len(stale) == 0 {
		return
	}

	keys := make([]string, 0, len(stale))
	for _, docID := range stale {
		keys = append(keys, ks.Key(src.Name, collegeID, docID))
	}
	if err := p.cache.Delete(ctx, keys...); err != nil {
		p.logger.Error(err, "failed to drop stale permission entries", "source", src.Name, "ids", stale)
		return
	}
	if err := p.cache.HDel(ctx, index, stale...); err != nil {
		p.logger.Warn(err, "failed to update permission index", "index", index)
	}
	p.countWrite(src, "pruned")
}

// store writes each tree under its own key. Unforced writes never replace an entry
// another request already cached. The first cache error abandons the remaining writes.
func (p *Populator) store(ctx context.Context, ks cache.Keyspace, src model.PermissionSource, collegeID string, trees map[string]model.Tree, force bool) {
	ids := make([]string, 0, len(trees))
	for id := range trees {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	index := ks.IndexKey(src.Name, collegeID)
	for _, id := range ids {
		key := ks.Key(src.Name, collegeID, id)
		data, err := json.Marshal(trees[id])
		if err != nil {
			p.logger.Error(err, "failed to encode permission tree", "key", key)
			continue
		}

		mode := "force"
		if force {
			err = p.cache.Set(ctx, key, data, p.ttl)
		} else {
			var written bool
			written, err = p.cache.SetIfAbsent(ctx, key, data, p.ttl)
			mode = "absent"
			if err == nil && !written {
				mode = "skipped"
			}
		}
		if err == nil {
			err = p.cache.HSet(ctx, index, id, strconv.FormatInt(p.now().Unix(), 10))
		}
		if err == nil {
			err = p.cache.Expire(ctx, index, p.ttl)
		}
		if err != nil {
			p.countWrite(src, "error")
			p.logger.Warn(err, "permission cache write failed, serving uncached", "key", key)
			return
		}
		p.countWrite(src, mode)
	}
}

func (p *Populator) countLookup(src model.PermissionSource, result string) {
	if p.metrics != nil {
		p.metrics.PermissionCacheLookups.WithLabelValues(src.Name, result).Inc()
	}
}

func (p *Populator) countWrite(src model.PermissionSource, mode string) {
	if p.metrics != nil {
		p.metrics.PermissionCacheWrites.WithLabelValues(src.Name, mode).Inc()
	}
}

func keyspace(ctx context.Context) (cache.Keyspace, error) {
	s, err := tenant.FromContext(ctx)
	if err != nil {
		return cache.Keyspace{}, apperrors.Internal(err)
	}
	return s.Keyspace(), nil
}

func scope(src model.PermissionSource, collegeID string) string {
	if !src.CollegeScoped {
		return ""
	}
	return collegeID
}
