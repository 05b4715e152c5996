package storage

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/anime-shed/vision-analysis-go/internal/logger"
)

const janitorDeleteTimeout = 30 * time.Second

// Janitor deletes staged blobs once their expiry window has passed. It only
// knows about blobs staged by this process since it started; blobs still
// pending when the process stops are left in storage.
type Janitor struct {
	store BlobStore
	cache *ttlcache.Cache[string, struct{}]

	mu      sync.Mutex
	running bool
}

// NewJanitor creates a janitor that deletes tracked blobs after ttl
func NewJanitor(store BlobStore, ttl time.Duration) *Janitor {
	cache := ttlcache.New[string, struct{}](
		ttlcache.WithTTL[string, struct{}](ttl),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)

	j := &Janitor{store: store, cache: cache}
	cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, struct{}]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		j.delete(item.Key())
	})
	return j
}

// Start runs the expiry loop in the background until Stop is called
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}
	j.running = true
	go j.cache.Start()
}

// Stop ends the expiry loop. It is safe to call when the loop never started.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	j.running = false
	j.cache.Stop()
}

// Track implements ExpiryTracker
func (j *Janitor) Track(blobName string) {
	j.cache.Set(blobName, struct{}{}, ttlcache.DefaultTTL)
}

// Sweep evicts every expired entry immediately
func (j *Janitor) Sweep() {
	j.cache.DeleteExpired()
}

// Pending returns the number of tracked blobs not yet deleted
func (j *Janitor) Pending() int {
	return j.cache.Len()
}

func (j *Janitor) delete(blobName string) {
	ctx, cancel := context.WithTimeout(context.Background(), janitorDeleteTimeout)
	defer cancel()

	if err := j.store.Delete(ctx, blobName); err != nil {
		logger.WithError(err).WithField("blob_name", blobName).Error("Failed to delete expired staged upload")
		return
	}
	logger.WithField("blob_name", blobName).Info("Deleted expired staged upload")
}
