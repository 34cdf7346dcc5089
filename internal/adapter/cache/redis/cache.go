// Package redis implements the processed-vacancy cache and the OAuth state
// store on top of a shared Redis client.
package redis

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

const (
	vacancyKeyPrefix = "processed_vacancy:"
	// vacancyTTL is how long a vacancy id stays "seen". Long enough to not
	// re-evaluate the same posting every run, short enough that reposted
	// vacancies come back around.
	vacancyTTL = 7 * 24 * time.Hour
)

// NewClient creates a go-redis client from a redis:// URL.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("op=redis.parse_url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// VacancyCache is the advisory seen-vacancy store. A stale miss costs one
// redundant fetch; a stale hit delays re-evaluation. Both are acceptable, so
// callers treat every error path as "nothing cached".
type VacancyCache struct{ rdb *redis.Client }

// NewVacancyCache constructs a VacancyCache over the given client.
func NewVacancyCache(rdb *redis.Client) *VacancyCache { return &VacancyCache{rdb: rdb} }

// FilterNew returns the subset of ids not currently cached.
func (c *VacancyCache) FilterNew(ctx domain.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = vacancyKeyPrefix + id
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("op=cache.filter_new: %w", err)
	}
	out := make([]string, 0, len(ids))
	for i, v := range vals {
		if v == nil {
			out = append(out, ids[i])
		}
	}
	return out, nil
}

// AddMany marks each id with a fresh TTL.
func (c *VacancyCache) AddMany(ctx domain.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, id := range ids {
		pipe.Set(ctx, vacancyKeyPrefix+id, "1", vacancyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("op=cache.add_many: %w", err)
	}
	return nil
}
