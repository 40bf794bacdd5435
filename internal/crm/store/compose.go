// internal/crm/store/compose.go
package store

import (
	"dibs-assistant/internal/common/config"
	"dibs-assistant/internal/common/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
)

// Backends are the connections a ClientStore can be assembled from. Search
// and Cache are optional.
type Backends struct {
	Primary Querier
	Search  *elasticsearch.Client
	Cache   redis.Cmdable
}

// Compose layers the configured search backend and the cache over Postgres.
func Compose(cfg config.CRMConfig, b Backends, log logger.Logger) ClientStore {
	var s ClientStore = NewPostgresStore(b.Primary, config.GetDuration(cfg.QueryTimeout))

	if cfg.SearchBackend == config.SearchBackendElasticsearch && b.Search != nil {
		s = NewSearchIndex(b.Search, cfg.SearchIndex, s)
	}
	if b.Cache != nil && cfg.CacheTTL > 0 {
		s = NewCachedStore(s, b.Cache, config.GetDuration(cfg.CacheTTL), log)
	}
	return s
}
