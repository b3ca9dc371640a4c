package maintenance

import (
	"github.com/pkg/errors"
	"time"
)

// Options configures the Manager.
type Options struct {
	// CacheRefreshDelay is how long the index rebuild waits after a change,
	// so that bursts of changes cause one rebuild.
	CacheRefreshDelay time.Duration `yaml:"cache-refresh-delay" env:"CACHE_REFRESH_DELAY" default:"500ms"`
	// ExpireInterval is how often expired downtimes are removed.
	ExpireInterval time.Duration `yaml:"expire-interval" env:"EXPIRE_INTERVAL" default:"5m"`
}

// Validate checks constraints in the supplied options and returns an error if they are violated.
func (o *Options) Validate() error {
	if o.CacheRefreshDelay <= 0 {
		return errors.New("cache-refresh-delay must be positive")
	}

	if o.ExpireInterval <= 0 {
		return errors.New("expire-interval must be positive")
	}

	return nil
}
