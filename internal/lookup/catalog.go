package lookup

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/couchcryptid/country-lookup/internal/domain"
	"github.com/couchcryptid/country-lookup/internal/observability"
)

// DirectorySource hands sessions the current country directory.
type DirectorySource interface {
	Directory() *domain.Directory
	LoadErr() error
}

// Catalog owns the process-wide country directory. It starts empty and is
// filled once by Load.
type Catalog struct {
	source  domain.CountrySource
	metrics *observability.Metrics
	logger  *slog.Logger

	mu      sync.RWMutex
	dir     *domain.Directory
	loaded  bool
	loadErr error
}

func NewCatalog(source domain.CountrySource, metrics *observability.Metrics, logger *slog.Logger) *Catalog {
	return &Catalog{
		source:  source,
		metrics: metrics,
		logger:  logger,
		dir:     domain.NewDirectory(nil),
	}
}

// Load fetches the directory once. A failure is logged and recorded; the
// catalog keeps serving an empty directory and does not retry.
func (c *Catalog) Load(ctx context.Context) error {
	dir, err := domain.LoadDirectory(ctx, c.source)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.dir = dir
	c.loadErr = err
	c.metrics.DirectorySize.Set(float64(dir.Len()))

	if err != nil {
		c.logger.Warn("country directory load failed, continuing with an empty directory", "error", err)
		return err
	}
	c.loaded = true
	c.logger.Info("country directory loaded", "countries", dir.Len())
	return nil
}

func (c *Catalog) Directory() *domain.Directory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dir
}

// LoadErr returns the error from the last Load, if any.
func (c *Catalog) LoadErr() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadErr
}

// CheckReadiness returns nil once the directory has loaded.
func (c *Catalog) CheckReadiness(_ context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		if c.loadErr != nil {
			return c.loadErr
		}
		return errors.New("country directory has not loaded yet")
	}
	return nil
}
