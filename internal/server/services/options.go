package services

import (
	"time"

	"github.com/dmitrijs2005/workflow/internal/logging"
	"github.com/dmitrijs2005/workflow/internal/server/metrics"
)

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

type serviceOptions struct {
	logger  logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option customises a service's ambient collaborators.
type Option func(*serviceOptions)

func WithLogger(l logging.Logger) Option { return func(o *serviceOptions) { o.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *serviceOptions) { o.metrics = m } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(o *serviceOptions) { o.now = now } }

func buildOptions(module string, opts []Option) serviceOptions {
	o := serviceOptions{logger: logging.Nop{}, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("module", module)
	return o
}
