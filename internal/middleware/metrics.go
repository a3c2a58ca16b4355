package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_redis_errors_total",
		Help: "Total number of failed Redis commands",
	}, []string{"command"})

	// PostViews counts successful post retrievals, one per view increment.
	PostViews = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_post_views_total",
		Help: "Total number of counted post views",
	})

	// PostMutations counts post writes by operation and outcome code.
	PostMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_post_mutations_total",
		Help: "Total number of post mutations by operation and result",
	}, []string{"operation", "result"})

	// LockWaitSeconds records how long callers waited for a resource lock.
	LockWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scribe_lock_wait_seconds",
		Help:    "Time spent waiting to acquire resource locks",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"backend", "result"})
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the process-wide HTTP metrics middleware. The
// underlying collectors register once, so repeated calls from tests are safe.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}

// MetricsMiddleware records HTTP metrics for every route except the scrape endpoint.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	handler := p.Middleware
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}
		return handler(c)
	}
}
