package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

type poolStat struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(*pgxpool.Stat) float64
}

func newPoolStat(name, help string, kind prometheus.ValueType, value func(*pgxpool.Stat) float64) poolStat {
	return poolStat{
		desc:  prometheus.NewDesc("placebot_pgxpool_"+name, help, []string{"pool"}, nil),
		kind:  kind,
		value: value,
	}
}

// PoolCollector exports pgxpool statistics, read at scrape time.
type PoolCollector struct {
	pools map[string]*pgxpool.Pool
	stats []poolStat
}

// NewPoolCollector exports the stats of each pool under its map key.
func NewPoolCollector(pools map[string]*pgxpool.Pool) *PoolCollector {
	counter, gauge := prometheus.CounterValue, prometheus.GaugeValue
	return &PoolCollector{
		pools: pools,
		stats: []poolStat{
			newPoolStat("acquire_total", "Successful connection acquires.", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }),
			newPoolStat("acquire_duration_seconds_total", "Time spent acquiring connections.", counter,
				func(s *pgxpool.Stat) float64 { return s.AcquireDuration().Seconds() }),
			newPoolStat("canceled_acquire_total", "Acquires canceled by their context.", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.CanceledAcquireCount()) }),
			newPoolStat("empty_acquire_total", "Acquires that had to wait for a connection.", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) }),
			newPoolStat("new_conns_total", "Connections opened.", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.NewConnsCount()) }),
			newPoolStat("max_idle_destroy_total", "Connections closed for idling too long.", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.MaxIdleDestroyCount()) }),
			newPoolStat("max_lifetime_destroy_total", "Connections closed at their maximum lifetime.", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.MaxLifetimeDestroyCount()) }),
			newPoolStat("acquired_conns", "Connections currently in use.", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
			newPoolStat("constructing_conns", "Connections being opened.", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.ConstructingConns()) }),
			newPoolStat("idle_conns", "Idle connections.", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
			newPoolStat("total_conns", "Open connections.", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
			newPoolStat("max_conns", "Configured connection limit.", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range c.stats {
		ch <- s.desc
	}
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	for name, pool := range c.pools {
		stat := pool.Stat()
		for _, s := range c.stats {
			ch <- prometheus.MustNewConstMetric(s.desc, s.kind, s.value(stat), name)
		}
	}
}
