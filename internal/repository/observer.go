package repository

import "time"

// QueryObserver receives per-query latency samples from the SQL repositories.
type QueryObserver interface {
	ObserveDBQuery(query string, duration time.Duration)
}

func observe(obs QueryObserver, name string, start time.Time) {
	if obs != nil {
		obs.ObserveDBQuery(name, time.Since(start))
	}
}
