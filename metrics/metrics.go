// Package metrics holds the Prometheus collectors updated by the trade loops:
//
//	tradebot_rounds_total{outcome}          negotiation rounds by outcome
//	tradebot_trades_completed_total         sessions that reached accept
//	tradebot_watchdog_fires_total           inactivity cancellations
//	tradebot_page_swaps_total               inventory next-page clicks
//	tradebot_observations_total{result}     recognition cycles (ok|error)
//	tradebot_observed_quantity{side}        last recognized slot quantity
//	tradebot_match_score{side}              classifier confidence
//	tradebot_last_activity_timestamp_seconds counterparty activity
//
// They are registered in init() and served at /metrics by statusserver.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	rounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradebot_rounds_total",
			Help: "Negotiation rounds by outcome",
		},
		[]string{"outcome"},
	)

	tradesCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradebot_trades_completed_total",
			Help: "Trades accepted after the settle check",
		},
	)

	watchdogFires = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradebot_watchdog_fires_total",
			Help: "Cancellations triggered by counterparty inactivity",
		},
	)

	pageSwaps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradebot_page_swaps_total",
			Help: "Inventory next-page attempts while searching for an item",
		},
	)

	observations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradebot_observations_total",
			Help: "Recognition cycles",
		},
		[]string{"result"}, // ok|error
	)

	observedQuantity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradebot_observed_quantity",
			Help: "Last recognized slot quantity",
		},
		[]string{"side"},
	)

	matchScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradebot_match_score",
			Help:    "Best template match score per classified slot",
			Buckets: []float64{0.2, 0.4, 0.6, 0.7, 0.8, 0.9, 0.95, 0.99},
		},
		[]string{"side"},
	)

	lastActivity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradebot_last_activity_timestamp_seconds",
			Help: "Unix time of the last counterparty slot activity",
		},
	)
)

func init() {
	prometheus.MustRegister(rounds, tradesCompleted, watchdogFires, pageSwaps)
	prometheus.MustRegister(observations, observedQuantity, matchScore, lastActivity)
}

func IncRound(outcome string) { rounds.WithLabelValues(outcome).Inc() }
func IncTradeCompleted()      { tradesCompleted.Inc() }
func IncWatchdogFire()        { watchdogFires.Inc() }
func IncPageSwap()            { pageSwaps.Inc() }

// ObserveCycle records one recognition cycle.
func ObserveCycle(err error) {
	if err != nil {
		observations.WithLabelValues("error").Inc()
		return
	}
	observations.WithLabelValues("ok").Inc()
}

// SetQuantity records the last quantity read for side.
func SetQuantity(side string, q int) { observedQuantity.WithLabelValues(side).Set(float64(q)) }

// ObserveScore records a classifier score. Non-finite scores (no comparable
// reference) are dropped.
func ObserveScore(side string, score float64) {
	if score != score || score < -1 || score > 1 {
		return
	}
	matchScore.WithLabelValues(side).Observe(score)
}

// SetLastActivity records the activity timestamp in unix seconds.
func SetLastActivity(unixSeconds float64) { lastActivity.Set(unixSeconds) }
