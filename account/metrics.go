package account

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settingsSaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedstand_settings_saves_total",
		Help: "The total number of account settings files written to disk",
	})

	settingsSaveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedstand_settings_save_errors_total",
		Help: "The total number of failed account settings writes",
	})

	refreshCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedstand_refresh_cycles_total",
		Help: "The total number of refresh cycles started across all accounts",
	})
)
