// Package metrics has prometheus metric variables/functions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricParse = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imapparse_parse_total",
			Help: "Parse, decode and conversion calls and their results.",
		},
		[]string{
			"kind",   // response, fetch, search, datetime, utf7
			"result", // ok, error
		},
	)
	metricLiteralBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imapparse_literal_bytes_total",
			Help: "Number of bytes read in literals of responses.",
		},
	)
)

// ParseInc counts a parse call of kind with result.
func ParseInc(kind, result string) {
	metricParse.WithLabelValues(kind, result).Inc()
}

// ParseResult counts a parse call of kind with result "ok" for a nil err, and
// "error" otherwise.
func ParseResult(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ParseInc(kind, result)
}

// LiteralBytesAdd adds n to the number of literal bytes read.
func LiteralBytesAdd(n int) {
	metricLiteralBytes.Add(float64(n))
}
