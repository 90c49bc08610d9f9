// Package metrics provides Prometheus metrics for runs, tasks and the
// active encode.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	encodeFPS = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "av1forge",
		Subsystem: "ffmpeg",
		Name:      "fps",
		Help:      "Current encoding FPS",
	})

	encodeSpeed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "av1forge",
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "Current encoding speed multiplier",
	})

	encodeFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "av1forge",
		Subsystem: "ffmpeg",
		Name:      "frames",
		Help:      "Frames encoded for the current file",
	})

	// Local cache for status reads.
	encodeCache   EncodeStats
	encodeActive  bool
	encodeCacheMu sync.RWMutex
)

// EncodeStats holds the latest values for the active encode.
type EncodeStats struct {
	Index  int
	Frames int64
	FPS    float64
	Speed  float64
}

// SetEncodeStats records the latest progress block of the active encode.
func SetEncodeStats(s EncodeStats) {
	encodeFPS.Set(s.FPS)
	encodeSpeed.Set(s.Speed)
	encodeFrames.Set(float64(s.Frames))

	encodeCacheMu.Lock()
	encodeCache = s
	encodeActive = true
	encodeCacheMu.Unlock()
}

// ResetEncodeStats zeroes the encode gauges once a file is done.
func ResetEncodeStats() {
	encodeFPS.Set(0)
	encodeSpeed.Set(0)
	encodeFrames.Set(0)

	encodeCacheMu.Lock()
	encodeCache = EncodeStats{}
	encodeActive = false
	encodeCacheMu.Unlock()
}

// GetEncodeStats returns the active encode's values, or nil when no encode
// is running.
func GetEncodeStats() *EncodeStats {
	encodeCacheMu.RLock()
	defer encodeCacheMu.RUnlock()
	if !encodeActive {
		return nil
	}
	dup := encodeCache
	return &dup
}
