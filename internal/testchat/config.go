// Package testchat generates synthetic chat logs and drives a running
// service over HTTP for end-to-end checks.
package testchat

import "time"

// Burst is a stretch of elevated chat activity.
type Burst struct {
	AtS  float64 `json:"at_s"`
	LenS float64 `json:"len_s"`
	// Rate is messages per second during the burst.
	Rate float64 `json:"rate"`
}

// Config holds configuration for a synthetic chat log.
type Config struct {
	DurationS float64 // VOD length in seconds
	BaseRate  float64 // background messages per second
	Bursts    []Burst
	Keywords  []string // mixed into burst messages
	Authors   int      // distinct chatters
	Seed      uint64   // same seed, same log
}

// DefaultConfig is a 30 minute VOD with three bursts.
func DefaultConfig() Config {
	return Config{
		DurationS: 1800,
		BaseRate:  0.05,
		Bursts: []Burst{
			{AtS: 240, LenS: 45, Rate: 1.5},
			{AtS: 900, LenS: 60, Rate: 2},
			{AtS: 1500, LenS: 30, Rate: 1},
		},
		Keywords: []string{"clutch", "pog", "insane"},
		Authors:  50,
		Seed:     1,
	}
}

// ClientConfig configures Client.
type ClientConfig struct {
	BaseURL      string        // Base URL of the service
	Timeout      time.Duration // HTTP request timeout
	PollInterval time.Duration // pause between run-next calls
	MaxSteps     int           // give up after this many advances
}
