// Package types contains read shapes shared by the API and CLI.
package types

// Entry is one ranked highlight in a job result or a detect report.
type Entry struct {
	Rank      int     `json:"rank" yaml:"rank"`
	Key       string  `json:"key" yaml:"key"`
	Group     string  `json:"group,omitempty" yaml:"group,omitempty"`
	StartS    float64 `json:"start_s" yaml:"start_s"`
	DurationS float64 `json:"duration_s" yaml:"duration_s"`
	Score     float64 `json:"score" yaml:"score"`
}

// EndS returns the end of the entry on its own timeline.
func (e Entry) EndS() float64 { return e.StartS + e.DurationS }
