package entity

import (
	"maps"
)

// FrameEventRecord is the parsed classifier result for a single frame.
type FrameEventRecord struct {
	Frame    string         `json:"frame"`
	Points   map[string]int `json:"points"`
	Passes   int            `json:"passes"`
	Rebounds map[string]int `json:"rebounds"`
}

// GameTotals accumulates FrameEventRecords. Keys are jersey numbers.
type GameTotals struct {
	Points   map[string]int `json:"points"`
	Passes   int            `json:"passes"`
	Rebounds map[string]int `json:"rebounds"`
}

func NewGameTotals() *GameTotals {
	return &GameTotals{
		Points:   make(map[string]int),
		Rebounds: make(map[string]int),
	}
}

// Fold adds every field of the record into the totals.
func (t *GameTotals) Fold(r FrameEventRecord) {
	t.AddPoints(r.Points)
	t.AddPasses(r.Passes)
	t.AddRebounds(r.Rebounds)
}

func (t *GameTotals) AddPoints(points map[string]int) {
	addInto(t.Points, points)
}

func (t *GameTotals) AddRebounds(rebounds map[string]int) {
	addInto(t.Rebounds, rebounds)
}

func (t *GameTotals) AddPasses(n int) {
	if n > 0 {
		t.Passes += n
	}
}

func (t *GameTotals) Equal(other *GameTotals) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Passes == other.Passes &&
		maps.Equal(t.Points, other.Points) &&
		maps.Equal(t.Rebounds, other.Rebounds)
}

func (t *GameTotals) Clone() *GameTotals {
	return &GameTotals{
		Points:   maps.Clone(t.Points),
		Passes:   t.Passes,
		Rebounds: maps.Clone(t.Rebounds),
	}
}

// negative counts never reach the totals; the parsers reject them before this point
func addInto(dst, src map[string]int) {
	for jersey, n := range src {
		if n < 0 {
			continue
		}
		dst[jersey] += n
	}
}
