package history

import (
	"fmt"
	"math"
	"sort"
	"time"

	"vinec/internal/core/ports"
)

// Summary aggregates a run of events for `vinec history`.
type Summary struct {
	Since      time.Time      `json:"since"`
	Until      time.Time      `json:"until"`
	EventCount int            `json:"event_count"`
	ByKind     map[string]int `json:"by_kind"`
	// HotFiles are the files with the most reloads, most first.
	HotFiles []FileCount `json:"hot_files,omitempty"`
	// PatchRatio is the share of events that avoided a full reload.
	PatchRatio float64 `json:"patch_ratio"`
}

type FileCount struct {
	FileID  string `json:"file"`
	Reloads int    `json:"reloads"`
}

func Summarize(events []ports.UpdateEvent, top int) (Summary, error) {
	if len(events) == 0 {
		return Summary{}, fmt.Errorf("no events available")
	}

	s := Summary{
		Since:      events[0].Timestamp,
		Until:      events[len(events)-1].Timestamp,
		EventCount: len(events),
		ByKind:     make(map[string]int),
	}
	reloads := make(map[string]int)
	patched := 0
	for _, e := range events {
		s.ByKind[e.Kind]++
		switch e.Kind {
		case "render", "style":
			patched++
		case "reload":
			reloads[e.FileID]++
		}
	}
	considered := len(events) - s.ByKind["none"]
	if considered > 0 {
		s.PatchRatio = round2(float64(patched) / float64(considered))
	}

	for file, n := range reloads {
		s.HotFiles = append(s.HotFiles, FileCount{FileID: file, Reloads: n})
	}
	sort.Slice(s.HotFiles, func(i, j int) bool {
		if s.HotFiles[i].Reloads != s.HotFiles[j].Reloads {
			return s.HotFiles[i].Reloads > s.HotFiles[j].Reloads
		}
		return s.HotFiles[i].FileID < s.HotFiles[j].FileID
	})
	if top > 0 && len(s.HotFiles) > top {
		s.HotFiles = s.HotFiles[:top]
	}
	return s, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
