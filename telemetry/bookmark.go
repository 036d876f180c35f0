package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFirstStarvation BookmarkType = "first_starvation"
	BookmarkMortalitySpike  BookmarkType = "mortality_spike"
	BookmarkPatchShift      BookmarkType = "patch_shift"
	BookmarkHalfLife        BookmarkType = "half_life"
	BookmarkExtinction      BookmarkType = "extinction"
)

// Bookmark marks a notable timestep of a forward run.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	T           int          `csv:"t"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark(l *slog.Logger) {
	l.Info("bookmark",
		"type", string(b.Type),
		"t", b.T,
		"description", b.Description,
	)
}

// BookmarkDetector watches the per-step stats of one forward run.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []StepStats
	historySize int
	historyIdx  int
	historyFull bool

	initial      int // population at the first step
	modalPatch   int // most used patch in the previous step, -1 before the first
	starvedSeen  bool
	halfLifeSeen bool
	extinctSeen  bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3 // minimum for a mortality average
	}
	return &BookmarkDetector{
		history:     make([]StepStats, historySize),
		historySize: historySize,
		initial:     -1,
		modalPatch:  -1,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats StepStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.initial < 0 {
		bd.initial = stats.AliveAtStart
	}

	if b := bd.checkFirstStarvation(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkMortalitySpike(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkPatchShift(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkHalfLife(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkExtinction(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats StepStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []StepStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkFirstStarvation(stats StepStats) *Bookmark {
	if bd.starvedSeen || stats.StarvationDeaths == 0 {
		return nil
	}
	bd.starvedSeen = true
	return &Bookmark{
		Type:        BookmarkFirstStarvation,
		T:           stats.T,
		Description: fmt.Sprintf("%d organisms starved", stats.StarvationDeaths),
	}
}

// checkMortalitySpike fires when the death rate is more than twice the
// rolling average and at least 3 organisms died.
func (bd *BookmarkDetector) checkMortalitySpike(stats StepStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 || stats.AliveAtStart == 0 {
		return nil
	}

	var deaths, alive int
	for _, h := range history {
		deaths += h.Deaths()
		alive += h.AliveAtStart
	}
	if alive == 0 || deaths == 0 {
		return nil
	}

	avgRate := float64(deaths) / float64(alive)
	rate := float64(stats.Deaths()) / float64(stats.AliveAtStart)
	if rate > avgRate*2.0 && stats.Deaths() >= 3 {
		return &Bookmark{
			Type:        BookmarkMortalitySpike,
			T:           stats.T,
			Description: fmt.Sprintf("Death rate %.2f is %.1fx average (%.2f)", rate, rate/avgRate, avgRate),
		}
	}
	return nil
}

// checkPatchShift fires when the most used patch changes between steps.
func (bd *BookmarkDetector) checkPatchShift(stats StepStats) *Bookmark {
	if stats.AliveAtStart == 0 {
		return nil
	}
	modal := 0
	for i, n := range stats.PatchCounts {
		if n > stats.PatchCounts[modal] {
			modal = i
		}
	}

	prev := bd.modalPatch
	bd.modalPatch = modal
	if prev < 0 || prev == modal {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkPatchShift,
		T:           stats.T,
		Description: fmt.Sprintf("Most used patch changed from %d to %d", prev, modal),
	}
}

func (bd *BookmarkDetector) checkHalfLife(stats StepStats) *Bookmark {
	if bd.halfLifeSeen || bd.initial <= 0 || 2*stats.AliveAtEnd > bd.initial {
		return nil
	}
	bd.halfLifeSeen = true
	return &Bookmark{
		Type:        BookmarkHalfLife,
		T:           stats.T,
		Description: fmt.Sprintf("Population fell to %d of %d", stats.AliveAtEnd, bd.initial),
	}
}

func (bd *BookmarkDetector) checkExtinction(stats StepStats) *Bookmark {
	if bd.extinctSeen || stats.AliveAtStart == 0 || stats.AliveAtEnd > 0 {
		return nil
	}
	bd.extinctSeen = true
	return &Bookmark{
		Type:        BookmarkExtinction,
		T:           stats.T,
		Description: fmt.Sprintf("Last %d organisms died", stats.AliveAtStart),
	}
}
