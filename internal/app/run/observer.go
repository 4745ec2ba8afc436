package run

import (
	"time"

	"github.com/sagshome/ImageClean-sub000/internal/config"
	"github.com/sagshome/ImageClean-sub000/internal/domain"
)

// Observer decouples progress display from the run. The run only emits
// events; it never prints. Events arrive from a single goroutine.
type Observer interface {
	// OnStart is called before any filesystem access.
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone reports a finished phase with its counters.
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone reports one input file's outcome.
	OnItemDone(idx, total int, res domain.ItemResult)
}

type nopObserver struct{}

func (nopObserver) OnStart(config.EffectiveConfig) {}

func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration) {}

func (nopObserver) OnItemDone(int, int, domain.ItemResult) {}
