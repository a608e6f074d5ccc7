package autoscan

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/navidrome/mediaserver/log"
	"github.com/navidrome/mediaserver/model"
)

// TimedScheduler drives every ScanTimed directory off a single cron entry
// ticking at the GCD of their configured intervals (spec §4.G: "quantized to
// a 1-second GCD"), rather than one goroutine per directory.
type TimedScheduler struct {
	engine *Engine
	cron   *cron.Cron
	gcd    time.Duration
	// elapsed tracks, per scanID, how long since that directory's own
	// interval last fired — advanced by gcd on every tick.
	elapsed map[int]time.Duration
}

func NewTimedScheduler(engine *Engine) *TimedScheduler {
	return &TimedScheduler{
		engine:  engine,
		cron:    cron.New(cron.WithSeconds()),
		elapsed: map[int]time.Duration{},
	}
}

// Start computes the GCD across all ScanTimed directories currently
// registered and installs one "@every" cron entry that ticks the engine.
// Re-call Start after Register/Unregister changes the timed set.
func (s *TimedScheduler) Start() {
	intervals := s.timedIntervals()
	if len(intervals) == 0 {
		return
	}
	s.gcd = intervals[0]
	for _, iv := range intervals[1:] {
		s.gcd = gcdDuration(s.gcd, iv)
	}
	if s.gcd < time.Second {
		s.gcd = time.Second
	}

	s.cron.Stop()
	s.cron = cron.New(cron.WithSeconds())
	spec := "@every " + s.gcd.String()
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		log.Error(context.Background(), "autoscan: failed to schedule timed ticker", err, "spec", spec)
		return
	}
	s.cron.Start()
}

func (s *TimedScheduler) Stop() {
	s.cron.Stop()
}

func (s *TimedScheduler) tick() {
	ctx := context.Background()
	for _, st := range s.engine.directories() {
		if st.dir.ScanMode != model.ScanTimed {
			continue
		}
		s.elapsed[st.dir.ScanID] += s.gcd
		if s.elapsed[st.dir.ScanID] < st.dir.Interval {
			continue
		}
		st.countersMu.Lock()
		idle := st.dir.Idle()
		st.countersMu.Unlock()
		if !idle {
			continue
		}
		s.elapsed[st.dir.ScanID] = 0
		if err := s.engine.RescanNow(ctx, st.dir.ScanID); err != nil {
			log.Error(ctx, "autoscan: timed rescan failed", err, "location", st.dir.Location)
		}
	}
}

func (s *TimedScheduler) timedIntervals() []time.Duration {
	var out []time.Duration
	for _, st := range s.engine.directories() {
		if st.dir.ScanMode == model.ScanTimed && st.dir.Interval > 0 {
			out = append(out, st.dir.Interval)
		}
	}
	return out
}

func gcdDuration(a, b time.Duration) time.Duration {
	for b != 0 {
		a, b = b, a%b
	}
	if a <= 0 {
		return time.Second
	}
	return a
}
