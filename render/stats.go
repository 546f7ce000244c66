package render

import (
	"github.com/loov/hrtime"
)

// frameStats accumulates presented-frame timings and reports the average
// rate once per interval. An interval of zero disables reporting.
type frameStats struct {
	interval int
	frames   int
	start    float64
}

func newFrameStats(interval int) *frameStats {
	return &frameStats{
		interval: interval,
		start:    hrtime.Now().Seconds(),
	}
}

// advance records one frame ending at now, in seconds. When a reporting
// window closes it returns the average frame rate over that window.
func (s *frameStats) advance(now float64) (float64, bool) {
	if s.interval <= 0 {
		return 0, false
	}

	s.frames++
	if s.frames < s.interval {
		return 0, false
	}

	elapsed := now - s.start
	fps := 0.0
	if elapsed > 0 {
		fps = float64(s.frames) / elapsed
	}

	s.frames = 0
	s.start = now
	return fps, true
}

func (s *frameStats) observe() (float64, bool) {
	return s.advance(hrtime.Now().Seconds())
}
