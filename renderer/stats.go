package renderer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/loov/hrtime"
)

// smoothing weight of the newest sample in the moving averages
const STATS_SMOOTHING = 0.1

// Stats keeps frame and per pass CPU timings measured with the high resolution clock.
type Stats struct {
	frames     uint64
	frameStart time.Duration
	last       time.Duration
	average    time.Duration
	passes     map[string]time.Duration
	skipped    uint64
}

func NewStats() *Stats {
	return &Stats{passes: map[string]time.Duration{}}
}

func smooth(avg, sample time.Duration) time.Duration {
	if avg == 0 {
		return sample
	}
	return avg + time.Duration(STATS_SMOOTHING*float64(sample-avg))
}

func (s *Stats) BeginFrame() {
	s.frameStart = hrtime.Now()
}

func (s *Stats) EndFrame() {
	s.last = hrtime.Since(s.frameStart)
	s.average = smooth(s.average, s.last)
	s.frames++
}

// SkipFrame counts a frame that was abandoned because the swapchain was out of date.
func (s *Stats) SkipFrame() {
	s.skipped++
}

func (s *Stats) RecordPass(name string, d time.Duration) {
	s.passes[name] = smooth(s.passes[name], d)
}

func (s *Stats) Frames() uint64                  { return s.frames }
func (s *Stats) Skipped() uint64                 { return s.skipped }
func (s *Stats) FrameTime() time.Duration        { return s.last }
func (s *Stats) AverageFrameTime() time.Duration { return s.average }

func (s *Stats) PassTime(name string) time.Duration {
	return s.passes[name]
}

func (s *Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "frames=%d skipped=%d avg=%v", s.frames, s.skipped, s.average)
	names := make([]string, 0, len(s.passes))
	for n := range s.passes {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(&b, " %s=%v", n, s.passes[n])
	}
	return b.String()
}
