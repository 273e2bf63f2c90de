// Package metrics collects rolling frame statistics for the text engine:
// frame times, draw-call counts, texture memory, and cache hit rate.
//
// Recording is tolerant of concurrent callers (GPU completion callbacks
// fire on arbitrary goroutines); counters are individually atomic with
// only eventual consistency across fields.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/textframe"
)

// RefreshIntervalMs is one display refresh at 60 Hz. Frames slower than
// this are reported through the diagnostics logger.
const RefreshIntervalMs = 1000.0 / 60.0

// batchSize is the number of completed frames per published average.
// The average is a reset-every-batch approximation, not a sliding
// window: every 60th frame the batch mean is published and the sum
// reset. Cheap, and smooth enough for an overlay readout.
const batchSize = 60

// FrameReport carries one completed frame's measurements back to the
// recorder. It is the explicit context object passed across the async
// completion boundary.
type FrameReport struct {
	// Duration is the frame's wall time from encode start to GPU
	// completion.
	Duration time.Duration

	// DrawCalls is the number of draw calls the frame submitted.
	DrawCalls int
}

// Snapshot is a read-only view of the current statistics.
type Snapshot struct {
	// FrameTimeMs is the last completed frame's time.
	FrameTimeMs float64

	// AvgFrameTimeMs is the last published batch average (0 until the
	// first batch of 60 frames completes).
	AvgFrameTimeMs float64

	// DrawCalls is the last completed frame's draw-call count.
	DrawCalls int

	// Frames is the total number of completed frames.
	Frames uint64

	// TextureMemoryBytes is the render-target cache's memory estimate.
	TextureMemoryBytes int64

	// CacheHitRate is the glyph atlas cache hit rate in [0, 1].
	CacheHitRate float64
}

// Recorder accumulates frame statistics. The zero value is not usable;
// call New.
//
// Recorder is safe for concurrent use.
type Recorder struct {
	lastFrameBits atomic.Uint64 // float64 bits, last frame ms
	avgBits       atomic.Uint64 // float64 bits, last batch average ms
	lastDraws     atomic.Int64
	frames        atomic.Uint64

	// batch accumulation; mutated under mu since two fields must move
	// together.
	mu         sync.Mutex
	batchSumMs float64
	batchCount int

	// Delegated gauges, wired by the coordinator.
	memFn atomic.Pointer[func() int64]
	hitFn atomic.Pointer[func() float64]
}

// New creates a Recorder.
func New() *Recorder {
	return &Recorder{}
}

// SetTextureMemoryFunc wires the texture-memory gauge, typically the
// render target cache's MemoryUsage.
func (r *Recorder) SetTextureMemoryFunc(f func() int64) {
	r.memFn.Store(&f)
}

// SetCacheHitRateFunc wires the cache-hit-rate gauge, typically the
// glyph atlas cache's HitRate.
func (r *Recorder) SetCacheHitRateFunc(f func() float64) {
	r.hitFn.Store(&f)
}

// FrameTimer brackets one frame. Obtain one from StartFrame and finish
// it with EndFrame or hand it to the completion path via Report.
type FrameTimer struct {
	start time.Time
	r     *Recorder
}

// StartFrame starts timing a frame. Multiple frames may be in flight;
// each holds its own timer.
func (r *Recorder) StartFrame() FrameTimer {
	return FrameTimer{start: time.Now(), r: r}
}

// EndFrame records the frame with the given draw-call count and returns
// the elapsed time in milliseconds.
func (t FrameTimer) EndFrame(drawCalls int) float64 {
	elapsed := time.Since(t.start)
	t.r.RecordFrame(FrameReport{Duration: elapsed, DrawCalls: drawCalls})
	return durationMs(elapsed)
}

// Elapsed returns the time since the frame started without recording.
func (t FrameTimer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// RecordFrame records one completed frame. Safe to call from any
// goroutine, including GPU completion callbacks.
func (r *Recorder) RecordFrame(rep FrameReport) {
	ms := durationMs(rep.Duration)

	r.lastFrameBits.Store(math.Float64bits(ms))
	r.lastDraws.Store(int64(rep.DrawCalls))
	r.frames.Add(1)

	r.mu.Lock()
	r.batchSumMs += ms
	r.batchCount++
	if r.batchCount >= batchSize {
		avg := r.batchSumMs / float64(r.batchCount)
		r.avgBits.Store(math.Float64bits(avg))
		r.batchSumMs = 0
		r.batchCount = 0
	}
	r.mu.Unlock()

	if ms > RefreshIntervalMs {
		textframe.Logger().Warn("slow frame",
			"ms", ms, "drawCalls", rep.DrawCalls)
	}
}

// Snapshot returns a copy of the current statistics.
func (r *Recorder) Snapshot() Snapshot {
	s := Snapshot{
		FrameTimeMs:    math.Float64frombits(r.lastFrameBits.Load()),
		AvgFrameTimeMs: math.Float64frombits(r.avgBits.Load()),
		DrawCalls:      int(r.lastDraws.Load()),
		Frames:         r.frames.Load(),
	}
	if f := r.memFn.Load(); f != nil {
		s.TextureMemoryBytes = (*f)()
	}
	if f := r.hitFn.Load(); f != nil {
		s.CacheHitRate = (*f)()
	}
	return s
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
