package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tunehive/pulse/internal/model"
	"github.com/tunehive/pulse/internal/service"
)

// Trigger is the shared entry point for anything that fires a daily
// collection: the in-process timer here, or a manual CLI/HTTP call.
type Trigger interface {
	Start()
	Stop()
}

// TimerTrigger fires the collector once per day at a fixed UTC time.
// It collects the previous calendar date, so a run at 00:30 UTC
// snapshots the day that just ended.
type TimerTrigger struct {
	collector *service.Collector
	at        time.Duration // offset from midnight UTC

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTimerTrigger builds a trigger firing daily at the given offset
// from midnight UTC, e.g. 30*time.Minute for 00:30.
func NewTimerTrigger(collector *service.Collector, at time.Duration) *TimerTrigger {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerTrigger{
		collector: collector,
		at:        at,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (t *TimerTrigger) Start() {
	t.wg.Add(1)
	go t.run()
}

func (t *TimerTrigger) Stop() {
	t.cancel()
	t.wg.Wait()
}

func (t *TimerTrigger) run() {
	defer t.wg.Done()

	for {
		wait := untilNextFire(time.Now().UTC(), t.at)
		timer := time.NewTimer(wait)

		select {
		case <-timer.C:
			t.fire()
		case <-t.ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (t *TimerTrigger) fire() {
	logHostStats()

	yesterday := model.Midnight(time.Now().UTC()).AddDate(0, 0, -1)
	if _, err := t.collector.Collect(t.ctx, yesterday); err != nil {
		log.Error().
			Err(err).
			Str("date", yesterday.Format("2006-01-02")).
			Msg("scheduled collection failed")
	}
}

// untilNextFire returns how long to sleep from now until the next
// daily fire time. A fire time already passed today rolls to tomorrow.
func untilNextFire(now time.Time, at time.Duration) time.Duration {
	next := model.Midnight(now).Add(at)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// logHostStats records a host snapshot alongside each scheduled run,
// so slow collections can be correlated with host pressure.
func logHostStats() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("failed to read host memory stats")
		return
	}

	percents, err := cpu.Percent(0, false)
	cpuPercent := 0.0
	if err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	}

	log.Info().
		Float64("mem_used_percent", vm.UsedPercent).
		Float64("cpu_percent", cpuPercent).
		Msg("scheduled collection starting")
}
