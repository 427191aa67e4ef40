package battle

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/kodzimk/head2head/internal/obslog"
)

// Sweeper periodically re-evaluates live battles: the completion sweep covers
// battles whose pacing callbacks died with a dropped connection, the
// inactivity sweep reclaims abandoned ones.
type Sweeper struct {
	engine *Engine
	sched  gocron.Scheduler
}

func NewSweeper(engine *Engine, sweepPeriod, inactivityPeriod time.Duration) (*Sweeper, error) {
	if sweepPeriod <= 0 {
		sweepPeriod = 30 * time.Second
	}
	if inactivityPeriod <= 0 {
		inactivityPeriod = time.Minute
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	s := &Sweeper{engine: engine, sched: sched}

	if _, err := sched.NewJob(
		gocron.DurationJob(sweepPeriod),
		gocron.NewTask(s.completionTick),
	); err != nil {
		return nil, err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(inactivityPeriod),
		gocron.NewTask(s.inactivityTick),
	); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.sched.Start()
	obslog.L().Info("battle_sweeper_started")
}

func (s *Sweeper) Stop() {
	if err := s.sched.Shutdown(); err != nil {
		obslog.L().Warn("battle_sweeper_shutdown_failed", zap.Error(err))
	}
}

func (s *Sweeper) completionTick() {
	s.engine.SweepCompletions()
	obslog.L().Debug("completion_sweep_done", zap.Int("live_battles", s.engine.LiveBattles()))
}

func (s *Sweeper) inactivityTick() {
	s.engine.SweepInactive()
}
