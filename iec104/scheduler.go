package iec104

import (
	"time"

	"github.com/baetyl/baetyl-go/v2/log"
)

// DefaultSchedulerResolution is the tick granularity of the periodic
// reporter; point intervals below it fire at most once per tick.
const DefaultSchedulerResolution = 100 * time.Millisecond

// Scheduler drives the periodic reporting of a server station. Each tick it
// transmits every server-side monitoring point whose configured interval
// has elapsed since its last cyclic report, invoking the point's
// before-auto-transmit hook first. An interval of 0 stops further reports
// without any other reconfiguration.
type Scheduler struct {
	station    *Station
	resolution time.Duration
	log        *log.Logger
	stop       chan struct{}
	done       chan struct{}
}

func NewScheduler(station *Station, resolution time.Duration) *Scheduler {
	if resolution <= 0 {
		resolution = DefaultSchedulerResolution
	}
	return &Scheduler{
		station:    station,
		resolution: resolution,
		log:        station.log.With(log.Any("module", "scheduler")),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the tick loop until Stop is called or the station closes.
func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.resolution)
	defer ticker.Stop()
	defer close(s.done)
	for {
		select {
		case <-ticker.C:
			if s.station.Closed() {
				s.log.Warn("station closed, reporter stopped")
				return
			}
			s.tick(nowMilliseconds())
		case <-s.stop:
			return
		}
	}
}

// Stop terminates the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// tick fires at most one periodic report per due point. The first tick that
// sees a point only arms it, so the first report goes out one full interval
// after the point came under scheduling.
func (s *Scheduler) tick(nowMs uint64) {
	for _, p := range s.station.Points() {
		if p.role != RoleServer || !p.typeID.IsMonitor() {
			continue
		}
		interval := uint64(p.reportInterval.Load())
		if interval == 0 {
			continue
		}
		last := p.recordedAt.Load()
		if last == 0 {
			p.recordedAt.CompareAndSwap(0, nowMs)
			continue
		}
		if nowMs-last < interval {
			continue
		}
		if err := p.OnBeforeAutoTransmit(); err != nil {
			s.log.Warn("auto transmit hook failed", log.Any("ioa", p.Address()), log.Error(err))
			continue
		}
		if err := p.Transmit(CausePeriodic, QualifierNone); err != nil {
			s.log.Warn("periodic transmit failed", log.Any("ioa", p.Address()), log.Error(err))
			continue
		}
		p.recordedAt.Store(nowMs)
	}
}
