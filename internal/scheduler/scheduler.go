package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/edgemeter/internal/models"
)

// DefaultSpec polls at the top of every hour.
const DefaultSpec = "0 * * * *"

// pollTimeout bounds one cycle of a single device.
const pollTimeout = 2 * time.Minute

// Poller runs one poll of a device.
type Poller interface {
	Poll(ctx context.Context, device models.Device, now time.Time) (int, error)
}

// DeviceLister supplies the devices to poll.
type DeviceLister interface {
	Devices(ctx context.Context) ([]models.Device, error)
}

type Scheduler struct {
	ctx     context.Context
	poller  Poller
	devices DeviceLister
	spec    string
	logger  *logrus.Logger
	cron    *cron.Cron

	mu      sync.Mutex
	running map[string]*sync.Mutex
	wg      sync.WaitGroup
}

func NewScheduler(ctx context.Context, poller Poller, devices DeviceLister, spec string, logger *logrus.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{
		ctx:     ctx,
		poller:  poller,
		devices: devices,
		spec:    spec,
		logger:  logger,
		cron:    cron.New(),
		running: make(map[string]*sync.Mutex),
	}
}

// Start the scheduler
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.collectData)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithField("spec", s.spec).Info("Poll scheduler started")
	return nil
}

func (s *Scheduler) collectData() {
	s.RunOnce(s.ctx)
}

// RunOnce starts a poll of every enabled device and waits for all of them.
// A device whose previous poll is still running is skipped. It returns the
// number of polls started.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	devices, err := s.devices.Devices(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list devices")
		return 0
	}

	now := time.Now()
	var cycle sync.WaitGroup
	started := 0
	for _, d := range devices {
		if !d.Enabled {
			continue
		}
		lock := s.deviceLock(d.ID)
		if !lock.TryLock() {
			s.logger.WithField("device", d.ID).Warn("Previous poll still running, skipping")
			continue
		}

		started++
		cycle.Add(1)
		s.wg.Add(1)
		go func(d models.Device) {
			defer s.wg.Done()
			defer cycle.Done()
			defer lock.Unlock()
			s.poll(ctx, d, now)
		}(d)
	}
	cycle.Wait()
	return started
}

func (s *Scheduler) poll(ctx context.Context, device models.Device, now time.Time) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	if _, err := s.poller.Poll(ctx, device, now); err != nil {
		s.logger.WithError(err).WithField("device", device.ID).Error("Failed to poll device")
	}
}

func (s *Scheduler) deviceLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.running[id]
	if !ok {
		lock = &sync.Mutex{}
		s.running[id] = lock
	}
	return lock
}

// Stop the scheduler and wait for in-flight polls.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
}
