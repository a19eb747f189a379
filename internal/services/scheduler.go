package services

import (
	"fmt"
	"time"

	"restaurant_pos/pkg/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// StartResyncScheduler refetches every workspace's queries each interval, in
// case a notification was lost. A zero interval disables the job.
func StartResyncScheduler(manager *WorkspaceManager, interval time.Duration, loc *time.Location, clock clockwork.Clock) (gocron.Scheduler, error) {
	opts := []gocron.SchedulerOption{gocron.WithClock(clock)}
	if loc != nil {
		opts = append(opts, gocron.WithLocation(loc))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	if interval > 0 {
		_, err = s.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(manager.ResyncAll),
			gocron.WithName("periodic-resync"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to schedule resync job: %w", err)
		}
	}

	s.Start()
	utils.LogInfo("Resync scheduler started", map[string]interface{}{"interval": interval.String()})
	return s, nil
}
