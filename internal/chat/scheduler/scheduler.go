package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"chatsync-backend/internal/chat/usecase"

	"github.com/robfig/cron/v3"
)

// SyncScheduler runs SyncAll for every account on a cron schedule
type SyncScheduler struct {
	chatUsecase usecase.ChatUsecase
	cron        *cron.Cron
	schedule    string

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	busy   bool
}

// NewSyncScheduler validates the schedule ("@every 15m", "*/5 * * * *", ...)
func NewSyncScheduler(chatUsecase usecase.ChatUsecase, schedule string) (*SyncScheduler, error) {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &SyncScheduler{
		chatUsecase: chatUsecase,
		cron:        cron.New(cron.WithParser(parser)),
		schedule:    schedule,
		ctx:         ctx,
		cancel:      cancel,
	}
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		cancel()
		return nil, fmt.Errorf("unable to schedule sync: %w", err)
	}
	return s, nil
}

// Start begins the scheduler loop
func (s *SyncScheduler) Start() {
	log.Printf("[SyncScheduler] Starting chat sync scheduler (schedule: %s)", s.schedule)
	s.cron.Start()
}

// Stop cancels a running pass and waits for it to return
func (s *SyncScheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	log.Println("[SyncScheduler] Scheduler stopped")
}

// runOnce skips a tick while the previous pass is still running
func (s *SyncScheduler) runOnce() {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		log.Println("[SyncScheduler] Previous pass still running, tick skipped")
		return
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	s.chatUsecase.SyncAll(s.ctx)
}
