package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/remyhfb/delight-desk-v2-sub006/logger"
	"github.com/remyhfb/delight-desk-v2-sub006/util"
	"github.com/remyhfb/delight-desk-v2-sub006/workflow"
	"go.uber.org/zap"
)

const pollBatchSize = 100

// EscalationScheduler wakes on a timer and hands workflows that never
// got a warehouse reply to a human. Escalation itself is idempotent,
// so running the scheduler on several instances at once is safe.
type EscalationScheduler struct {
	service *workflow.WorkflowService
	tw      *util.TickWorker
	stop    chan struct{}
}

func NewEscalationScheduler(service *workflow.WorkflowService, tick time.Duration, wg *sync.WaitGroup) *EscalationScheduler {
	s := &EscalationScheduler{
		service: service,
		stop:    make(chan struct{}),
	}
	s.tw = util.NewTickWorker("escalation-scheduler", tick, s.stop, s.handle, wg)
	return s
}

func (s *EscalationScheduler) Start() {
	if s.tw.IsRunning() {
		return
	}
	s.tw.Start()
}

func (s *EscalationScheduler) Stop() {
	if !s.tw.IsRunning() {
		return
	}
	s.stop <- struct{}{}
}

func (s *EscalationScheduler) handle() {
	escalated := s.service.EscalateExpired(context.Background(), pollBatchSize)
	if escalated > 0 {
		logger.Info("escalated stalled workflows", zap.Int("count", escalated))
	}
}
