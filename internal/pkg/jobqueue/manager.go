package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/EdukitaHQ/edukita/internal/pkg/env"
	"github.com/EdukitaHQ/edukita/internal/pkg/payment"
	"github.com/EdukitaHQ/edukita/internal/pkg/subscription"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue             *Queue
	paymentSweepTick  *time.Ticker
	planSweepTick     *time.Ticker
	stopCh            chan struct{}
	wg                sync.WaitGroup
	mu                sync.Mutex
	running           bool
	paymentSweepDelay time.Duration
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 3
		if v, err := strconv.Atoi(env.GetEnv("JOBQUEUE_WORKERS", "")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue:             NewQueue(workerCount),
			stopCh:            make(chan struct{}),
			paymentSweepDelay: 5 * time.Minute,
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background sweeps. gateway and cache are
// handed to the reconcile processors.
func (m *Manager) Start(gateway payment.Gateway, cache subscription.PlanCache) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.RegisterProcessor(JobTypePaymentReconcile, newPaymentReconcileProcessor(gateway, cache))
	m.queue.RegisterProcessor(JobTypePlanReconcile, newPlanReconcileProcessor(cache))
	m.queue.Start()

	// Pending payments that never got their gateway callback are swept
	// back into reconciliation periodically.
	sweepInterval := 2 * time.Minute
	if v, err := strconv.Atoi(env.GetEnv("PAYMENT_SWEEP_INTERVAL_MINUTES", "")); err == nil && v > 0 {
		sweepInterval = time.Duration(v) * time.Minute
	}
	m.paymentSweepTick = time.NewTicker(sweepInterval)
	m.wg.Add(1)
	go m.paymentSweepWorker()

	m.planSweepTick = time.NewTicker(15 * time.Minute)
	m.wg.Add(1)
	go m.planSweepWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.paymentSweepTick != nil {
		m.paymentSweepTick.Stop()
	}
	if m.planSweepTick != nil {
		m.planSweepTick.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// paymentSweepWorker periodically re-enqueues stale pending payments
func (m *Manager) paymentSweepWorker() {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started payment sweep worker (min age: %s)", m.paymentSweepDelay)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Payment sweep worker stopping")
			return
		case <-m.paymentSweepTick.C:
			n, err := m.queue.SweepPendingPayments(m.paymentSweepDelay, 100)
			if err != nil {
				log.Errorf("[JobQueue Manager] Payment sweep error: %v", err)
				continue
			}
			if n > 0 {
				log.Infof("[JobQueue Manager] Swept %d stale pending payments", n)
			}
		}
	}
}

// planSweepWorker periodically reconciles plan mirrors for just-expired
// subscriptions
func (m *Manager) planSweepWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Plan sweep worker stopping")
			return
		case <-m.planSweepTick.C:
			if _, err := m.queue.SweepExpiringPlans(24*time.Hour, 200); err != nil {
				log.Errorf("[JobQueue Manager] Plan sweep error: %v", err)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
