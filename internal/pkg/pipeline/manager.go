package pipeline

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/AlumniConnect/YearbookConnect/app/models"
	"github.com/AlumniConnect/YearbookConnect/app/repository"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/database"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/env"
	metrics "github.com/AlumniConnect/YearbookConnect/internal/pkg/metrics/counter"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/vision"
)

// Manager owns the job queue, the stage sweeps, and the counter flush.
// The sweeps are the recovery path: anything the fast in-process handoff
// missed (crash, lost Redis message, expired lock) is picked up from the
// database on the next tick.
type Manager struct {
	queue              *Queue
	sweepTicker        *time.Ticker
	counterFlushTicker *time.Ticker
	lease              time.Duration
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// InitManager wires the pipeline against the given object store and
// builds the global manager. Must run before GetManager.
func InitManager(store ObjectStore) *Manager {
	managerOnce.Do(func() {
		workerCount := envInt("PIPELINE_WORKER_COUNT", 2)

		db := database.GetDB()
		stages := NewStageWorker(db, store, vision.SetupProviders(), NewThrottleFromEnv(), &DBNotifier{DB: db})
		queue := NewQueue(workerCount, stages)
		stages.SetEnqueuer(queue)

		globalManager = &Manager{
			queue:  queue,
			lease:  time.Duration(envInt("PIPELINE_LOCK_LEASE_MINUTES", 10)) * time.Minute,
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetManager returns the global pipeline manager (singleton)
func GetManager() *Manager {
	if globalManager == nil {
		panic("Pipeline manager not initialized. Call InitManager first.")
	}
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be
	// restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Pipeline Manager] Starting job queue and background tasks")

	m.queue.Start()

	sweepInterval := time.Duration(envInt("PIPELINE_SWEEP_SECONDS", 15)) * time.Second
	m.sweepTicker = time.NewTicker(sweepInterval)
	m.wg.Add(1)
	go m.sweepWorker()

	// Flush view counters (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker()

	log.Info("[Pipeline Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Pipeline Manager] Stopping job queue and background tasks...")

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()
	m.queue.Stop()

	log.Info("[Pipeline Manager] Stopped successfully")
}

// sweepWorker periodically claims due yearbooks for each stage and
// enqueues them.
func (m *Manager) sweepWorker() {
	defer m.wg.Done()
	log.Info("[Pipeline Manager] Started stage sweep worker")

	for {
		select {
		case <-m.stopCh:
			log.Info("[Pipeline Manager] Stage sweep worker stopping")
			return
		case <-m.sweepTicker.C:
			m.sweepOnce()
		}
	}
}

// sweepOnce claims at most one yearbook per stage. A stage with a deep
// backlog drains one yearbook per tick; the in-process handoff between
// stages keeps the common case fast.
func (m *Manager) sweepOnce() {
	repo := repository.GetGlobalRepositories().Yearbook

	stages := []struct {
		jobType JobType
		claim   func(time.Duration) (*models.Yearbook, error)
	}{
		{JobTypeSafetyScan, repo.ClaimOldestForSafety},
		{JobTypeOCR, repo.ClaimOldestForOCR},
		{JobTypeFaceDetection, repo.ClaimOldestForFaces},
		{JobTypeTiling, repo.ClaimOldestForTiling},
	}

	for _, stage := range stages {
		claimed, err := stage.claim(m.lease)
		if err != nil {
			log.Errorf("[Pipeline Manager] Sweep claim for %s failed: %v", stage.jobType, err)
			continue
		}
		if claimed == nil {
			continue
		}

		payload := StageJobPayload{YearbookID: claimed.ID, YearbookUUID: claimed.UUID}
		if _, err := m.queue.EnqueueStage(stage.jobType, payload); err != nil {
			log.Errorf("[Pipeline Manager] Sweep enqueue for %s failed: %v", stage.jobType, err)
		} else {
			log.Infof("[Pipeline Manager] Sweep enqueued %s for yearbook %s", stage.jobType, claimed.UUID)
		}
	}
}

// counterFlushWorker periodically flushes view counters from Redis to DB
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Pipeline Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[Pipeline Manager] Counter flush error: %v", err)
			}
		}
	}
}

func envInt(key string, fallback int) int {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
