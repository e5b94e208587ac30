// Package worker drena la cola de envíos a SUNAT: reclama jobs elegibles con un lease,
// los procesa en un pool acotado y se apaga respetando un período de gracia.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/billing"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
	"github.com/Cristhianmcc/marketPOS-sub004/pkg/clock"
)

const (
	healthCheckTimeout = 5 * time.Second
	purgeInterval      = time.Hour
)

// Config parámetros del worker.
type Config struct {
	Concurrency    int           // tamaño del pool (default 3)
	PollInterval   time.Duration // cada cuánto se buscan jobs (default 10 s)
	LeaseDuration  time.Duration // duración del lease (default 5 min)
	GracePeriod    time.Duration // espera de jobs en curso al apagar (default 30 s)
	HealthInterval time.Duration // health check de la persistencia (default 1 min)
	Retention      time.Duration // antigüedad de jobs DONE/FAILED a purgar; 0 desactiva
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = 5 * time.Minute
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 30 * time.Second
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = time.Minute
	}
}

// JobProcessor procesa un job ya reclamado (billing.SubmissionProcessor).
type JobProcessor interface {
	Process(ctx context.Context, job *entity.SubmissionJob) error
}

// Pinger verifica que la persistencia responde.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthObserver recibe el resultado de cada health check (gauge de métricas).
type HealthObserver interface {
	SetHealthy(healthy bool)
}

// Option configura el Worker.
type Option func(*Worker)

// WithHealthObserver registra un observador del health check.
func WithHealthObserver(o HealthObserver) Option {
	return func(w *Worker) { w.observer = o }
}

// WithOwner fija el token de lease (tests); por defecto se usa OwnerToken().
func WithOwner(owner string) Option {
	return func(w *Worker) { w.owner = owner }
}

// Worker instancia del loop de envíos. Varias instancias (en uno o varios procesos)
// se coordinan solo a través del lease de cada job.
type Worker struct {
	jobRepo   repository.JobRepository
	processor JobProcessor
	pinger    Pinger
	audit     billing.AuditRecorder
	observer  HealthObserver
	clock     clock.Clock
	cfg       Config
	owner     string
	log       zerolog.Logger

	sem      *semaphore.Weighted
	inFlight sync.WaitGroup
	healthy  atomic.Bool
}

// New construye el worker.
func New(
	jobRepo repository.JobRepository,
	processor JobProcessor,
	pinger Pinger,
	audit billing.AuditRecorder,
	clk clock.Clock,
	cfg Config,
	log zerolog.Logger,
	opts ...Option,
) *Worker {
	cfg.applyDefaults()
	w := &Worker{
		jobRepo:   jobRepo,
		processor: processor,
		pinger:    pinger,
		audit:     audit,
		clock:     clk,
		cfg:       cfg,
		owner:     OwnerToken(),
		sem:       semaphore.NewWeighted(int64(cfg.Concurrency)),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = log.With().Str("component", "worker").Str("owner", w.owner).Logger()
	w.healthy.Store(true)
	return w
}

// OwnerToken identificador único de la instancia: host/pid/xid.
func OwnerToken() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s/%d/%s", host, os.Getpid(), xid.New().String())
}

// Owner token de lease de esta instancia.
func (w *Worker) Owner() string { return w.owner }

// Healthy resultado del último health check.
func (w *Worker) Healthy() bool { return w.healthy.Load() }

// Run ejecuta el loop hasta que ctx se cancela. Al apagar deja de reclamar y espera a los
// jobs en curso hasta GracePeriod; los que no terminan quedan abandonados y su lease
// vencerá.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().
		Int("concurrency", w.cfg.Concurrency).
		Dur("poll_interval", w.cfg.PollInterval).
		Dur("lease", w.cfg.LeaseDuration).
		Msg("worker SUNAT iniciado")

	pollTicker := time.NewTicker(w.cfg.PollInterval)
	defer pollTicker.Stop()
	healthTicker := time.NewTicker(w.cfg.HealthInterval)
	defer healthTicker.Stop()
	var purgeC <-chan time.Time
	if w.cfg.Retention > 0 {
		purgeTicker := time.NewTicker(purgeInterval)
		defer purgeTicker.Stop()
		purgeC = purgeTicker.C
	}

	w.CheckHealth(ctx)
	w.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return w.shutdown()
		case <-pollTicker.C:
			w.Tick(ctx)
		case <-healthTicker.C:
			w.CheckHealth(ctx)
		case <-purgeC:
			w.Purge(ctx)
		}
	}
}

// Tick reclama hasta tantos jobs como slots libres tenga el pool y los despacha.
// Devuelve la cantidad de jobs despachados.
func (w *Worker) Tick(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	free := 0
	for free < w.cfg.Concurrency && w.sem.TryAcquire(1) {
		free++
	}
	if free == 0 {
		return 0
	}
	defer func() {
		if free > 0 {
			w.sem.Release(int64(free))
		}
	}()

	now := w.clock.Now()
	candidates, err := w.jobRepo.ListClaimable(ctx, now, free)
	if err != nil {
		w.log.Error().Err(err).Msg("no se pudieron listar jobs elegibles")
		return 0
	}

	dispatched := 0
	for _, job := range candidates {
		if ctx.Err() != nil {
			break
		}
		reclaim := job.Status == entity.JobStatusClaimed
		previousOwner := job.LeaseOwner
		ok, err := w.jobRepo.Claim(ctx, job, w.owner, now, now.Add(w.cfg.LeaseDuration))
		if err != nil {
			w.log.Error().Err(err).Str("job_id", job.ID).Msg("error al reclamar job")
			continue
		}
		if !ok {
			// Otro worker lo reclamó primero.
			continue
		}
		if reclaim {
			w.log.Warn().
				Str("job_id", job.ID).
				Str("previous_owner", previousOwner).
				Msg("lease vencido, job reclamado")
		}
		billing.Audit(ctx, w.audit, w.log, billing.NewAuditEvent(entity.AuditClaimed, job, w.owner, job.Attempts+1, "", "", now))

		free--
		dispatched++
		w.dispatch(ctx, job)
	}
	return dispatched
}

// dispatch procesa el job en su propia goroutine; el slot del semáforo ya fue tomado.
func (w *Worker) dispatch(ctx context.Context, job *entity.SubmissionJob) {
	w.inFlight.Add(1)
	go func() {
		defer w.inFlight.Done()
		defer w.sem.Release(1)
		if err := w.processor.Process(ctx, job); err != nil {
			ev := w.log.Error()
			if errors.Is(err, domain.ErrLeaseLost) {
				ev = w.log.Warn()
			}
			ev.Err(err).Str("job_id", job.ID).Str("document_id", job.DocumentID).Msg("job sin resultado persistido; se reintentará al vencer el lease")
		}
	}()
}

// Wait bloquea hasta que terminen todos los jobs en curso.
func (w *Worker) Wait() {
	w.inFlight.Wait()
}

// CheckHealth verifica la persistencia. Un fallo solo degrada la salud, nunca detiene el loop.
func (w *Worker) CheckHealth(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	err := w.pinger.Ping(pingCtx)
	healthy := err == nil
	was := w.healthy.Swap(healthy)
	switch {
	case !healthy:
		w.log.Warn().Err(err).Msg("health check degradado: la persistencia no responde")
	case !was:
		w.log.Info().Msg("health check recuperado")
	}
	if w.observer != nil {
		w.observer.SetHealthy(healthy)
	}
	return healthy
}

// Purge elimina jobs DONE/FAILED más antiguos que Retention.
func (w *Worker) Purge(ctx context.Context) int64 {
	if w.cfg.Retention <= 0 {
		return 0
	}
	before := w.clock.Now().Add(-w.cfg.Retention)
	n, err := w.jobRepo.DeleteFinishedBefore(ctx, before)
	if err != nil {
		w.log.Error().Err(err).Msg("no se pudo purgar jobs finalizados")
		return 0
	}
	if n > 0 {
		w.log.Info().Int64("deleted", n).Time("before", before).Msg("jobs finalizados purgados")
	}
	return n
}

func (w *Worker) shutdown() error {
	w.log.Info().Dur("grace_period", w.cfg.GracePeriod).Msg("apagando worker: no se reclaman más jobs")
	done := make(chan struct{})
	go func() {
		w.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.log.Info().Msg("worker detenido, sin jobs en curso")
		return nil
	case <-w.clock.After(w.cfg.GracePeriod):
		w.log.Warn().Msg("período de gracia agotado: jobs en curso abandonados, su lease vencerá")
		return ErrGracePeriodExceeded
	}
}

// ErrGracePeriodExceeded Run terminó con jobs todavía en curso.
var ErrGracePeriodExceeded = errors.New("worker: período de gracia agotado con jobs en curso")
