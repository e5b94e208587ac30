package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/sunat"
	infrasunat "github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/sunat"
	"github.com/Cristhianmcc/marketPOS-sub004/pkg/clock"
	pkgsunat "github.com/Cristhianmcc/marketPOS-sub004/pkg/sunat"
)

const defaultRemoteTimeout = 60 * time.Second

// ProcessorConfig tiempos del envío y de la consulta de tickets.
type ProcessorConfig struct {
	HTTPTimeout  time.Duration // timeout por llamada al billService
	PollInterval time.Duration // espera entre getStatus
	PollMaxWait  time.Duration // tope de espera de un ticket dentro del mismo intento
}

// SubmissionProcessor procesa un job reclamado por el worker:
//
//	documento → ZIP → sendBill/sendSummary → (getStatus) → CDR → clasificación → DB
//
// Siempre termina sacando el job de CLAIMED (QUEUED, DONE o FAILED) salvo que el lease
// se haya perdido o la persistencia falle; en esos casos el lease vence y otro worker
// retoma el job.
type SubmissionProcessor struct {
	docRepo   repository.DocumentRepository
	storeRepo repository.StoreRepository
	txRunner  SubmissionTxRunner
	submitter infrasunat.Submitter
	audit     AuditRecorder
	artifacts ArtifactStore // nil: sin archivo de artefactos
	codes     *pkgsunat.CodeTable
	clock     clock.Clock
	cfg       ProcessorConfig
	log       zerolog.Logger
}

// NewSubmissionProcessor construye el procesador. artifacts puede ser nil.
func NewSubmissionProcessor(
	docRepo repository.DocumentRepository,
	storeRepo repository.StoreRepository,
	txRunner SubmissionTxRunner,
	submitter infrasunat.Submitter,
	audit AuditRecorder,
	artifacts ArtifactStore,
	codes *pkgsunat.CodeTable,
	clk clock.Clock,
	cfg ProcessorConfig,
	log zerolog.Logger,
) *SubmissionProcessor {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultRemoteTimeout
	}
	return &SubmissionProcessor{
		docRepo:   docRepo,
		storeRepo: storeRepo,
		txRunner:  txRunner,
		submitter: submitter,
		audit:     audit,
		artifacts: artifacts,
		codes:     codes,
		clock:     clk,
		cfg:       cfg,
		log:       log.With().Str("component", "sunat-processor").Logger(),
	}
}

// attempt estado de un intento en curso.
type attempt struct {
	job       *entity.SubmissionJob
	owner     string
	number    int // número de intento (attempts + 1)
	doc       *entity.ElectronicDocument
	persisted entity.DocumentStatus // último estado del documento escrito en DB
	store     *entity.Store
	creds     infrasunat.Credentials
	zipName   string
	archive   []byte
	log       zerolog.Logger
}

// Process ejecuta un intento de envío del job reclamado. Devuelve error solo cuando el
// resultado no pudo persistirse (incluido domain.ErrLeaseLost).
func (p *SubmissionProcessor) Process(ctx context.Context, job *entity.SubmissionJob) error {
	a := &attempt{
		job:    job,
		owner:  job.LeaseOwner,
		number: job.Attempts + 1,
		log: p.log.With().
			Str("job_id", job.ID).
			Str("document_id", job.DocumentID).
			Int("attempt", job.Attempts+1).
			Logger(),
	}
	// El resultado se persiste aunque el worker esté apagándose.
	persistCtx := context.WithoutCancel(ctx)

	// ═══════════════════════════════════════════════════════════════════════════
	// 0. Datos frescos del documento y la tienda
	// ═══════════════════════════════════════════════════════════════════════════
	doc, err := p.docRepo.GetByID(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("cargar documento %s: %w", job.DocumentID, err)
	}
	if doc == nil {
		return p.apply(persistCtx, a, sunat.Fatal("documento no encontrado"))
	}
	a.doc, a.persisted = doc, doc.Status

	if doc.Status.IsTerminal() {
		a.log.Info().Str("status", string(doc.Status)).Msg("documento ya resuelto, se cierra el job sin reenviar")
		return p.closeResolved(persistCtx, a)
	}
	if doc.Status != entity.DocumentStatusSigned && doc.Status != entity.DocumentStatusSent {
		return p.apply(persistCtx, a, sunat.Fatal(fmt.Sprintf("documento en estado %s no es enviable", doc.Status)))
	}
	if len(doc.SignedBody) == 0 {
		return p.apply(persistCtx, a, sunat.Fatal("documento sin XML firmado"))
	}

	store, err := p.storeRepo.GetByID(ctx, job.StoreID)
	if err != nil {
		return fmt.Errorf("cargar tienda %s: %w", job.StoreID, err)
	}
	if store == nil {
		return p.apply(persistCtx, a, sunat.Fatal(fmt.Sprintf("tienda %s no encontrada", job.StoreID)))
	}
	a.store = store
	a.creds = infrasunat.Credentials{Username: store.SolUsername(), Password: store.SolPassword}

	// ═══════════════════════════════════════════════════════════════════════════
	// 1. Envío (o reanudación del ticket) y clasificación
	// ═══════════════════════════════════════════════════════════════════════════
	outcome := p.deliver(ctx, a)

	// ═══════════════════════════════════════════════════════════════════════════
	// 2. Persistir documento + job en una transacción, auditar y archivar
	// ═══════════════════════════════════════════════════════════════════════════
	return p.apply(persistCtx, a, outcome)
}

// deliver arma el ZIP y conversa con SUNAT. Nunca devuelve error: todo termina en un Outcome.
func (p *SubmissionProcessor) deliver(ctx context.Context, a *attempt) sunat.Outcome {
	if a.doc.RemoteTicket != "" {
		a.log.Info().Str("ticket", a.doc.RemoteTicket).Msg("reanudando consulta de ticket, no se reenvía")
		return p.awaitTicket(ctx, a, a.doc.RemoteTicket)
	}

	typeCode := a.doc.DocType.SunatCode()
	if a.job.JobType == entity.JobTypeSendSummary {
		typeCode = infrasunat.SummaryTypeCode
	}
	if typeCode == "" {
		return sunat.Fatal(fmt.Sprintf("tipo de comprobante %q sin código SUNAT", a.doc.DocType))
	}
	if err := pkgsunat.ValidateRUC(a.store.RUC); err != nil {
		return sunat.Fatal(fmt.Sprintf("RUC de la tienda inválido: %v", err))
	}
	xmlName, zipName := infrasunat.Filenames(a.store.RUC, typeCode, a.doc.Series, a.doc.Number)
	archive, err := infrasunat.BuildArchive(a.doc.SignedBody, xmlName)
	if err != nil {
		return sunat.Fatal(fmt.Sprintf("armar ZIP: %v", err))
	}
	a.zipName, a.archive = zipName, archive

	switch a.job.JobType {
	case entity.JobTypeSendSummary:
		rctx, cancel := p.remoteContext(ctx)
		ticket, err := p.submitter.SubmitBatch(rctx, a.creds, zipName, archive)
		cancel()
		if err != nil {
			return p.classifyError(err)
		}
		p.markSent(ctx, a, ticket)
		return p.awaitTicket(ctx, a, ticket)
	default:
		rctx, cancel := p.remoteContext(ctx)
		res, err := p.submitter.Submit(rctx, a.creds, zipName, archive)
		cancel()
		if err != nil {
			return p.classifyError(err)
		}
		if res.Ticket != "" {
			p.markSent(ctx, a, res.Ticket)
			return p.awaitTicket(ctx, a, res.Ticket)
		}
		p.markSent(ctx, a, "")
		return p.fromAck(res.Ack)
	}
}

// awaitTicket consulta getStatus cada PollInterval hasta PollMaxWait. "En proceso" al
// vencer el plazo es un resultado transitorio: el ticket queda guardado y el siguiente
// intento retoma la consulta. Si el worker se detiene durante la espera el job vuelve a
// la cola sin consumir intento.
func (p *SubmissionProcessor) awaitTicket(ctx context.Context, a *attempt, ticket string) sunat.Outcome {
	deadline := p.clock.Now().Add(p.cfg.PollMaxWait)
	for {
		rctx, cancel := p.remoteContext(ctx)
		res, err := p.submitter.PollTicket(rctx, a.creds, ticket)
		cancel()
		if err != nil {
			return p.classifyError(err)
		}
		if !res.Processing {
			return p.fromAck(res.Ack)
		}
		if !p.clock.Now().Before(deadline) {
			return sunat.Outcome{
				Kind:    sunat.OutcomeTransient,
				Code:    pkgsunat.TicketStatusInProgress,
				Message: "SUNAT sigue procesando el ticket " + ticket,
			}
		}
		select {
		case <-ctx.Done():
			return sunat.Deferred("worker detenido mientras esperaba el ticket " + ticket)
		case <-p.clock.After(p.cfg.PollInterval):
		}
	}
}

// markSent registra la recepción por SUNAT (documento SENT y ticket si lo hay). Si falla,
// apply vuelve a escribir el documento al cerrar el intento.
func (p *SubmissionProcessor) markSent(ctx context.Context, a *attempt, ticket string) {
	a.doc.RemoteTicket = ticket
	a.doc.UpdatedAt = p.clock.Now()
	if a.doc.Status == entity.DocumentStatusSigned {
		a.doc.Status = entity.DocumentStatusSent
	}
	if err := p.docRepo.UpdateSubmission(context.WithoutCancel(ctx), a.doc, a.persisted); err != nil {
		a.log.Error().Err(err).Msg("no se pudo persistir SENT")
		return
	}
	a.persisted = a.doc.Status
}

// fromAck parsea el CDR y clasifica su código.
func (p *SubmissionProcessor) fromAck(ack []byte) sunat.Outcome {
	cdr, err := infrasunat.ParseCDR(ack)
	if err != nil {
		return sunat.Transient(err.Error())
	}
	kind := sunat.ClassifyCode(p.codes, cdr.Code)
	if cdr.Accepted {
		kind = sunat.OutcomeAccepted
	}
	msg := cdr.Message
	if msg == "" {
		msg = p.codes.Message(cdr.Code, "")
	}
	return sunat.Outcome{Kind: kind, Code: cdr.Code, Message: msg, Notes: cdr.Notes, Ack: ack}
}

// classifyError separa fallos de transporte (siempre transitorios) de faults SUNAT
// (según la tabla de códigos).
func (p *SubmissionProcessor) classifyError(err error) sunat.Outcome {
	var fault *infrasunat.RemoteFault
	if errors.As(err, &fault) {
		kind := sunat.ClassifyCode(p.codes, fault.Code)
		if kind == sunat.OutcomeAccepted {
			// Un fault no trae CDR.
			kind = sunat.OutcomeTransient
		}
		return sunat.Outcome{Kind: kind, Code: fault.Code, Message: p.codes.Message(fault.Code, fault.Message)}
	}
	var transport *infrasunat.TransportError
	if errors.As(err, &transport) {
		return sunat.Transient(transport.Error())
	}
	return sunat.Transient(err.Error())
}

// apply traduce el Outcome a estados de documento y job y los persiste juntos.
func (p *SubmissionProcessor) apply(ctx context.Context, a *attempt, o sunat.Outcome) error {
	now := p.clock.Now()
	job, doc := a.job, a.doc
	var secrets []string
	if a.creds.Password != "" {
		secrets = append(secrets, a.creds.Password)
	}
	sanitized := sunat.SanitizeMessage(o.Message, secrets...)

	var (
		event  entity.AuditEventType
		target entity.DocumentStatus
		code   = o.Code
	)
	switch o.Kind {
	case sunat.OutcomeAccepted, sunat.OutcomeRejected:
		job.Status = entity.JobStatusDone
		job.CompletedAt = &now
		job.LastError = ""
		target, event = entity.DocumentStatusAccepted, entity.AuditAccepted
		if o.Kind == sunat.OutcomeRejected {
			target, event = entity.DocumentStatusRejected, entity.AuditRejected
			job.LastError = sunat.SanitizeMessage(o.Code+": "+o.Message, secrets...)
		}
	case sunat.OutcomeDeferred:
		// El ticket queda guardado en el documento; el próximo claim retoma la consulta.
		job.Status = entity.JobStatusQueued
		job.NextRunAt = now
		event = entity.AuditRetryScheduled
	case sunat.OutcomeTransient:
		job.Attempts++
		job.LastError = sanitized
		if delay, ok := sunat.Backoff(job.Attempts); ok {
			job.Status = entity.JobStatusQueued
			job.NextRunAt = now.Add(delay)
			event = entity.AuditRetryScheduled
		} else {
			job.Status = entity.JobStatusFailed
			job.CompletedAt = &now
			target, event = entity.DocumentStatusError, entity.AuditFailedTerminal
		}
	default:
		a.log.Error().Str("code", o.Code).Str("detail", sanitized).Msg("fallo técnico fatal, sin reintento")
		job.Status = entity.JobStatusFailed
		job.CompletedAt = &now
		job.LastError = sunat.GenericFailureCode
		target, event = entity.DocumentStatusError, entity.AuditFailedTerminal
		code = sunat.GenericFailureCode
	}
	job.UpdatedAt = now

	updateDoc := false
	if doc != nil && !a.persisted.IsTerminal() {
		updateDoc = true
		if target != "" {
			// Un CDR o un fault con código de negocio prueba que SUNAT recibió el comprobante.
			if doc.Status == entity.DocumentStatusSigned &&
				(o.Kind == sunat.OutcomeAccepted || o.Kind == sunat.OutcomeRejected) {
				doc.Status = entity.DocumentStatusSent
			}
			if doc.Status.CanTransitionTo(target) {
				doc.Status = target
				doc.RemoteCode = code
				doc.RemoteRespondedAt = &now
				switch o.Kind {
				case sunat.OutcomeAccepted, sunat.OutcomeRejected:
					doc.RemoteMessage = sunat.SanitizeMessage(o.Message, secrets...)
					doc.AckContainer = o.Ack
				case sunat.OutcomeTransient:
					doc.RemoteMessage = sanitized
				default:
					doc.RemoteMessage = "fallo técnico en el envío"
				}
			} else {
				a.log.Warn().
					Str("from", string(doc.Status)).
					Str("to", string(target)).
					Msg("transición de documento no permitida, se cierra solo el job")
			}
		}
		doc.UpdatedAt = now
	}

	err := p.txRunner.RunSubmission(ctx, func(docRepo repository.DocumentRepository, jobRepo repository.JobRepository) error {
		if updateDoc {
			if err := docRepo.UpdateSubmission(ctx, doc, a.persisted); err != nil {
				return fmt.Errorf("persistir documento: %w", err)
			}
		}
		return jobRepo.Release(ctx, job, a.owner)
	})
	if err != nil {
		if errors.Is(err, domain.ErrLeaseLost) {
			a.log.Warn().Msg("lease perdido: otro worker tomó el job, resultado descartado")
		}
		return fmt.Errorf("persistir resultado del job %s: %w", job.ID, err)
	}
	if doc != nil {
		a.persisted = doc.Status
	}

	a.log.Info().
		Str("outcome", o.Kind.String()).
		Str("code", code).
		Str("job_status", string(job.Status)).
		Int("attempts", job.Attempts).
		Time("next_run_at", job.NextRunAt).
		Msg("intento de envío finalizado")

	msg := sanitized
	if o.Kind == sunat.OutcomeFatal {
		msg = sunat.GenericFailureCode
	}
	Audit(ctx, p.audit, p.log, NewAuditEvent(event, job, a.owner, a.number, code, msg, now))

	if (o.Kind == sunat.OutcomeAccepted || o.Kind == sunat.OutcomeRejected) && p.artifacts != nil && a.archive != nil {
		if err := p.artifacts.PutArtifacts(ctx, doc, a.store.RUC, a.zipName, a.archive, o.Ack); err != nil {
			a.log.Warn().Err(err).Msg("no se pudieron archivar ZIP y CDR")
		}
	}
	return nil
}

// closeResolved cierra un job reclamado cuyo documento ya es terminal (re-claim tras un
// lease vencido): DONE si SUNAT ya respondió, FAILED si el documento quedó en ERROR.
func (p *SubmissionProcessor) closeResolved(ctx context.Context, a *attempt) error {
	now := p.clock.Now()
	job := a.job
	job.Status = entity.JobStatusDone
	if a.doc.Status == entity.DocumentStatusError {
		job.Status = entity.JobStatusFailed
	}
	job.CompletedAt = &now
	job.UpdatedAt = now
	return p.txRunner.RunSubmission(ctx, func(_ repository.DocumentRepository, jobRepo repository.JobRepository) error {
		return jobRepo.Release(ctx, job, a.owner)
	})
}

// remoteContext desacopla la llamada remota de la cancelación del worker y le aplica el
// timeout de red.
func (p *SubmissionProcessor) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.cfg.HTTPTimeout)
}
