package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/dto"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/sunat"
	"github.com/Cristhianmcc/marketPOS-sub004/pkg/clock"
	pkgsunat "github.com/Cristhianmcc/marketPOS-sub004/pkg/sunat"
)

// SubmissionUseCase encola comprobantes firmados para su envío a SUNAT y expone su estado.
// No llama a SUNAT: el envío lo hace el worker con SubmissionProcessor.
type SubmissionUseCase struct {
	docRepo  repository.DocumentRepository
	jobRepo  repository.JobRepository
	txRunner SubmissionTxRunner
	audit    AuditRecorder
	codes    *pkgsunat.CodeTable
	clock    clock.Clock
	log      zerolog.Logger
}

// NewSubmissionUseCase construye el caso de uso.
func NewSubmissionUseCase(
	docRepo repository.DocumentRepository,
	jobRepo repository.JobRepository,
	txRunner SubmissionTxRunner,
	audit AuditRecorder,
	codes *pkgsunat.CodeTable,
	clk clock.Clock,
	log zerolog.Logger,
) *SubmissionUseCase {
	return &SubmissionUseCase{
		docRepo:  docRepo,
		jobRepo:  jobRepo,
		txRunner: txRunner,
		audit:    audit,
		codes:    codes,
		clock:    clk,
		log:      log.With().Str("component", "submission").Logger(),
	}
}

// Enqueue crea un job QUEUED para un documento SIGNED. Si el documento ya tiene un job
// activo o uno terminado con éxito, devuelve ese job con la señal correspondiente.
func (uc *SubmissionUseCase) Enqueue(ctx context.Context, storeID, documentID, actor string, in dto.EnqueueSubmissionRequest) (*dto.SubmissionResponse, error) {
	jobType := entity.JobType(strings.ToUpper(strings.TrimSpace(in.JobType)))
	if jobType == "" {
		jobType = entity.JobTypeSendDocument
	}
	if !jobType.Valid() {
		return nil, domain.ErrInvalidInput
	}

	doc, err := uc.loadDocument(ctx, storeID, documentID)
	if err != nil {
		return nil, err
	}
	if resp, found, err := uc.existingJob(ctx, doc.ID); err != nil || found {
		return resp, err
	}
	if doc.Status != entity.DocumentStatusSigned {
		return nil, domain.ErrInvalidState
	}

	now := uc.clock.Now()
	job := uc.newJob(doc, jobType)
	if err := uc.jobRepo.Create(ctx, job); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// Otro request encoló el mismo documento entre la lectura y el insert.
			if resp, found, rErr := uc.existingJob(ctx, doc.ID); rErr == nil && found {
				return resp, nil
			}
		}
		return nil, fmt.Errorf("crear job de envío: %w", err)
	}

	Audit(ctx, uc.audit, uc.log, NewAuditEvent(entity.AuditQueued, job, actor, 0, "", "", now))
	uc.log.Info().
		Str("document_id", doc.ID).
		Str("job_id", job.ID).
		Str("job_type", string(job.JobType)).
		Msg("comprobante encolado para envío")
	return toSubmissionResponse(job, dto.SignalQueued), nil
}

// Retry rearma un documento en ERROR (o REJECTED por una causa transitoria) y crea un
// job nuevo con attempts en cero.
func (uc *SubmissionUseCase) Retry(ctx context.Context, storeID, documentID, actor string) (*dto.SubmissionResponse, error) {
	doc, err := uc.loadDocument(ctx, storeID, documentID)
	if err != nil {
		return nil, err
	}
	latest, err := uc.jobRepo.GetLatestByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("consultar último job: %w", err)
	}
	if latest != nil && latest.Status.IsActive() {
		return toSubmissionResponse(latest, dto.SignalAlreadyQueued), nil
	}
	if !uc.retryable(doc, latest) {
		return nil, domain.ErrInvalidState
	}

	jobType := entity.JobTypeSendDocument
	if latest != nil {
		jobType = latest.JobType
	}
	expected := doc.Status
	previousCode := doc.RemoteCode
	now := uc.clock.Now()
	doc.Rearm(now)
	job := uc.newJob(doc, jobType)

	err = uc.txRunner.RunSubmission(ctx, func(docRepo repository.DocumentRepository, jobRepo repository.JobRepository) error {
		if err := docRepo.UpdateSubmission(ctx, doc, expected); err != nil {
			return err
		}
		return jobRepo.Create(ctx, job)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrDuplicate) {
			if resp, found, rErr := uc.existingJob(ctx, doc.ID); rErr == nil && found {
				return resp, nil
			}
			return nil, domain.ErrInvalidState
		}
		return nil, fmt.Errorf("reintentar envío: %w", err)
	}

	Audit(ctx, uc.audit, uc.log, NewAuditEvent(entity.AuditRetryRequested, job, actor, 0, previousCode, "previo: "+string(expected), now))
	Audit(ctx, uc.audit, uc.log, NewAuditEvent(entity.AuditQueued, job, actor, 0, "", "", now))
	uc.log.Info().
		Str("document_id", doc.ID).
		Str("job_id", job.ID).
		Str("previous_status", string(expected)).
		Msg("reintento manual encolado")
	return toSubmissionResponse(job, dto.SignalQueued), nil
}

// Status devuelve el estado del documento y su último job.
func (uc *SubmissionUseCase) Status(ctx context.Context, storeID, documentID string) (*dto.SubmissionStatusResponse, error) {
	doc, err := uc.loadDocument(ctx, storeID, documentID)
	if err != nil {
		return nil, err
	}
	latest, err := uc.jobRepo.GetLatestByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("consultar último job: %w", err)
	}
	out := &dto.SubmissionStatusResponse{
		DocumentID:        doc.ID,
		FullNumber:        doc.FullNumber(),
		Status:            string(doc.Status),
		RemoteCode:        doc.RemoteCode,
		RemoteMessage:     doc.RemoteMessage,
		RemoteTicket:      doc.RemoteTicket,
		RemoteRespondedAt: doc.RemoteRespondedAt,
		HasAck:            len(doc.AckContainer) > 0,
	}
	if latest != nil {
		out.Job = entityToJobResponse(latest)
	}
	return out, nil
}

// History lista los jobs del comprobante (intentos previos y reintentos manuales).
func (uc *SubmissionUseCase) History(ctx context.Context, storeID, documentID string, page dto.PageRequest) (*dto.SubmissionJobListResponse, error) {
	doc, err := uc.loadDocument(ctx, storeID, documentID)
	if err != nil {
		return nil, err
	}
	page.DefaultPage()
	jobs, total, err := uc.jobRepo.ListByDocument(ctx, doc.ID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("listar jobs: %w", err)
	}
	items := make([]dto.SubmissionJobResponse, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, *entityToJobResponse(j))
	}
	return &dto.SubmissionJobListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	}, nil
}

func entityToJobResponse(j *entity.SubmissionJob) *dto.SubmissionJobResponse {
	return &dto.SubmissionJobResponse{
		ID:          j.ID,
		JobType:     string(j.JobType),
		Status:      string(j.Status),
		Attempts:    j.Attempts,
		NextRunAt:   j.NextRunAt,
		LastError:   j.LastError,
		CompletedAt: j.CompletedAt,
	}
}

// retryable: último job FAILED (documento en ERROR) o rechazo con un código que la tabla
// considera transitorio.
func (uc *SubmissionUseCase) retryable(doc *entity.ElectronicDocument, latest *entity.SubmissionJob) bool {
	switch doc.Status {
	case entity.DocumentStatusError:
		return latest == nil || latest.Status == entity.JobStatusFailed
	case entity.DocumentStatusRejected:
		return sunat.ClassifyCode(uc.codes, doc.RemoteCode) == sunat.OutcomeTransient
	}
	return false
}

func (uc *SubmissionUseCase) loadDocument(ctx context.Context, storeID, documentID string) (*entity.ElectronicDocument, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.ErrInvalidInput
	}
	doc, err := uc.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("consultar documento: %w", err)
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if doc.StoreID != storeID {
		return nil, domain.ErrForbidden
	}
	return doc, nil
}

// existingJob devuelve el job activo (ALREADY_QUEUED) o el último DONE (ALREADY_DONE).
func (uc *SubmissionUseCase) existingJob(ctx context.Context, documentID string) (*dto.SubmissionResponse, bool, error) {
	latest, err := uc.jobRepo.GetLatestByDocument(ctx, documentID)
	if err != nil {
		return nil, false, fmt.Errorf("consultar último job: %w", err)
	}
	switch {
	case latest == nil:
		return nil, false, nil
	case latest.Status.IsActive():
		return toSubmissionResponse(latest, dto.SignalAlreadyQueued), true, nil
	case latest.Status == entity.JobStatusDone:
		return toSubmissionResponse(latest, dto.SignalAlreadyDone), true, nil
	}
	return nil, false, nil
}

func (uc *SubmissionUseCase) newJob(doc *entity.ElectronicDocument, jobType entity.JobType) *entity.SubmissionJob {
	now := uc.clock.Now()
	return &entity.SubmissionJob{
		ID:         uuid.New().String(),
		DocumentID: doc.ID,
		StoreID:    doc.StoreID,
		JobType:    jobType,
		Status:     entity.JobStatusQueued,
		Attempts:   0,
		NextRunAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func toSubmissionResponse(job *entity.SubmissionJob, signal string) *dto.SubmissionResponse {
	return &dto.SubmissionResponse{
		JobID:      job.ID,
		DocumentID: job.DocumentID,
		Status:     string(job.Status),
		Signal:     signal,
		NextRunAt:  job.NextRunAt,
	}
}
