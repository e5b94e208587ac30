package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/billing"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/dto"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	infrasunat "github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/sunat"
)

func TestEnqueue_DocumentoFirmado(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)

	resp, err := f.uc.Enqueue(context.Background(), testStoreID, "doc-1", "user-1", dto.EnqueueSubmissionRequest{})
	require.NoError(t, err)
	assert.Equal(t, dto.SignalQueued, resp.Signal)
	assert.Equal(t, string(entity.JobStatusQueued), resp.Status)
	assert.Equal(t, start, resp.NextRunAt)

	job := f.latestJob(t, "doc-1")
	assert.Equal(t, resp.JobID, job.ID)
	assert.Equal(t, 0, job.Attempts)
	assert.Equal(t, entity.JobTypeSendDocument, job.JobType)
	assert.Equal(t, []entity.AuditEventType{entity.AuditQueued}, f.auditTypes(t, "doc-1"))
}

func TestEnqueue_EsIdempotente(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	ctx := context.Background()

	first, err := f.uc.Enqueue(ctx, testStoreID, "doc-1", "user-1", dto.EnqueueSubmissionRequest{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := f.uc.Enqueue(ctx, testStoreID, "doc-1", "user-1", dto.EnqueueSubmissionRequest{})
		require.NoError(t, err)
		assert.Equal(t, dto.SignalAlreadyQueued, again.Signal)
		assert.Equal(t, first.JobID, again.JobID)
	}
	assert.Len(t, f.auditTypes(t, "doc-1"), 1, "un solo evento queued")
}

func TestEnqueue_EstadoInvalido(t *testing.T) {
	for _, status := range []entity.DocumentStatus{
		entity.DocumentStatusDraft,
		entity.DocumentStatusPending,
		entity.DocumentStatusSent,
		entity.DocumentStatusAccepted,
		entity.DocumentStatusRejected,
		entity.DocumentStatusError,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, billing.ProcessorConfig{})
			f.seedDocument(t, "doc-1", status)
			_, err := f.uc.Enqueue(context.Background(), testStoreID, "doc-1", "user-1", dto.EnqueueSubmissionRequest{})
			assert.ErrorIs(t, err, domain.ErrInvalidState)
		})
	}
}

func TestEnqueue_ErroresDeEntrada(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	ctx := context.Background()

	_, err := f.uc.Enqueue(ctx, testStoreID, "no-existe", "u", dto.EnqueueSubmissionRequest{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.uc.Enqueue(ctx, "otra-tienda", "doc-1", "u", dto.EnqueueSubmissionRequest{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.uc.Enqueue(ctx, testStoreID, "doc-1", "u", dto.EnqueueSubmissionRequest{JobType: "SEND_FAX"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	resp, err := f.uc.Enqueue(ctx, testStoreID, "doc-1", "u", dto.EnqueueSubmissionRequest{JobType: "send_summary"})
	require.NoError(t, err)
	assert.Equal(t, entity.JobTypeSendSummary, f.latestJob(t, "doc-1").JobType)
	assert.Equal(t, dto.SignalQueued, resp.Signal)
}

func TestRetry_DespuesDeFallo(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	ctx := context.Background()
	f.submitter.submit = func(string) (*infrasunat.SubmitResult, error) { return nil, credentialFault() }

	_, err := f.uc.Enqueue(ctx, testStoreID, "doc-1", "user-1", dto.EnqueueSubmissionRequest{})
	require.NoError(t, err)
	require.NoError(t, f.proc.Process(ctx, f.claimNext(t)))
	require.Equal(t, entity.DocumentStatusError, f.document(t, "doc-1").Status)

	// Enqueue no reabre un documento en ERROR.
	_, err = f.uc.Enqueue(ctx, testStoreID, "doc-1", "user-1", dto.EnqueueSubmissionRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	resp, err := f.uc.Retry(ctx, testStoreID, "doc-1", "operador")
	require.NoError(t, err)
	assert.Equal(t, dto.SignalQueued, resp.Signal)

	doc := f.document(t, "doc-1")
	assert.Equal(t, entity.DocumentStatusSigned, doc.Status)
	assert.Empty(t, doc.RemoteCode)
	assert.Nil(t, doc.RemoteRespondedAt)

	job := f.latestJob(t, "doc-1")
	assert.Equal(t, resp.JobID, job.ID)
	assert.Equal(t, 0, job.Attempts)
	assert.Equal(t, entity.JobStatusQueued, job.Status)

	types := f.auditTypes(t, "doc-1")
	assert.Equal(t, entity.AuditRetryRequested, types[len(types)-2])
	assert.Equal(t, entity.AuditQueued, types[len(types)-1])

	// Un segundo retry mientras el job está activo no crea otro.
	again, err := f.uc.Retry(ctx, testStoreID, "doc-1", "operador")
	require.NoError(t, err)
	assert.Equal(t, dto.SignalAlreadyQueued, again.Signal)
	assert.Equal(t, resp.JobID, again.JobID)
}

func TestRetry_NoPermitido(t *testing.T) {
	ctx := context.Background()

	t.Run("aceptado", func(t *testing.T) {
		f := newFixture(t, billing.ProcessorConfig{})
		f.seedDocument(t, "doc-1", entity.DocumentStatusAccepted)
		_, err := f.uc.Retry(ctx, testStoreID, "doc-1", "operador")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("rechazo de negocio", func(t *testing.T) {
		f := newFixture(t, billing.ProcessorConfig{})
		doc := f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
		doc.Status, doc.RemoteCode = entity.DocumentStatusSent, ""
		require.NoError(t, f.db.Documents().UpdateSubmission(ctx, doc, entity.DocumentStatusSigned))
		doc.Status, doc.RemoteCode = entity.DocumentStatusRejected, "2335"
		require.NoError(t, f.db.Documents().UpdateSubmission(ctx, doc, entity.DocumentStatusSent))

		_, err := f.uc.Retry(ctx, testStoreID, "doc-1", "operador")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestRetry_RechazoConCausaTransitoria(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, billing.ProcessorConfig{})
	doc := f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	doc.Status = entity.DocumentStatusSent
	require.NoError(t, f.db.Documents().UpdateSubmission(ctx, doc, entity.DocumentStatusSigned))
	doc.Status, doc.RemoteCode = entity.DocumentStatusRejected, "0109"
	require.NoError(t, f.db.Documents().UpdateSubmission(ctx, doc, entity.DocumentStatusSent))

	resp, err := f.uc.Retry(ctx, testStoreID, "doc-1", "operador")
	require.NoError(t, err)
	assert.Equal(t, dto.SignalQueued, resp.Signal)
	assert.Equal(t, entity.DocumentStatusSigned, f.document(t, "doc-1").Status)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	ctx := context.Background()

	st, err := f.uc.Status(ctx, testStoreID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "F001-1", st.FullNumber)
	assert.Equal(t, "SIGNED", st.Status)
	assert.Nil(t, st.Job)

	_, err = f.uc.Enqueue(ctx, testStoreID, "doc-1", "u", dto.EnqueueSubmissionRequest{})
	require.NoError(t, err)
	st, err = f.uc.Status(ctx, testStoreID, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, st.Job)
	assert.Equal(t, "QUEUED", st.Job.Status)

	_, err = f.uc.Status(ctx, "otra-tienda", "doc-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
