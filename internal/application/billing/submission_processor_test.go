package billing_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/billing"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/dto"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/sunat"
	infrasunat "github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/sunat"
)

func enqueue(t *testing.T, f *fixture, docID string, jobType entity.JobType) {
	t.Helper()
	_, err := f.uc.Enqueue(context.Background(), testStoreID, docID, "user-1", dto.EnqueueSubmissionRequest{JobType: string(jobType)})
	require.NoError(t, err)
}

func timeoutErr() error {
	return &infrasunat.TransportError{Op: "sendBill", Err: context.DeadlineExceeded}
}

func TestProcess_Aceptado(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	ack := cdr(t, "0", "La Factura numero F001-1, ha sido aceptada")
	f.submitter.submit = func(string) (*infrasunat.SubmitResult, error) { return &infrasunat.SubmitResult{Ack: ack}, nil }
	enqueue(t, f, "doc-1", entity.JobTypeSendDocument)

	require.NoError(t, f.proc.Process(context.Background(), f.claimNext(t)))

	doc := f.document(t, "doc-1")
	assert.Equal(t, entity.DocumentStatusAccepted, doc.Status)
	assert.Equal(t, "0", doc.RemoteCode)
	assert.Contains(t, doc.RemoteMessage, "aceptada")
	assert.Equal(t, ack, doc.AckContainer)
	require.NotNil(t, doc.RemoteRespondedAt)

	job := f.latestJob(t, "doc-1")
	assert.Equal(t, entity.JobStatusDone, job.Status)
	assert.Equal(t, 0, job.Attempts)
	require.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.LeaseOwner)

	assert.Equal(t, []string{testRUC + "-01-F001-1.zip"}, f.submitter.zipNames)
	assert.Equal(t, testRUC+"MODDATOS", f.submitter.creds[0].Username)
	assert.Equal(t, []entity.AuditEventType{entity.AuditQueued, entity.AuditAccepted}, f.auditTypes(t, "doc-1"))
}

func TestProcess_AceptadoConObservaciones(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	ack := cdr(t, "4252", "observación")
	f.submitter.submit = func(string) (*infrasunat.SubmitResult, error) { return &infrasunat.SubmitResult{Ack: ack}, nil }
	enqueue(t, f, "doc-1", entity.JobTypeSendDocument)

	require.NoError(t, f.proc.Process(context.Background(), f.claimNext(t)))
	assert.Equal(t, entity.DocumentStatusAccepted, f.document(t, "doc-1").Status)
	assert.Equal(t, "4252", f.document(t, "doc-1").RemoteCode)
}

// Escenario: rechazo de negocio → REJECTED, DONE, sin más intentos.
func TestProcess_RechazoDeNegocio(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	ack := cdr(t, "2335", "El documento electrónico ingresado ha sido alterado")
	f.submitter.submit = func(string) (*infrasunat.SubmitResult, error) { return &infrasunat.SubmitResult{Ack: ack}, nil }
	enqueue(t, f, "doc-1", entity.JobTypeSendDocument)

	require.NoError(t, f.proc.Process(context.Background(), f.claimNext(t)))

	doc := f.document(t, "doc-1")
	assert.Equal(t, entity.DocumentStatusRejected, doc.Status)
	assert.Equal(t, "2335", doc.RemoteCode)
	job := f.latestJob(t, "doc-1")
	assert.Equal(t, entity.JobStatusDone, job.Status)
	assert.Equal(t, 0, job.Attempts)

	// No queda nada elegible aunque pase el tiempo.
	f.clk.Advance(24 * time.Hour)
	list, err := f.db.Jobs().ListClaimable(context.Background(), f.clk.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	resp, err := f.uc.Enqueue(context.Background(), testStoreID, "doc-1", "user-1", dto.EnqueueSubmissionRequest{})
	require.NoError(t, err)
	assert.Equal(t, dto.SignalAlreadyDone, resp.Signal)
	assert.Equal(t, job.ID, resp.JobID)

	submits, _, _ := f.submitter.calls()
	assert.Equal(t, 1, submits)
}

// Un fault con código de negocio llega sin CDR: SUNAT recibió el comprobante y lo rechazó.
func TestProcess_RechazoPorFault(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	f.submitter.submit = func(string) (*infrasunat.SubmitResult, error) {
		return nil, &infrasunat.RemoteFault{Op: "sendBill", Code: "1033", Message: "El comprobante fue registrado previamente con otros datos"}
	}
	enqueue(t, f, "doc-1", entity.JobTypeSendDocument)

	require.NoError(t, f.proc.Process(context.Background(), f.claimNext(t)))

	doc := f.document(t, "doc-1")
	assert.Equal(t, entity.DocumentStatusRejected, doc.Status)
	assert.Equal(t, "1033", doc.RemoteCode)
	assert.Contains(t, doc.RemoteMessage, "registrado previamente")
	require.NotNil(t, doc.RemoteRespondedAt)
	assert.Empty(t, doc.AckContainer)

	job := f.latestJob(t, "doc-1")
	assert.Equal(t, entity.JobStatusDone, job.Status)
	assert.Equal(t, 0, job.Attempts)
	assert.Equal(t, []entity.AuditEventType{entity.AuditQueued, entity.AuditRejected}, f.auditTypes(t, "doc-1"))

	resp, err := f.uc.Enqueue(context.Background(), testStoreID, "doc-1", "user-1", dto.EnqueueSubmissionRequest{})
	require.NoError(t, err)
	assert.Equal(t, dto.SignalAlreadyDone, resp.Signal)
}

// Escenario: timeouts consecutivos recorren la tabla 1/5/15/60/120 y luego FAILED.
func TestProcess_TimeoutsAgotanLaTabla(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	f.submitter.submit = func(string) (*infrasunat.SubmitResult, error) { return nil, timeoutErr() }
	enqueue(t, f, "doc-1", entity.JobTypeSendDocument)
	ctx := context.Background()

	expected := []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute, 60 * time.Minute, 120 * time.Minute}
	var scheduled time.Duration
	for i, delay := range expected {
		now := f.clk.Now()
		require.NoError(t, f.proc.Process(ctx, f.claimNext(t)))

		job := f.latestJob(t, "doc-1")
		assert.Equal(t, i+1, job.Attempts, "attempts sube exactamente en 1")
		assert.Equal(t, entity.JobStatusQueued, job.Status)
		assert.Equal(t, now.Add(delay), job.NextRunAt)
		assert.NotEmpty(t, job.LastError)
		assert.Nil(t, job.LeaseExpiresAt)
		assert.Equal(t, entity.DocumentStatusSigned, f.document(t, "doc-1").Status)

		scheduled += delay
		f.clk.Advance(delay)
	}
	assert.Equal(t, 201*time.Minute, scheduled)
	assert.Equal(t, sunat.TotalBackoff(), scheduled)

	// El siguiente fallo supera el tope.
	require.NoError(t, f.proc.Process(ctx, f.claimNext(t)))
	job := f.latestJob(t, "doc-1")
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Equal(t, sunat.MaxAttempts+1, job.Attempts)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, entity.DocumentStatusError, f.document(t, "doc-1").Status)

	f.clk.Advance(24 * time.Hour)
	list, err := f.db.Jobs().ListClaimable(ctx, f.clk.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, list, "un job FAILED nunca vuelve a QUEUED")

	types := f.auditTypes(t, "doc-1")
	assert.Equal(t, entity.AuditFailedTerminal, types[len(types)-1])
}

// Escenario: ticket → "en proceso" → reintento → aceptado, sin reenviar el resumen.
func TestProcess_TicketEnProcesoLuegoAceptado(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{PollInterval: 3 * time.Second, PollMaxWait: 0})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	ack := cdr(t, "0", "El Resumen diario ha sido aceptado")
	polls := 0
	f.submitter.batch = func(string) (string, error) { return "1718000000123", nil }
	f.submitter.poll = func(ticket string) (*infrasunat.PollResult, error) {
		assert.Equal(t, "1718000000123", ticket)
		polls++
		if polls == 1 {
			return &infrasunat.PollResult{StatusCode: "98", Processing: true}, nil
		}
		return &infrasunat.PollResult{StatusCode: "0", Ack: ack}, nil
	}
	enqueue(t, f, "doc-1", entity.JobTypeSendSummary)
	ctx := context.Background()

	require.NoError(t, f.proc.Process(ctx, f.claimNext(t)))
	doc := f.document(t, "doc-1")
	assert.Equal(t, entity.DocumentStatusSent, doc.Status)
	assert.Equal(t, "1718000000123", doc.RemoteTicket)
	job := f.latestJob(t, "doc-1")
	assert.Equal(t, entity.JobStatusQueued, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, start.Add(time.Minute), job.NextRunAt)

	f.clk.Advance(time.Minute)
	require.NoError(t, f.proc.Process(ctx, f.claimNext(t)))

	assert.Equal(t, entity.DocumentStatusAccepted, f.document(t, "doc-1").Status)
	assert.Equal(t, entity.JobStatusDone, f.latestJob(t, "doc-1").Status)
	_, batches, pollCalls := f.submitter.calls()
	assert.Equal(t, 1, batches, "el resumen se envía una sola vez")
	assert.Equal(t, 2, pollCalls)
	assert.Equal(t, []string{testRUC + "-RC-F001-1.zip"}, f.submitter.zipNames)
}

func TestProcess_TicketEsperaCooperativa(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{PollInterval: 3 * time.Second, PollMaxWait: 30 * time.Second})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	ack := cdr(t, "0", "aceptado")
	polls := 0
	f.submitter.submit = func(string) (*infrasunat.SubmitResult, error) { return &infrasunat.SubmitResult{Ticket: "T-9"}, nil }
	f.submitter.poll = func(string) (*infrasunat.PollResult, error) {
		polls++
		if polls < 3 {
			return &infrasunat.PollResult{StatusCode: "98", Processing: true}, nil
		}
		return &infrasunat.PollResult{StatusCode: "0", Ack: ack}, nil
	}
	enqueue(t, f, "doc-1", entity.JobTypeSendDocument)
	job := f.claimNext(t)

	done := make(chan error, 1)
	go func() { done <- f.proc.Process(context.Background(), job) }()

	for i := 0; i < 2; i++ {
		require.Eventually(t, func() bool { return f.clk.Pending() == 1 }, time.Second, time.Millisecond)
		f.clk.Advance(3 * time.Second)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Process no terminó")
	}
	assert.Equal(t, entity.DocumentStatusAccepted, f.document(t, "doc-1").Status)
	assert.Equal(t, 3, polls)
}

// Apagado del worker durante la espera del ticket: el job vuelve a la cola sin consumir
// intento y el siguiente claim retoma la consulta sin reenviar.
func TestProcess_ApagadoDuranteTicketNoConsumeIntento(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{PollInterval: 3 * time.Second, PollMaxWait: 30 * time.Second})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	ack := cdr(t, "0", "aceptado")
	processing := true
	f.submitter.submit = func(string) (*infrasunat.SubmitResult, error) { return &infrasunat.SubmitResult{Ticket: "T-7"}, nil }
	f.submitter.poll = func(string) (*infrasunat.PollResult, error) {
		if processing {
			return &infrasunat.PollResult{StatusCode: "98", Processing: true}, nil
		}
		return &infrasunat.PollResult{StatusCode: "0", Ack: ack}, nil
	}
	enqueue(t, f, "doc-1", entity.JobTypeSendDocument)
	job := f.claimNext(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.proc.Process(ctx, job) }()

	require.Eventually(t, func() bool { return f.clk.Pending() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Process no terminó")
	}

	doc := f.document(t, "doc-1")
	assert.Equal(t, entity.DocumentStatusSent, doc.Status)
	assert.Equal(t, "T-7", doc.RemoteTicket)

	got := f.latestJob(t, "doc-1")
	assert.Equal(t, entity.JobStatusQueued, got.Status)
	assert.Equal(t, 0, got.Attempts)
	assert.Equal(t, start, got.NextRunAt)
	assert.Empty(t, got.LeaseOwner)

	processing = false
	require.NoError(t, f.proc.Process(context.Background(), f.claimNext(t)))
	assert.Equal(t, entity.DocumentStatusAccepted, f.document(t, "doc-1").Status)
	submits, _, _ := f.submitter.calls()
	assert.Equal(t, 1, submits, "el ticket se retoma, no se reenvía")
}

func TestProcess_FaultDeCredencialesEsFatal(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	f.submitter.submit = func(string) (*infrasunat.SubmitResult, error) { return nil, credentialFault() }
	enqueue(t, f, "doc-1", entity.JobTypeSendDocument)

	require.NoError(t, f.proc.Process(context.Background(), f.claimNext(t)))

	job := f.latestJob(t, "doc-1")
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Equal(t, 0, job.Attempts, "un fatal no consume la tabla de reintentos")
	assert.Equal(t, sunat.GenericFailureCode, job.LastError)

	doc := f.document(t, "doc-1")
	assert.Equal(t, entity.DocumentStatusError, doc.Status)
	assert.Equal(t, sunat.GenericFailureCode, doc.RemoteCode)

	events, err := f.db.Audit().ListByDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	for _, ev := range events {
		assert.False(t, strings.Contains(ev.Message, testPassword))
	}
}

func TestProcess_FaultTransitorioYClaveSaneada(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	f.submitter.submit = func(string) (*infrasunat.SubmitResult, error) {
		return nil, &infrasunat.TransportError{Op: "sendBill", StatusCode: 503, Err: errors.New("proxy rechazó " + testPassword)}
	}
	enqueue(t, f, "doc-1", entity.JobTypeSendDocument)

	require.NoError(t, f.proc.Process(context.Background(), f.claimNext(t)))
	job := f.latestJob(t, "doc-1")
	assert.Equal(t, entity.JobStatusQueued, job.Status)
	assert.NotContains(t, job.LastError, testPassword)
	assert.Contains(t, job.LastError, "***")
}

func TestProcess_CDRCorruptoEsTransitorio(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	f.submitter.submit = func(string) (*infrasunat.SubmitResult, error) {
		return &infrasunat.SubmitResult{Ack: []byte("no es un zip")}, nil
	}
	enqueue(t, f, "doc-1", entity.JobTypeSendDocument)

	require.NoError(t, f.proc.Process(context.Background(), f.claimNext(t)))
	job := f.latestJob(t, "doc-1")
	assert.Equal(t, entity.JobStatusQueued, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, entity.DocumentStatusSent, f.document(t, "doc-1").Status, "SUNAT ya recibió el ZIP")
}

func TestProcess_LeasePerdido(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	enqueue(t, f, "doc-1", entity.JobTypeSendDocument)
	job := f.claimNext(t)

	// Mientras el envío tarda, el lease vence y otro worker reclama el job.
	f.submitter.submit = func(string) (*infrasunat.SubmitResult, error) {
		later := f.clk.Advance(6 * time.Minute)
		other, _ := f.db.Jobs().GetByID(context.Background(), job.ID)
		ok, err := f.db.Jobs().Claim(context.Background(), other, "host/2/worker-b", later, later.Add(5*time.Minute))
		require.NoError(t, err)
		require.True(t, ok)
		return nil, timeoutErr()
	}

	err := f.proc.Process(context.Background(), job)
	assert.ErrorIs(t, err, domain.ErrLeaseLost)

	stored := f.latestJob(t, "doc-1")
	assert.Equal(t, entity.JobStatusClaimed, stored.Status)
	assert.Equal(t, "host/2/worker-b", stored.LeaseOwner)
	assert.Equal(t, 0, stored.Attempts, "el resultado del dueño anterior no se aplica")
}

func TestProcess_DocumentoYaResuelto(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	enqueue(t, f, "doc-1", entity.JobTypeSendDocument)
	ctx := context.Background()

	doc := f.document(t, "doc-1")
	doc.Status = entity.DocumentStatusSent
	require.NoError(t, f.db.Documents().UpdateSubmission(ctx, doc, entity.DocumentStatusSigned))
	doc.Status = entity.DocumentStatusAccepted
	require.NoError(t, f.db.Documents().UpdateSubmission(ctx, doc, entity.DocumentStatusSent))

	require.NoError(t, f.proc.Process(ctx, f.claimNext(t)))
	assert.Equal(t, entity.JobStatusDone, f.latestJob(t, "doc-1").Status)
	submits, _, _ := f.submitter.calls()
	assert.Zero(t, submits)
}

func TestProcess_TiendaInexistente(t *testing.T) {
	f := newFixture(t, billing.ProcessorConfig{})
	f.seedDocument(t, "doc-1", entity.DocumentStatusSigned)
	enqueue(t, f, "doc-1", entity.JobTypeSendDocument)
	job := f.claimNext(t)
	job.StoreID = "tienda-fantasma"

	require.NoError(t, f.proc.Process(context.Background(), job))
	assert.Equal(t, entity.JobStatusFailed, f.latestJob(t, "doc-1").Status)
	assert.Equal(t, entity.DocumentStatusError, f.document(t, "doc-1").Status)
}
