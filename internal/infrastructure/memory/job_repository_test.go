package memory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/memory"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func queuedJob(id, docID string, runAt time.Time) *entity.SubmissionJob {
	return &entity.SubmissionJob{
		ID: id, DocumentID: docID, StoreID: "store-1",
		JobType: entity.JobTypeSendDocument, Status: entity.JobStatusQueued,
		NextRunAt: runAt, CreatedAt: runAt, UpdatedAt: runAt,
	}
}

func TestJobRepo_UnJobActivoPorDocumento(t *testing.T) {
	repo := memory.NewDB().Jobs()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, queuedJob("j1", "doc-1", t0)))
	err := repo.Create(ctx, queuedJob("j2", "doc-1", t0))
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	require.NoError(t, repo.Create(ctx, queuedJob("j3", "doc-2", t0)), "otro documento no colisiona")
}

func TestJobRepo_ClaimConcurrente_UnSoloGanador(t *testing.T) {
	repo := memory.NewDB().Jobs()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, queuedJob("j1", "doc-1", t0)))

	const workers = 16
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Cada worker lee la misma fila antes de intentar el claim.
			candidates, err := repo.ListClaimable(ctx, t0, 10)
			if err != nil || len(candidates) == 0 {
				return
			}
			ok, err := repo.Claim(ctx, candidates[0], "worker-"+string(rune('a'+i)), t0, t0.Add(5*time.Minute))
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	job, err := repo.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusClaimed, job.Status)
}

func TestJobRepo_LeaseVencidoEsReclamable(t *testing.T) {
	repo := memory.NewDB().Jobs()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, queuedJob("j1", "doc-1", t0)))

	job, _ := repo.GetByID(ctx, "j1")
	ok, err := repo.Claim(ctx, job, "worker-a", t0, t0.Add(5*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	// Lease vigente: no aparece como elegible.
	list, err := repo.ListClaimable(ctx, t0.Add(4*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	later := t0.Add(6 * time.Minute)
	list, err = repo.ListClaimable(ctx, later, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	ok, err = repo.Claim(ctx, list[0], "worker-b", later, later.Add(5*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "worker-b", list[0].LeaseOwner)

	// El dueño original ya no puede liberar.
	job.Status = entity.JobStatusDone
	err = repo.Release(ctx, job, "worker-a")
	assert.ErrorIs(t, err, domain.ErrLeaseLost)
}

func TestJobRepo_ClaimConLecturaVieja(t *testing.T) {
	repo := memory.NewDB().Jobs()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, queuedJob("j1", "doc-1", t0)))

	stale, _ := repo.GetByID(ctx, "j1")
	fresh, _ := repo.GetByID(ctx, "j1")
	ok, err := repo.Claim(ctx, fresh, "worker-a", t0, t0.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Claim(ctx, stale, "worker-b", t0, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "la fila ya no coincide con lo leído")
}

func TestJobRepo_ListClaimableOrdenYLimite(t *testing.T) {
	repo := memory.NewDB().Jobs()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, queuedJob("tarde", "d1", t0.Add(2*time.Minute))))
	require.NoError(t, repo.Create(ctx, queuedJob("temprano", "d2", t0)))
	require.NoError(t, repo.Create(ctx, queuedJob("medio", "d3", t0.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, queuedJob("futuro", "d4", t0.Add(time.Hour))))

	list, err := repo.ListClaimable(ctx, t0.Add(5*time.Minute), 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "temprano", list[0].ID)
	assert.Equal(t, "medio", list[1].ID)
}

func TestJobRepo_ReleaseYPurga(t *testing.T) {
	repo := memory.NewDB().Jobs()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, queuedJob("j1", "doc-1", t0)))
	job, _ := repo.GetByID(ctx, "j1")
	ok, err := repo.Claim(ctx, job, "w", t0, t0.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	done := t0.Add(time.Second)
	job.Status = entity.JobStatusDone
	job.CompletedAt = &done
	require.NoError(t, repo.Release(ctx, job, "w"))
	assert.Empty(t, job.LeaseOwner)
	assert.Nil(t, job.LeaseExpiresAt)

	// Documento liberado: admite un nuevo job.
	require.NoError(t, repo.Create(ctx, queuedJob("j2", "doc-1", t0)))
	latest, err := repo.GetLatestByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "j2", latest.ID)

	n, err := repo.DeleteFinishedBefore(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	gone, _ := repo.GetByID(ctx, "j1")
	assert.Nil(t, gone)
}

func TestDB_RunSubmissionRevierteEnError(t *testing.T) {
	db := memory.NewDB()
	ctx := context.Background()
	doc := &entity.ElectronicDocument{ID: "doc-1", StoreID: "s", Series: "F001", Number: 1, Status: entity.DocumentStatusSigned}
	require.NoError(t, db.Documents().Create(ctx, doc))

	boom := errors.New("boom")
	err := db.RunSubmission(ctx, func(docs repository.DocumentRepository, jobs repository.JobRepository) error {
		doc.Status = entity.DocumentStatusSent
		if err := docs.UpdateSubmission(ctx, doc, entity.DocumentStatusSigned); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := db.Documents().GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusSigned, got.Status)
}

func TestDB_RunSubmissionConservaEscriturasAjenas(t *testing.T) {
	db := memory.NewDB()
	ctx := context.Background()
	require.NoError(t, db.Jobs().Create(ctx, queuedJob("j1", "doc-1", t0)))

	boom := errors.New("boom")
	err := db.RunSubmission(ctx, func(_ repository.DocumentRepository, jobs repository.JobRepository) error {
		// Otro worker reclama j1 fuera de la transacción mientras ésta sigue abierta.
		seen, _ := db.Jobs().GetByID(ctx, "j1")
		ok, err := db.Jobs().Claim(ctx, seen, "worker-b", t0, t0.Add(5*time.Minute))
		require.NoError(t, err)
		require.True(t, ok)

		// La transacción sí escribe su propio job, que debe desaparecer.
		if err := jobs.Create(ctx, queuedJob("j2", "doc-2", t0)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	j1, err := db.Jobs().GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusClaimed, j1.Status)
	assert.Equal(t, "worker-b", j1.LeaseOwner)

	j2, err := db.Jobs().GetByID(ctx, "j2")
	require.NoError(t, err)
	assert.Nil(t, j2, "el job creado dentro de la transacción se revierte")

	list, err := db.Jobs().ListClaimable(ctx, t0, 10)
	require.NoError(t, err)
	assert.Empty(t, list, "j1 sigue con lease vigente: nadie más puede reclamarlo")

	stale := queuedJob("j1", "doc-1", t0)
	ok, err := db.Jobs().Claim(ctx, stale, "worker-c", t0, t0.Add(5*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDB_RunSubmissionRevierteReleaseEnError(t *testing.T) {
	db := memory.NewDB()
	ctx := context.Background()
	require.NoError(t, db.Jobs().Create(ctx, queuedJob("j1", "doc-1", t0)))
	job, _ := db.Jobs().GetByID(ctx, "j1")
	ok, err := db.Jobs().Claim(ctx, job, "w", t0, t0.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	boom := errors.New("boom")
	err = db.RunSubmission(ctx, func(_ repository.DocumentRepository, jobs repository.JobRepository) error {
		job.Status = entity.JobStatusDone
		if err := jobs.Release(ctx, job, "w"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := db.Jobs().GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusClaimed, got.Status)
	assert.Equal(t, "w", got.LeaseOwner)
}

func TestDocumentRepo_UpdateSubmissionConflicto(t *testing.T) {
	repo := memory.NewDB().Documents()
	ctx := context.Background()
	doc := &entity.ElectronicDocument{ID: "doc-1", StoreID: "s", Series: "F001", Number: 1, Status: entity.DocumentStatusSigned}
	require.NoError(t, repo.Create(ctx, doc))

	doc.Status = entity.DocumentStatusAccepted
	err := repo.UpdateSubmission(ctx, doc, entity.DocumentStatusSent)
	assert.ErrorIs(t, err, domain.ErrConflict)

	dup := *doc
	dup.ID = "doc-2"
	assert.ErrorIs(t, repo.Create(ctx, &dup), domain.ErrDuplicate, "serie-número único por tienda")
}
