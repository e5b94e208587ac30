package billing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/billing"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/audit"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/memory"
	infrasunat "github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/sunat"
	"github.com/Cristhianmcc/marketPOS-sub004/pkg/clock"
	pkgsunat "github.com/Cristhianmcc/marketPOS-sub004/pkg/sunat"
)

const (
	testStoreID  = "store-1"
	testRUC      = "20100066603"
	testPassword = "s3cr3t-sol"
	testOwner    = "host/1/worker-a"
)

var start = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

// scriptedSubmitter Submitter falso con respuestas programables por test.
type scriptedSubmitter struct {
	mu sync.Mutex

	submit func(zipName string) (*infrasunat.SubmitResult, error)
	batch  func(zipName string) (string, error)
	poll   func(ticket string) (*infrasunat.PollResult, error)

	submitCalls int
	batchCalls  int
	pollCalls   int
	zipNames    []string
	creds       []infrasunat.Credentials
}

func (s *scriptedSubmitter) Submit(_ context.Context, creds infrasunat.Credentials, zipName string, _ []byte) (*infrasunat.SubmitResult, error) {
	s.mu.Lock()
	s.submitCalls++
	s.zipNames = append(s.zipNames, zipName)
	s.creds = append(s.creds, creds)
	fn := s.submit
	s.mu.Unlock()
	return fn(zipName)
}

func (s *scriptedSubmitter) SubmitBatch(_ context.Context, creds infrasunat.Credentials, zipName string, _ []byte) (string, error) {
	s.mu.Lock()
	s.batchCalls++
	s.zipNames = append(s.zipNames, zipName)
	s.creds = append(s.creds, creds)
	fn := s.batch
	s.mu.Unlock()
	return fn(zipName)
}

func (s *scriptedSubmitter) PollTicket(_ context.Context, _ infrasunat.Credentials, ticket string) (*infrasunat.PollResult, error) {
	s.mu.Lock()
	s.pollCalls++
	fn := s.poll
	s.mu.Unlock()
	return fn(ticket)
}

func (s *scriptedSubmitter) calls() (submit, batch, poll int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitCalls, s.batchCalls, s.pollCalls
}

// credentialFault fault de autenticación; el mensaje incluye la clave para verificar
// que nunca llega a lastError ni a la auditoría.
func credentialFault() error {
	return &infrasunat.RemoteFault{Op: "sendBill", Code: "0102", Message: "Usuario o contraseña incorrectos (" + testPassword + ")"}
}

// cdr arma un CDR real con el código indicado.
func cdr(t *testing.T, code, desc string) []byte {
	t.Helper()
	ack, err := infrasunat.NewCDRArchive(testRUC+"-01-F001-1.zip", "F001-1", code, desc)
	require.NoError(t, err)
	return ack
}

type fixture struct {
	db        *memory.DB
	clk       *clock.Manual
	submitter *scriptedSubmitter
	uc        *billing.SubmissionUseCase
	proc      *billing.SubmissionProcessor
}

func newFixture(t *testing.T, cfg billing.ProcessorConfig) *fixture {
	t.Helper()
	db := memory.NewDB()
	db.PutStore(&entity.Store{
		ID: testStoreID, Name: "Bodega Central", RUC: testRUC,
		SolUser: "MODDATOS", SolPassword: testPassword, Status: "active",
	})
	clk := clock.NewManual(start)
	sub := &scriptedSubmitter{}
	codes := pkgsunat.DefaultCodeTable()
	rec := audit.NewRepositoryRecorder(db.Audit())

	return &fixture{
		db:        db,
		clk:       clk,
		submitter: sub,
		uc:        billing.NewSubmissionUseCase(db.Documents(), db.Jobs(), db, rec, codes, clk, zerolog.Nop()),
		proc:      billing.NewSubmissionProcessor(db.Documents(), db.Stores(), db, sub, rec, nil, codes, clk, cfg, zerolog.Nop()),
	}
}

func (f *fixture) seedDocument(t *testing.T, id string, status entity.DocumentStatus) *entity.ElectronicDocument {
	t.Helper()
	doc := &entity.ElectronicDocument{
		ID: id, StoreID: testStoreID, DocType: entity.DocTypeInvoiceA,
		Series: "F001", Number: 1,
		CustomerDocType: "6", CustomerDocNumber: "20123456786", CustomerName: "Cliente SAC",
		Currency: "PEN", NetTotal: decimal.RequireFromString("100.00"),
		TaxTotal: decimal.RequireFromString("18.00"), GrandTotal: decimal.RequireFromString("118.00"),
		SignedBody: []byte(`<Invoice><ID>F001-1</ID></Invoice>`), Hash: "abc=",
		Status: status, CreatedAt: start, UpdatedAt: start,
	}
	require.NoError(t, f.db.Documents().Create(context.Background(), doc))
	return doc
}

// claimNext reclama el siguiente job elegible como lo haría el worker.
func (f *fixture) claimNext(t *testing.T) *entity.SubmissionJob {
	t.Helper()
	ctx := context.Background()
	now := f.clk.Now()
	list, err := f.db.Jobs().ListClaimable(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, list, 1, "se esperaba un job elegible")
	ok, err := f.db.Jobs().Claim(ctx, list[0], testOwner, now, now.Add(5*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	return list[0]
}

func (f *fixture) document(t *testing.T, id string) *entity.ElectronicDocument {
	t.Helper()
	doc, err := f.db.Documents().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, doc)
	return doc
}

func (f *fixture) latestJob(t *testing.T, docID string) *entity.SubmissionJob {
	t.Helper()
	job, err := f.db.Jobs().GetLatestByDocument(context.Background(), docID)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

func (f *fixture) auditTypes(t *testing.T, docID string) []entity.AuditEventType {
	t.Helper()
	events, err := f.db.Audit().ListByDocument(context.Background(), docID)
	require.NoError(t, err)
	out := make([]entity.AuditEventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}
