// Package memory implementa los repositorios del pipeline en memoria. Se usa en tests y
// con DB_DRIVER=memory para levantar el worker sin PostgreSQL.
package memory

import (
	"context"
	"sync"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
)

// DB almacén compartido por los repositorios en memoria. Las entidades se copian al
// entrar y salir para que los callers no compartan punteros con el almacén.
type DB struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	docs   map[string]entity.ElectronicDocument
	jobs   map[string]entity.SubmissionJob
	stores map[string]entity.Store
	audit  []entity.AuditEvent
	seq    int64 // orden de inserción de jobs
	order  map[string]int64

	pingErr error
}

// NewDB construye un almacén vacío.
func NewDB() *DB {
	return &DB{
		docs:   make(map[string]entity.ElectronicDocument),
		jobs:   make(map[string]entity.SubmissionJob),
		stores: make(map[string]entity.Store),
		order:  make(map[string]int64),
	}
}

// Documents repositorio de comprobantes.
func (db *DB) Documents() *DocumentRepo { return &DocumentRepo{db: db} }

// Jobs repositorio de jobs.
func (db *DB) Jobs() *JobRepo { return &JobRepo{db: db} }

// Stores repositorio de tiendas.
func (db *DB) Stores() *StoreRepo { return &StoreRepo{db: db} }

// Audit repositorio de auditoría.
func (db *DB) Audit() *AuditRepo { return &AuditRepo{db: db} }

// PutStore registra una tienda (seed de tests y modo dev).
func (db *DB) PutStore(s *entity.Store) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.stores[s.ID] = *s
}

// Ping simula el health check de la persistencia.
func (db *DB) Ping(_ context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.pingErr
}

// SetPingError fuerza el resultado de Ping (tests de health check).
func (db *DB) SetPingError(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.pingErr = err
}

// RunSubmission ejecuta fn con repositorios ligados a la transacción. Las transacciones
// se serializan entre sí; si fn falla, solo las filas que fn escribió vuelven a su imagen
// previa. Las escrituras de otros callers durante la transacción se conservan.
func (db *DB) RunSubmission(ctx context.Context, fn func(docs repository.DocumentRepository, jobs repository.JobRepository) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	tx := newTxLog()
	if err := fn(&DocumentRepo{db: db, tx: tx}, &JobRepo{db: db, tx: tx}); err != nil {
		db.mu.Lock()
		tx.rollback(db)
		db.mu.Unlock()
		return err
	}
	return nil
}

// ── Journal de transacción ────────────────────────────────────────────────────

type docImage struct {
	row     entity.ElectronicDocument
	existed bool
}

type jobImage struct {
	row     entity.SubmissionJob
	seq     int64
	existed bool
}

// txLog imágenes previas de las filas escritas dentro de una transacción. Se guarda solo
// la primera imagen de cada fila. Un *txLog nil (repos fuera de transacción) no registra nada.
type txLog struct {
	docs map[string]docImage
	jobs map[string]jobImage
}

func newTxLog() *txLog {
	return &txLog{docs: make(map[string]docImage), jobs: make(map[string]jobImage)}
}

// saveDoc registra la imagen previa del documento. Se llama con db.mu tomado.
func (t *txLog) saveDoc(db *DB, id string) {
	if t == nil {
		return
	}
	if _, ok := t.docs[id]; ok {
		return
	}
	row, existed := db.docs[id]
	t.docs[id] = docImage{row: cloneDocument(row), existed: existed}
}

// saveJob registra la imagen previa del job. Se llama con db.mu tomado.
func (t *txLog) saveJob(db *DB, id string) {
	if t == nil {
		return
	}
	if _, ok := t.jobs[id]; ok {
		return
	}
	row, existed := db.jobs[id]
	t.jobs[id] = jobImage{row: cloneJob(row), seq: db.order[id], existed: existed}
}

// rollback restaura las filas registradas. Se llama con db.mu tomado.
func (t *txLog) rollback(db *DB) {
	for id, img := range t.docs {
		if img.existed {
			db.docs[id] = img.row
		} else {
			delete(db.docs, id)
		}
	}
	for id, img := range t.jobs {
		if img.existed {
			db.jobs[id] = img.row
			db.order[id] = img.seq
		} else {
			delete(db.jobs, id)
			delete(db.order, id)
		}
	}
}
