package metrics

import (
	"context"
	"time"

	infrasunat "github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/sunat"
)

var _ infrasunat.Submitter = (*instrumentedSubmitter)(nil)

type instrumentedSubmitter struct {
	next      infrasunat.Submitter
	collector *Collector
}

// InstrumentSubmitter envuelve el Submitter midiendo cada llamada al billService.
func (c *Collector) InstrumentSubmitter(next infrasunat.Submitter) infrasunat.Submitter {
	return &instrumentedSubmitter{next: next, collector: c}
}

func (s *instrumentedSubmitter) Submit(ctx context.Context, creds infrasunat.Credentials, zipName string, archive []byte) (*infrasunat.SubmitResult, error) {
	started := time.Now()
	res, err := s.next.Submit(ctx, creds, zipName, archive)
	s.collector.observe("sendBill", started, err)
	return res, err
}

func (s *instrumentedSubmitter) SubmitBatch(ctx context.Context, creds infrasunat.Credentials, zipName string, archive []byte) (string, error) {
	started := time.Now()
	ticket, err := s.next.SubmitBatch(ctx, creds, zipName, archive)
	s.collector.observe("sendSummary", started, err)
	return ticket, err
}

func (s *instrumentedSubmitter) PollTicket(ctx context.Context, creds infrasunat.Credentials, ticket string) (*infrasunat.PollResult, error) {
	started := time.Now()
	res, err := s.next.PollTicket(ctx, creds, ticket)
	s.collector.observe("getStatus", started, err)
	return res, err
}
