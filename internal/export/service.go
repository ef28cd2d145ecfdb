package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"loan-manager/internal/core"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Status tracks a report being generated in the background.
type Status struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	CompanyCode   string    `json:"company_code"`
	LoanReference string    `json:"loan_reference"`
	Progress      float64   `json:"progress"`
	FileKey       string    `json:"file_key,omitempty"`
	FileURL       *string   `json:"file_url"`
	Error         *string   `json:"error"`
	Created       time.Time `json:"created_at"`
}

// Done reports whether generation finished, successfully or not.
func (s *Status) Done() bool { return s.Progress >= 100 }

const (
	exportTTL = 20 * time.Minute
	linkTTL   = 15 * time.Minute

	scheduleExport = "schedule"
	xlsxType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// LoanReader is the part of the loan service exports need.
type LoanReader interface {
	GetLoan(ctx context.Context, companyCode, reference string) (*core.Loan, error)
}

// Service generates loan reports and keeps their status in Redis.
type Service struct {
	loans  LoanReader
	files  core.FileStore
	redis  *RedisClient
	logger *slog.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

func NewService(loans LoanReader, files core.FileStore, redis *RedisClient, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{loans: loans, files: files, redis: redis, logger: logger, now: time.Now}
}

// StartScheduleExport validates the loan, records a queued status and renders
// the schedule workbook in the background.
func (s *Service) StartScheduleExport(ctx context.Context, companyCode, reference string, columns []string) (*Status, error) {
	if s.redis == nil || s.files == nil {
		return nil, core.NewConfigurationError(core.ErrStorageNotConfigured, "report exports need redis and file storage")
	}
	loan, err := s.loans.GetLoan(ctx, companyCode, reference)
	if err != nil {
		return nil, err
	}
	if !loan.HasSchedule() {
		return nil, &core.StateGuardError{Err: core.ErrInvalidState, Msg: fmt.Sprintf("loan %s has no repayment schedule to export", reference)}
	}
	for _, c := range columns {
		if _, ok := scheduleColumns[c]; !ok {
			return nil, core.NewValidationError("columns", "unknown schedule column %q", c)
		}
	}

	st := &Status{
		ID:            "exports:" + uuid.NewString(),
		Type:          scheduleExport,
		CompanyCode:   companyCode,
		LoanReference: loan.Reference,
		Created:       s.now(),
	}
	if err := s.save(ctx, st); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runScheduleExport(context.Background(), *st, columns)
	}()
	return st, nil
}

func (s *Service) runScheduleExport(ctx context.Context, st Status, columns []string) {
	fail := func(err error) {
		msg := err.Error()
		st.Error = &msg
		st.Progress = 100
		s.logger.ErrorContext(ctx, "schedule export failed", "export", st.ID, "loan", st.LoanReference, "error", err)
		if err := s.save(ctx, &st); err != nil {
			s.logger.WarnContext(ctx, "failed to save export status", "export", st.ID, "error", err)
		}
	}

	loan, err := s.loans.GetLoan(ctx, st.CompanyCode, st.LoanReference)
	if err != nil {
		fail(err)
		return
	}
	data, err := BuildScheduleWorkbook(loan, columns)
	if err != nil {
		fail(err)
		return
	}

	st.Progress = 50
	if err := s.save(ctx, &st); err != nil {
		s.logger.WarnContext(ctx, "failed to save export status", "export", st.ID, "error", err)
	}

	key := fmt.Sprintf("%s/reports/%s/schedule_%s.xlsx", st.CompanyCode, st.LoanReference, st.Created.Format("20060102_150405"))
	if err := s.files.Put(ctx, key, xlsxType, data); err != nil {
		fail(fmt.Errorf("save export failed: %w", err))
		return
	}
	url, err := s.files.URL(ctx, key, linkTTL)
	if err != nil {
		fail(err)
		return
	}

	st.FileKey = key
	st.FileURL = &url
	st.Progress = 100
	if err := s.save(ctx, &st); err != nil {
		s.logger.WarnContext(ctx, "failed to save export status", "export", st.ID, "error", err)
		return
	}
	s.logger.InfoContext(ctx, "schedule export ready", "export", st.ID, "loan", st.LoanReference, "rows", len(loan.Repayments))
}

// Get returns the status of an export started for the company.
func (s *Service) Get(ctx context.Context, companyCode, id string) (*Status, error) {
	if s.redis == nil {
		return nil, core.NewConfigurationError(core.ErrStorageNotConfigured, "report exports need redis")
	}
	raw, err := s.redis.Get(ctx, id)
	if errors.Is(err, goredis.Nil) {
		return nil, core.NewNotFound("export", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load export %s: %w", id, err)
	}
	var st Status
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("failed to decode export %s: %w", id, err)
	}
	if st.CompanyCode != companyCode {
		return nil, core.NewNotFound("export", id)
	}
	return &st, nil
}

// List returns the exports of a loan that have not expired, newest first.
func (s *Service) List(ctx context.Context, companyCode, reference string) ([]Status, error) {
	if s.redis == nil {
		return nil, core.NewConfigurationError(core.ErrStorageNotConfigured, "report exports need redis")
	}
	index := loanExportsKey(companyCode, reference)
	ids, err := s.redis.SMembers(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports of %s: %w", reference, err)
	}

	out := make([]Status, 0, len(ids))
	for _, id := range ids {
		st, err := s.Get(ctx, companyCode, id)
		if errors.Is(err, core.ErrNotFound) {
			if err := s.redis.SRem(ctx, index, id); err != nil {
				s.logger.WarnContext(ctx, "failed to drop expired export", "export", id, "error", err)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}

// Wait blocks until every background export has finished.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) save(ctx context.Context, st *Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode export status: %w", err)
	}
	if err := s.redis.Set(ctx, st.ID, string(data), exportTTL); err != nil {
		return fmt.Errorf("failed to save export status: %w", err)
	}
	// The per-loan index lives as long as its newest export.
	index := loanExportsKey(st.CompanyCode, st.LoanReference)
	if err := s.redis.SAdd(ctx, index, st.ID); err != nil {
		return fmt.Errorf("failed to index export status: %w", err)
	}
	return s.redis.Expire(ctx, index, exportTTL)
}

func loanExportsKey(companyCode, reference string) string {
	return fmt.Sprintf("loan_exports:%s:%s", companyCode, reference)
}
