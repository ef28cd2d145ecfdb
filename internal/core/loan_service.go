package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// LoanService drives a loan through its lifecycle. Every operation runs in one
// transaction holding the loan's row lock; events are published after commit.
type LoanService interface {
	CreateLoan(ctx context.Context, companyCode string, in LoanInput) (*Loan, error)
	// UpdateLoan edits a draft, confirmed or pending loan and resyncs its terms from the loan type.
	// Switching the type of a confirmed loan adds document slots for the new requirements;
	// a pending loan keeps its type.
	UpdateLoan(ctx context.Context, companyCode, reference string, in LoanUpdate) (*Loan, error)
	GetLoan(ctx context.Context, companyCode, reference string) (*Loan, error)
	ListLoans(ctx context.Context, companyCode string, filter LoanFilter) ([]Loan, error)

	// Transitions
	Confirm(ctx context.Context, companyCode, reference string) (*Loan, error)
	RequestPending(ctx context.Context, companyCode, reference string) (*Loan, error)
	Approve(ctx context.Context, companyCode, reference string) (*Loan, error)
	// Decline is the direct action, allowed from draft through approved.
	Decline(ctx context.Context, companyCode, reference, reason string) (*Loan, error)
	// Reject is the rejection wizard path, allowed from pending only.
	Reject(ctx context.Context, companyCode, reference, reason string) (*Loan, error)
	Register(ctx context.Context, companyCode, reference string) (*Loan, error)
	Disburse(ctx context.Context, companyCode, reference string) (*Loan, error)
	RecomputeSchedule(ctx context.Context, companyCode, reference string) (*Loan, error)

	// Repayments
	MarkPaid(ctx context.Context, companyCode, reference string, sequence int) (*Repayment, error)
	// ConfirmRepayment is the payment wizard path: the loan must be disbursed.
	ConfirmRepayment(ctx context.Context, companyCode, reference string, sequence int) (*Repayment, error)
	UpdateRepayment(ctx context.Context, companyCode, reference string, sequence int, in RepaymentUpdate) (*Repayment, error)

	// Documents
	UploadDocument(ctx context.Context, companyCode, reference string, requirementID int, content []byte) (*LoanDocument, error)
}

// LoanServiceOption configures optional collaborators of the loan service.
type LoanServiceOption func(*loanService)

func WithEventPublisher(p EventPublisher) LoanServiceOption {
	return func(s *loanService) { s.events = p }
}

func WithFileStore(f FileStore) LoanServiceOption {
	return func(s *loanService) { s.files = f }
}

func WithDocumentGate(g DocumentGate) LoanServiceOption {
	return func(s *loanService) { s.gate = g }
}

func WithLogger(l *slog.Logger) LoanServiceOption {
	return func(s *loanService) { s.logger = l }
}

// WithClock replaces time.Now, used for creation dates and event timestamps.
func WithClock(now func() time.Time) LoanServiceOption {
	return func(s *loanService) { s.now = now }
}

type loanService struct {
	store  Store
	events EventPublisher
	files  FileStore
	gate   DocumentGate
	logger *slog.Logger
	now    func() time.Time
}

func NewLoanService(store Store, opts ...LoanServiceOption) LoanService {
	s := &loanService{
		store:  store,
		events: NopPublisher{},
		gate:   SlotDocumentGate{},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const (
	loanSequence     = "LOAN"
	documentSequence = "LOAN_DOCUMENT"
)

// ── Create / Update ──────────────────────────────────────────────────────────

func (s *loanService) CreateLoan(ctx context.Context, companyCode string, in LoanInput) (*Loan, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}

	var out *Loan
	err = s.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.Borrower(ctx, company.ID, in.BorrowerID); err != nil {
			return err
		}
		lt, err := tx.LoanType(ctx, company.ID, in.LoanTypeID)
		if err != nil {
			return err
		}

		loan := &Loan{
			CompanyID:  company.ID,
			BorrowerID: in.BorrowerID,
			LoanTypeID: lt.ID,
			Amount:     in.Amount.Round(2),
			Tenure:     in.Tenure,
			Terms:      DeriveTerms(*lt),
			Status:     LoanDraft,
			CreatedOn:  DateOnly(s.now()),
		}
		if err := checkBounds(loan, lt); err != nil {
			return err
		}

		n, err := tx.NextSequence(ctx, company.ID, loanSequence)
		if err != nil {
			return err
		}
		loan.Reference = fmt.Sprintf("LOAN%04d", n)

		if err := tx.InsertLoan(ctx, loan); err != nil {
			return err
		}
		out, err = tx.Loan(ctx, company.ID, loan.Reference)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "loan created", "company", companyCode, "loan", out.Reference, "amount", out.Amount.StringFixed(2))
	s.publish(ctx, LoanEvent{Type: EventLoanCreated, CompanyCode: companyCode, LoanReference: out.Reference, Status: out.Status, OccurredAt: s.now()})
	return out, nil
}

func (s *loanService) UpdateLoan(ctx context.Context, companyCode, reference string, in LoanUpdate) (*Loan, error) {
	return s.withLoan(ctx, companyCode, reference, func(ctx context.Context, tx Tx, company *Company, loan *Loan) ([]LoanEvent, error) {
		if loan.Status != LoanDraft && loan.Status != LoanConfirmed && loan.Status != LoanPending {
			return nil, stateErr(ErrIllegalEdit, "loan %s cannot be edited in status %s", loan.Reference, loan.Status)
		}

		if in.BorrowerID != nil {
			if _, err := tx.Borrower(ctx, company.ID, *in.BorrowerID); err != nil {
				return nil, err
			}
			loan.BorrowerID = *in.BorrowerID
		}
		typeChanged := in.LoanTypeID != nil && *in.LoanTypeID != loan.LoanTypeID
		if typeChanged {
			if loan.Status == LoanPending {
				return nil, stateErr(ErrIllegalEdit, "the loan type of %s cannot change once approval is requested", loan.Reference)
			}
			loan.LoanTypeID = *in.LoanTypeID
		}
		lt, err := tx.LoanType(ctx, company.ID, loan.LoanTypeID)
		if err != nil {
			return nil, err
		}

		before := struct {
			amount decimal.Decimal
			tenure int
			rate   decimal.Decimal
		}{loan.Amount, loan.Tenure, loan.InterestRatePercent}

		if in.Amount != nil {
			loan.Amount = in.Amount.Round(2)
		}
		if in.Tenure != nil {
			loan.Tenure = *in.Tenure
		}
		loan.Terms = DeriveTerms(*lt)
		if err := checkBounds(loan, lt); err != nil {
			return nil, err
		}

		changed := !before.amount.Equal(loan.Amount) || before.tenure != loan.Tenure || !before.rate.Equal(loan.InterestRatePercent)
		if changed && loan.HasSchedule() {
			loan.RepaymentsDirty = true
		}
		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return nil, err
		}

		// A confirmed loan needs slots for the requirements of its new type.
		if typeChanged && loan.Status == LoanConfirmed {
			reqs, err := requirementsOf(ctx, tx, company.ID, lt)
			if err != nil {
				return nil, err
			}
			loan.RequiredDocuments = reqs
			return nil, s.instantiateSlots(ctx, tx, company, loan)
		}
		return nil, nil
	})
}

func requirementsOf(ctx context.Context, tx Tx, companyID int, lt *LoanType) ([]Requirement, error) {
	all, err := tx.Requirements(ctx, companyID)
	if err != nil {
		return nil, err
	}
	wanted := make(map[int]bool, len(lt.RequirementIDs))
	for _, id := range lt.RequirementIDs {
		wanted[id] = true
	}
	var out []Requirement
	for _, r := range all {
		if wanted[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

// checkBounds enforces 0 < amount ≤ maxAmount and 0 < tenure ≤ maxTenure.
func checkBounds(loan *Loan, lt *LoanType) error {
	if !loan.Amount.IsPositive() {
		return validationErr(ErrOutOfBounds, "amount", "loan amount must be greater than zero")
	}
	if loan.Amount.GreaterThan(lt.MaxAmount) {
		return validationErr(ErrOutOfBounds, "amount", "loan amount %s exceeds the maximum of %s for %s",
			loan.Amount.StringFixed(2), lt.MaxAmount.StringFixed(2), lt.Name)
	}
	if loan.Tenure <= 0 {
		return validationErr(ErrOutOfBounds, "tenure", "tenure must be greater than zero")
	}
	if loan.Tenure > lt.MaxTenure {
		return validationErr(ErrOutOfBounds, "tenure", "tenure %d exceeds the maximum of %d for %s", loan.Tenure, lt.MaxTenure, lt.Name)
	}
	return nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *loanService) GetLoan(ctx context.Context, companyCode, reference string) (*Loan, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.store.Loan(ctx, company.ID, reference)
}

func (s *loanService) ListLoans(ctx context.Context, companyCode string, filter LoanFilter) ([]Loan, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.store.Loans(ctx, company.ID, filter)
}

// ── Transitions ──────────────────────────────────────────────────────────────

func (s *loanService) Confirm(ctx context.Context, companyCode, reference string) (*Loan, error) {
	return s.withLoan(ctx, companyCode, reference, func(ctx context.Context, tx Tx, company *Company, loan *Loan) ([]LoanEvent, error) {
		if err := expectStatus(loan, "confirm", LoanDraft); err != nil {
			return nil, err
		}
		ev, err := s.moveTo(ctx, tx, company, loan, LoanConfirmed)
		if err != nil {
			return nil, err
		}
		if err := s.instantiateSlots(ctx, tx, company, loan); err != nil {
			return nil, err
		}
		return []LoanEvent{ev}, nil
	})
}

// instantiateSlots creates one pending document per required document that
// has no slot yet.
func (s *loanService) instantiateSlots(ctx context.Context, tx Tx, company *Company, loan *Loan) error {
	var slots []LoanDocument
	for _, req := range loan.RequiredDocuments {
		if _, ok := loan.Document(req.ID); ok {
			continue
		}
		n, err := tx.NextSequence(ctx, company.ID, documentSequence)
		if err != nil {
			return err
		}
		slots = append(slots, LoanDocument{
			LoanID:          loan.ID,
			RequirementID:   req.ID,
			RequirementName: req.Name,
			Mandatory:       req.Mandatory,
			Reference:       fmt.Sprintf("DOC%05d", n),
			Status:          DocumentPending,
		})
	}
	if len(slots) == 0 {
		return nil
	}
	return tx.InsertDocuments(ctx, slots)
}

func (s *loanService) RequestPending(ctx context.Context, companyCode, reference string) (*Loan, error) {
	return s.withLoan(ctx, companyCode, reference, func(ctx context.Context, tx Tx, company *Company, loan *Loan) ([]LoanEvent, error) {
		if err := expectStatus(loan, "request approval for", LoanConfirmed); err != nil {
			return nil, err
		}
		if err := checkScheduleFresh(loan); err != nil {
			return nil, err
		}
		for _, req := range loan.RequiredDocuments {
			if req.Mandatory && !s.gate.IsRequirementSatisfied(loan, req) {
				return nil, configErr(ErrMissingDocument, "mandatory document %q must be uploaded before requesting loan %s", req.Name, loan.Reference)
			}
		}
		ev, err := s.moveTo(ctx, tx, company, loan, LoanPending)
		return []LoanEvent{ev}, err
	})
}

func (s *loanService) Approve(ctx context.Context, companyCode, reference string) (*Loan, error) {
	return s.withLoan(ctx, companyCode, reference, func(ctx context.Context, tx Tx, company *Company, loan *Loan) ([]LoanEvent, error) {
		if err := expectStatus(loan, "approve", LoanPending); err != nil {
			return nil, err
		}
		if err := checkScheduleFresh(loan); err != nil {
			return nil, err
		}
		loan.DisburseAmount = loan.ComputeDisburseAmount()
		ev, err := s.moveTo(ctx, tx, company, loan, LoanApproved)
		return []LoanEvent{ev}, err
	})
}

func (s *loanService) Decline(ctx context.Context, companyCode, reference, reason string) (*Loan, error) {
	return s.decline(ctx, companyCode, reference, reason, "decline", LoanDraft, LoanConfirmed, LoanPending, LoanApproved)
}

func (s *loanService) Reject(ctx context.Context, companyCode, reference, reason string) (*Loan, error) {
	return s.decline(ctx, companyCode, reference, reason, "reject", LoanPending)
}

func (s *loanService) decline(ctx context.Context, companyCode, reference, reason, op string, from ...LoanStatus) (*Loan, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationErr(ErrInvalidInput, "reason", "a reason is required to %s a loan", op)
	}
	return s.withLoan(ctx, companyCode, reference, func(ctx context.Context, tx Tx, company *Company, loan *Loan) ([]LoanEvent, error) {
		if err := expectStatus(loan, op, from...); err != nil {
			return nil, err
		}
		loan.RejectionReason = reason
		ev, err := s.moveTo(ctx, tx, company, loan, LoanDeclined)
		return []LoanEvent{ev}, err
	})
}

func (s *loanService) Register(ctx context.Context, companyCode, reference string) (*Loan, error) {
	return s.withLoan(ctx, companyCode, reference, func(ctx context.Context, tx Tx, company *Company, loan *Loan) ([]LoanEvent, error) {
		if err := expectStatus(loan, "register", LoanApproved); err != nil {
			return nil, err
		}
		if err := checkSchedule(loan); err != nil {
			return nil, err
		}
		borrower, err := tx.Borrower(ctx, company.ID, loan.BorrowerID)
		if err != nil {
			return nil, err
		}

		engine := NewPostingEngine(tx.Ledger())
		spec, err := engine.BuildRegistration(ctx, company, loan, borrower)
		if err != nil {
			return nil, err
		}
		entryID, err := engine.Post(ctx, spec)
		if err != nil {
			return nil, err
		}
		loan.RegistrationEntryID = &entryID

		ev, err := s.moveTo(ctx, tx, company, loan, LoanRegistered)
		ev.EntryID = &entryID
		return []LoanEvent{ev}, err
	})
}

func (s *loanService) Disburse(ctx context.Context, companyCode, reference string) (*Loan, error) {
	return s.withLoan(ctx, companyCode, reference, func(ctx context.Context, tx Tx, company *Company, loan *Loan) ([]LoanEvent, error) {
		if err := expectStatus(loan, "disburse", LoanRegistered); err != nil {
			return nil, err
		}
		if err := checkSchedule(loan); err != nil {
			return nil, err
		}

		engine := NewPostingEngine(tx.Ledger())
		spec, err := engine.BuildDisbursement(ctx, company, loan)
		if err != nil {
			return nil, err
		}
		entryID, err := engine.Post(ctx, spec)
		if err != nil {
			return nil, err
		}
		loan.DisbursementEntryID = &entryID

		ev, err := s.moveTo(ctx, tx, company, loan, LoanDisbursed)
		ev.EntryID = &entryID
		return []LoanEvent{ev}, err
	})
}

func (s *loanService) RecomputeSchedule(ctx context.Context, companyCode, reference string) (*Loan, error) {
	return s.withLoan(ctx, companyCode, reference, func(ctx context.Context, tx Tx, company *Company, loan *Loan) ([]LoanEvent, error) {
		if err := expectStatus(loan, "recompute the schedule of", LoanDraft, LoanConfirmed, LoanPending); err != nil {
			return nil, err
		}
		schedule, err := ComputeSchedule(loan.Amount, loan.InterestRatePercent, loan.Tenure, loan.CreatedOn, loan.AmortizationMethod)
		if err != nil {
			return nil, err
		}
		if err := tx.ReplaceRepayments(ctx, loan.ID, RepaymentsFromSchedule(loan.ID, schedule)); err != nil {
			return nil, err
		}
		loan.RepaymentsDirty = false
		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return nil, err
		}

		s.logger.InfoContext(ctx, "schedule computed", "company", company.CompanyCode, "loan", loan.Reference,
			"method", loan.AmortizationMethod.String(), "installments", len(schedule))
		return []LoanEvent{{
			Type:          EventScheduleComputed,
			CompanyCode:   company.CompanyCode,
			LoanReference: loan.Reference,
			Status:        loan.Status,
			OccurredAt:    s.now(),
		}}, nil
	})
}

// ── Repayments ───────────────────────────────────────────────────────────────

func (s *loanService) MarkPaid(ctx context.Context, companyCode, reference string, sequence int) (*Repayment, error) {
	return s.pay(ctx, companyCode, reference, sequence, false)
}

func (s *loanService) ConfirmRepayment(ctx context.Context, companyCode, reference string, sequence int) (*Repayment, error) {
	return s.pay(ctx, companyCode, reference, sequence, true)
}

func (s *loanService) UpdateRepayment(ctx context.Context, companyCode, reference string, sequence int, in RepaymentUpdate) (*Repayment, error) {
	loan, err := s.GetLoan(ctx, companyCode, reference)
	if err != nil {
		return nil, err
	}
	rep, ok := loan.Repayment(sequence)
	if !ok {
		return nil, notFound("repayment", fmt.Sprintf("%s #%d", reference, sequence))
	}
	if err := in.CheckMutable(rep); err != nil {
		return nil, err
	}
	if in.EntryID != nil {
		return nil, stateErr(ErrIllegalEdit, "the entry of installment #%d is set by paying it", sequence)
	}
	if in.Status != nil && *in.Status == RepaymentPaid && rep.Status == RepaymentPending {
		return s.MarkPaid(ctx, companyCode, reference, sequence)
	}
	return rep, nil
}

func (s *loanService) pay(ctx context.Context, companyCode, reference string, sequence int, wizard bool) (*Repayment, error) {
	var paid Repayment
	_, err := s.withLoan(ctx, companyCode, reference, func(ctx context.Context, tx Tx, company *Company, loan *Loan) ([]LoanEvent, error) {
		rep, ok := loan.Repayment(sequence)
		if !ok {
			return nil, notFound("repayment", fmt.Sprintf("%s #%d", reference, sequence))
		}
		if wizard && (loan.Status != LoanDisbursed || rep.Status != RepaymentPending) {
			return nil, stateErr(ErrInvalidState, "only pending installments of disbursed loans can be paid (loan %s is %s, installment #%d is %s)",
				loan.Reference, loan.Status, rep.Sequence, rep.Status)
		}
		if rep.Status == RepaymentPaid {
			return nil, stateErr(ErrInvalidState, "installment #%d of loan %s is already paid", rep.Sequence, loan.Reference)
		}
		for _, prev := range loan.Repayments {
			if prev.Sequence < rep.Sequence && prev.Status == RepaymentPending {
				return nil, stateErr(ErrOutOfOrderPayment, "installment #%d cannot be paid while installment #%d is still pending",
					rep.Sequence, prev.Sequence)
			}
		}

		borrower, err := tx.Borrower(ctx, company.ID, loan.BorrowerID)
		if err != nil {
			return nil, err
		}
		engine := NewPostingEngine(tx.Ledger())
		spec, err := engine.BuildPayment(ctx, company, loan, borrower, rep)
		if err != nil {
			return nil, err
		}
		entryID, err := engine.Post(ctx, spec)
		if err != nil {
			return nil, err
		}

		rep.Status = RepaymentPaid
		rep.EntryID = &entryID
		if err := tx.UpdateRepayment(ctx, rep); err != nil {
			return nil, err
		}
		paid = *rep

		s.logger.InfoContext(ctx, "installment paid", "company", company.CompanyCode, "loan", loan.Reference,
			"sequence", rep.Sequence, "total", rep.TotalPayment().StringFixed(2), "entry_id", entryID)
		return []LoanEvent{{
			Type:          EventRepaymentPaid,
			CompanyCode:   company.CompanyCode,
			LoanReference: loan.Reference,
			Status:        loan.Status,
			Sequence:      rep.Sequence,
			EntryID:       &entryID,
			OccurredAt:    s.now(),
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &paid, nil
}

// ── Documents ────────────────────────────────────────────────────────────────

// UploadDocument stores content as the file of the loan's slot for a
// requirement and marks the slot presented.
func (s *loanService) UploadDocument(ctx context.Context, companyCode, reference string, requirementID int, content []byte) (*LoanDocument, error) {
	if s.files == nil {
		return nil, configErr(ErrStorageNotConfigured, "document storage is not configured")
	}
	if len(content) == 0 {
		return nil, validationErr(ErrInvalidInput, "file", "uploaded file is empty")
	}

	var doc LoanDocument
	_, err := s.withLoan(ctx, companyCode, reference, func(ctx context.Context, tx Tx, company *Company, loan *Loan) ([]LoanEvent, error) {
		if loan.Status != LoanConfirmed {
			return nil, stateErr(ErrInvalidState, "documents of loan %s can only be uploaded while it is confirmed, it is %s", loan.Reference, loan.Status)
		}
		slot, ok := loan.Document(requirementID)
		if !ok {
			return nil, notFound("document slot", fmt.Sprintf("%s requirement %d", reference, requirementID))
		}

		borrower, err := tx.Borrower(ctx, company.ID, loan.BorrowerID)
		if err != nil {
			return nil, err
		}
		filename := DocumentFilename(borrower.Name, slot.RequirementName)
		key := fmt.Sprintf("%s/loans/%s/%s", company.CompanyCode, loan.Reference, filename)
		if err := s.files.Put(ctx, key, "application/pdf", content); err != nil {
			return nil, fmt.Errorf("failed to store document %s: %w", filename, err)
		}

		now := s.now()
		slot.Filename = filename
		slot.StorageKey = key
		slot.Status = DocumentPresented
		slot.UploadedAt = &now
		if err := tx.UpdateDocument(ctx, slot); err != nil {
			return nil, err
		}
		doc = *slot

		return []LoanEvent{{
			Type:          EventDocumentUploaded,
			CompanyCode:   company.CompanyCode,
			LoanReference: loan.Reference,
			Status:        loan.Status,
			OccurredAt:    now,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DocumentFilename is the stored name of a borrower's file for a requirement.
func DocumentFilename(borrowerName, requirementName string) string {
	return fmt.Sprintf("%s - %s.pdf", pathSegment(borrowerName), pathSegment(requirementName))
}

// pathSegment keeps a name inside a single storage key segment.
func pathSegment(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(strings.TrimSpace(name), ".")
	if name == "" {
		return "unnamed"
	}
	return name
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type loanOp func(ctx context.Context, tx Tx, company *Company, loan *Loan) ([]LoanEvent, error)

// withLoan runs op on the locked loan inside one transaction and returns the
// reloaded loan once committed. Events returned by op are published after commit.
func (s *loanService) withLoan(ctx context.Context, companyCode, reference string, op loanOp) (*Loan, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}

	var (
		out    *Loan
		events []LoanEvent
	)
	err = s.store.WithTx(ctx, func(tx Tx) error {
		loan, err := tx.LockLoan(ctx, company.ID, reference)
		if err != nil {
			return err
		}
		evs, err := op(ctx, tx, company, loan)
		if err != nil {
			return err
		}
		events = evs
		out, err = tx.Loan(ctx, company.ID, reference)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events...)
	return out, nil
}

// moveTo persists the loan with its new status.
func (s *loanService) moveTo(ctx context.Context, tx Tx, company *Company, loan *Loan, to LoanStatus) (LoanEvent, error) {
	from := loan.Status
	loan.Status = to
	if err := tx.UpdateLoan(ctx, loan); err != nil {
		return LoanEvent{}, err
	}
	s.logger.InfoContext(ctx, "loan transitioned", "company", company.CompanyCode, "loan", loan.Reference, "from", from, "status", to)
	return LoanEvent{
		Type:          EventLoanTransitioned,
		CompanyCode:   company.CompanyCode,
		LoanReference: loan.Reference,
		Status:        to,
		From:          from,
		OccurredAt:    s.now(),
	}, nil
}

func (s *loanService) publish(ctx context.Context, events ...LoanEvent) {
	if len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.WarnContext(ctx, "failed to publish loan events", "error", err, "count", len(events))
	}
}

func expectStatus(loan *Loan, op string, allowed ...LoanStatus) error {
	for _, st := range allowed {
		if loan.Status == st {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, st := range allowed {
		names[i] = string(st)
	}
	return stateErr(ErrInvalidState, "cannot %s loan %s in status %s (expected %s)",
		op, loan.Reference, loan.Status, strings.Join(names, " or "))
}

func checkSchedule(loan *Loan) error {
	if !loan.HasSchedule() {
		return stateErr(ErrInvalidState, "the repayment schedule of loan %s must be computed first", loan.Reference)
	}
	return nil
}

func checkScheduleFresh(loan *Loan) error {
	if err := checkSchedule(loan); err != nil {
		return err
	}
	if loan.RepaymentsDirty {
		return stateErr(ErrStaleSchedule, "amount, tenure or rate of loan %s changed; recompute the schedule first", loan.Reference)
	}
	return nil
}
