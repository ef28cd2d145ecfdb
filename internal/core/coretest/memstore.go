// Package coretest provides in-memory implementations of the core ports for
// unit tests.
package coretest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"loan-manager/internal/core"

	"github.com/shopspring/decimal"
)

type state struct {
	nextID int

	companies    map[string]core.Company
	accounts     map[int]core.Account
	journals     map[int]core.Journal
	requirements map[int]core.Requirement
	loanTypes    map[int]core.LoanType
	borrowers    map[int]core.Borrower
	loanAccounts map[int]int // borrower id -> account id
	loans        map[int]core.Loan
	repayments   map[int][]core.Repayment
	documents    map[int][]core.LoanDocument
	entries      map[int]core.LedgerEntry
	sequences    map[string]int64
}

func newState() *state {
	return &state{
		companies:    map[string]core.Company{},
		accounts:     map[int]core.Account{},
		journals:     map[int]core.Journal{},
		requirements: map[int]core.Requirement{},
		loanTypes:    map[int]core.LoanType{},
		borrowers:    map[int]core.Borrower{},
		loanAccounts: map[int]int{},
		loans:        map[int]core.Loan{},
		repayments:   map[int][]core.Repayment{},
		documents:    map[int][]core.LoanDocument{},
		entries:      map[int]core.LedgerEntry{},
		sequences:    map[string]int64{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.nextID = s.nextID
	for k, v := range s.companies {
		c.companies[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.journals {
		c.journals[k] = v
	}
	for k, v := range s.requirements {
		c.requirements[k] = v
	}
	for k, v := range s.loanTypes {
		v.RequirementIDs = append([]int(nil), v.RequirementIDs...)
		c.loanTypes[k] = v
	}
	for k, v := range s.borrowers {
		c.borrowers[k] = v
	}
	for k, v := range s.loanAccounts {
		c.loanAccounts[k] = v
	}
	for k, v := range s.loans {
		c.loans[k] = v
	}
	for k, v := range s.repayments {
		c.repayments[k] = append([]core.Repayment(nil), v...)
	}
	for k, v := range s.documents {
		c.documents[k] = append([]core.LoanDocument(nil), v...)
	}
	for k, v := range s.entries {
		v.Lines = append([]core.EntryLine(nil), v.Lines...)
		c.entries[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	return c
}

func (s *state) id() int {
	s.nextID++
	return s.nextID
}

// Store is an in-memory core.Store. Transactions work on a copy of the state
// that replaces it on commit, so a failing unit of work leaves nothing behind.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ core.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx core.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&memTx{reader: reader{st: work}, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) read() reader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reader{st: s.st.clone()}
}

func (s *Store) Company(ctx context.Context, code string) (*core.Company, error) {
	return s.read().Company(ctx, code)
}
func (s *Store) Companies(ctx context.Context) ([]core.Company, error) {
	return s.read().Companies(ctx)
}
func (s *Store) Requirements(ctx context.Context, companyID int) ([]core.Requirement, error) {
	return s.read().Requirements(ctx, companyID)
}
func (s *Store) LoanType(ctx context.Context, companyID, id int) (*core.LoanType, error) {
	return s.read().LoanType(ctx, companyID, id)
}
func (s *Store) LoanTypes(ctx context.Context, companyID int) ([]core.LoanType, error) {
	return s.read().LoanTypes(ctx, companyID)
}
func (s *Store) Borrower(ctx context.Context, companyID, id int) (*core.Borrower, error) {
	return s.read().Borrower(ctx, companyID, id)
}
func (s *Store) Borrowers(ctx context.Context, companyID int) ([]core.Borrower, error) {
	return s.read().Borrowers(ctx, companyID)
}
func (s *Store) Loan(ctx context.Context, companyID int, ref string) (*core.Loan, error) {
	return s.read().Loan(ctx, companyID, ref)
}
func (s *Store) Loans(ctx context.Context, companyID int, f core.LoanFilter) ([]core.Loan, error) {
	return s.read().Loans(ctx, companyID, f)
}
func (s *Store) Entry(ctx context.Context, companyID, id int) (*core.LedgerEntry, error) {
	return s.read().Entry(ctx, companyID, id)
}
func (s *Store) TrialBalance(ctx context.Context, companyID int) ([]core.AccountBalance, error) {
	return s.read().TrialBalance(ctx, companyID)
}

// ── Seeding ──────────────────────────────────────────────────────────────────

// AddCompany registers a company outside any transaction.
func (s *Store) AddCompany(code, name, currency string) core.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := core.Company{ID: s.st.id(), CompanyCode: code, Name: name, BaseCurrency: currency}
	s.st.companies[code] = c
	return c
}

// Entries returns every stored ledger entry ordered by id.
func (s *Store) Entries() []core.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.LedgerEntry, 0, len(s.st.entries))
	for _, e := range s.st.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ── Reader ───────────────────────────────────────────────────────────────────

type reader struct {
	st *state
}

func (r reader) Company(_ context.Context, code string) (*core.Company, error) {
	c, ok := r.st.companies[code]
	if !ok {
		return nil, core.NewNotFound("company", code)
	}
	return &c, nil
}

func (r reader) Companies(_ context.Context) ([]core.Company, error) {
	out := make([]core.Company, 0, len(r.st.companies))
	for _, c := range r.st.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompanyCode < out[j].CompanyCode })
	return out, nil
}

func (r reader) Requirements(_ context.Context, companyID int) ([]core.Requirement, error) {
	var out []core.Requirement
	for _, req := range r.st.requirements {
		if req.CompanyID == companyID {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r reader) LoanType(_ context.Context, companyID, id int) (*core.LoanType, error) {
	t, ok := r.st.loanTypes[id]
	if !ok || t.CompanyID != companyID {
		return nil, core.NewNotFound("loan type", strconv.Itoa(id))
	}
	t.RequirementIDs = append([]int(nil), t.RequirementIDs...)
	return &t, nil
}

func (r reader) LoanTypes(ctx context.Context, companyID int) ([]core.LoanType, error) {
	var out []core.LoanType
	for id, t := range r.st.loanTypes {
		if t.CompanyID == companyID {
			lt, _ := r.LoanType(ctx, companyID, id)
			out = append(out, *lt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r reader) Borrower(_ context.Context, companyID, id int) (*core.Borrower, error) {
	b, ok := r.st.borrowers[id]
	if !ok || b.CompanyID != companyID {
		return nil, core.NewNotFound("borrower", strconv.Itoa(id))
	}
	if accID, ok := r.st.loanAccounts[id]; ok {
		acc := r.st.accounts[accID]
		b.LoanAccount = &acc
	}
	return &b, nil
}

func (r reader) Borrowers(ctx context.Context, companyID int) ([]core.Borrower, error) {
	var out []core.Borrower
	for id, b := range r.st.borrowers {
		if b.CompanyID == companyID {
			full, _ := r.Borrower(ctx, companyID, id)
			out = append(out, *full)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r reader) Loan(_ context.Context, companyID int, ref string) (*core.Loan, error) {
	for _, l := range r.st.loans {
		if l.CompanyID == companyID && l.Reference == ref {
			return r.hydrate(l), nil
		}
	}
	return nil, core.NewNotFound("loan", ref)
}

func (r reader) hydrate(l core.Loan) *core.Loan {
	l.BorrowerName = r.st.borrowers[l.BorrowerID].Name
	lt := r.st.loanTypes[l.LoanTypeID]
	l.LoanTypeName = lt.Name

	l.RequiredDocuments = nil
	ids := append([]int(nil), lt.RequirementIDs...)
	sort.Ints(ids)
	for _, id := range ids {
		l.RequiredDocuments = append(l.RequiredDocuments, r.st.requirements[id])
	}

	l.Documents = append([]core.LoanDocument(nil), r.st.documents[l.ID]...)
	for i := range l.Documents {
		req := r.st.requirements[l.Documents[i].RequirementID]
		l.Documents[i].RequirementName = req.Name
		l.Documents[i].Mandatory = req.Mandatory
	}

	l.Repayments = append([]core.Repayment(nil), r.st.repayments[l.ID]...)
	sort.Slice(l.Repayments, func(i, j int) bool { return l.Repayments[i].Sequence < l.Repayments[j].Sequence })
	return &l
}

func (r reader) Loans(_ context.Context, companyID int, f core.LoanFilter) ([]core.Loan, error) {
	var out []core.Loan
	for _, l := range r.st.loans {
		if l.CompanyID != companyID {
			continue
		}
		if f.Status != nil && l.Status != *f.Status {
			continue
		}
		if f.BorrowerID != nil && l.BorrowerID != *f.BorrowerID {
			continue
		}
		out = append(out, *r.hydrate(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return out, nil
}

func (r reader) Entry(_ context.Context, companyID, id int) (*core.LedgerEntry, error) {
	e, ok := r.st.entries[id]
	if !ok || e.CompanyID != companyID {
		return nil, core.NewNotFound("entry", strconv.Itoa(id))
	}
	if e.LoanID != nil {
		e.LoanReference = r.st.loans[*e.LoanID].Reference
	}
	e.Lines = append([]core.EntryLine(nil), e.Lines...)
	return &e, nil
}

func (r reader) TrialBalance(_ context.Context, companyID int) ([]core.AccountBalance, error) {
	balances := map[int]decimal.Decimal{}
	for _, e := range r.st.entries {
		if e.CompanyID != companyID || e.State != core.EntryPosted {
			continue
		}
		for _, l := range e.Lines {
			balances[l.AccountID] = balances[l.AccountID].Add(l.Debit).Sub(l.Credit)
		}
	}
	var out []core.AccountBalance
	for id, a := range r.st.accounts {
		if a.CompanyID != companyID {
			continue
		}
		out = append(out, core.AccountBalance{Code: a.Code, Name: a.Name, Type: a.Type, Balance: balances[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// ── Tx ───────────────────────────────────────────────────────────────────────

type memTx struct {
	reader
	now func() time.Time
}

func (t *memTx) Ledger() core.LedgerSystem { return &Ledger{st: t.st, now: t.now} }

func (t *memTx) LockLoan(ctx context.Context, companyID int, ref string) (*core.Loan, error) {
	return t.Loan(ctx, companyID, ref)
}

func (t *memTx) NextSequence(_ context.Context, companyID int, name string) (int64, error) {
	key := fmt.Sprintf("%d/%s", companyID, name)
	t.st.sequences[key]++
	return t.st.sequences[key], nil
}

func (t *memTx) InsertRequirement(_ context.Context, req *core.Requirement) error {
	for _, existing := range t.st.requirements {
		if existing.CompanyID == req.CompanyID && existing.Name == req.Name {
			return core.NewDuplicateName("requirement", req.Name)
		}
	}
	req.ID = t.st.id()
	req.CreatedAt = t.now()
	t.st.requirements[req.ID] = *req
	return nil
}

func (t *memTx) InsertLoanType(_ context.Context, lt *core.LoanType) error {
	for _, existing := range t.st.loanTypes {
		if existing.CompanyID == lt.CompanyID && existing.Name == lt.Name {
			return core.NewDuplicateName("loan type", lt.Name)
		}
	}
	lt.ID = t.st.id()
	lt.CreatedAt = t.now()
	stored := *lt
	stored.RequirementIDs = append([]int(nil), lt.RequirementIDs...)
	t.st.loanTypes[lt.ID] = stored
	return nil
}

func (t *memTx) InsertBorrower(_ context.Context, b *core.Borrower) error {
	for _, existing := range t.st.borrowers {
		if existing.CompanyID == b.CompanyID && existing.Code == b.Code {
			return core.NewDuplicateName("borrower", b.Code)
		}
	}
	b.ID = t.st.id()
	b.CreatedAt = t.now()
	stored := *b
	stored.LoanAccount = nil
	t.st.borrowers[b.ID] = stored
	return nil
}

func (t *memTx) SetBorrowerLoanAccount(_ context.Context, companyID, borrowerID, accountID int) error {
	b, ok := t.st.borrowers[borrowerID]
	if !ok || b.CompanyID != companyID {
		return core.NewNotFound("borrower", strconv.Itoa(borrowerID))
	}
	t.st.loanAccounts[borrowerID] = accountID
	return nil
}

func (t *memTx) InsertAccount(_ context.Context, a *core.Account) error {
	for _, existing := range t.st.accounts {
		if existing.CompanyID == a.CompanyID && existing.Code == a.Code {
			return core.NewDuplicateName("account", a.Code)
		}
	}
	a.ID = t.st.id()
	t.st.accounts[a.ID] = *a
	return nil
}

func (t *memTx) InsertJournal(_ context.Context, j *core.Journal) error {
	for _, existing := range t.st.journals {
		if existing.CompanyID == j.CompanyID && existing.Code == j.Code {
			return core.NewDuplicateName("journal", j.Code)
		}
	}
	j.ID = t.st.id()
	t.st.journals[j.ID] = *j
	return nil
}

func (t *memTx) InsertLoan(_ context.Context, l *core.Loan) error {
	for _, existing := range t.st.loans {
		if existing.CompanyID == l.CompanyID && existing.Reference == l.Reference {
			return core.NewDuplicateName("loan", l.Reference)
		}
	}
	l.ID = t.st.id()
	l.CreatedAt = t.now()
	t.st.loans[l.ID] = header(*l)
	return nil
}

func (t *memTx) UpdateLoan(_ context.Context, l *core.Loan) error {
	if _, ok := t.st.loans[l.ID]; !ok {
		return core.NewNotFound("loan", l.Reference)
	}
	t.st.loans[l.ID] = header(*l)
	return nil
}

// header strips the joined and child fields that live in their own tables.
func header(l core.Loan) core.Loan {
	l.BorrowerName = ""
	l.LoanTypeName = ""
	l.RequiredDocuments = nil
	l.Documents = nil
	l.Repayments = nil
	return l
}

func (t *memTx) ReplaceRepayments(_ context.Context, loanID int, rs []core.Repayment) error {
	stored := make([]core.Repayment, len(rs))
	for i, rp := range rs {
		rp.ID = t.st.id()
		rp.LoanID = loanID
		stored[i] = rp
	}
	t.st.repayments[loanID] = stored
	return nil
}

func (t *memTx) UpdateRepayment(_ context.Context, rp *core.Repayment) error {
	rs := t.st.repayments[rp.LoanID]
	for i := range rs {
		if rs[i].ID == rp.ID {
			rs[i].Status = rp.Status
			rs[i].EntryID = rp.EntryID
			return nil
		}
	}
	return core.NewNotFound("repayment", strconv.Itoa(rp.Sequence))
}

func (t *memTx) InsertDocuments(_ context.Context, docs []core.LoanDocument) error {
	for i := range docs {
		d := &docs[i]
		for _, existing := range t.st.documents[d.LoanID] {
			if existing.RequirementID == d.RequirementID {
				return core.NewDuplicateName("document", d.Reference)
			}
		}
		d.ID = t.st.id()
		t.st.documents[d.LoanID] = append(t.st.documents[d.LoanID], *d)
	}
	return nil
}

func (t *memTx) UpdateDocument(_ context.Context, d *core.LoanDocument) error {
	docs := t.st.documents[d.LoanID]
	for i := range docs {
		if docs[i].ID == d.ID {
			docs[i] = *d
			return nil
		}
	}
	return core.NewNotFound("document", d.Reference)
}

func (t *memTx) UpdateEntry(_ context.Context, companyID, id int, reference string) error {
	e, ok := t.st.entries[id]
	if !ok || e.CompanyID != companyID {
		return core.NewNotFound("entry", strconv.Itoa(id))
	}
	e.Reference = reference
	t.st.entries[id] = e
	return nil
}

// ── Ledger ───────────────────────────────────────────────────────────────────

// Ledger is the in-memory core.LedgerSystem bound to one transaction's state.
type Ledger struct {
	st  *state
	now func() time.Time
}

var _ core.LedgerSystem = (*Ledger)(nil)

func (l *Ledger) FindAccountByCode(_ context.Context, companyID int, code string) (*core.Account, error) {
	for _, a := range l.st.accounts {
		if a.CompanyID == companyID && a.Code == code {
			return &a, nil
		}
	}
	return nil, nil
}

func (l *Ledger) FindJournal(_ context.Context, companyID int, types ...core.JournalType) (*core.Journal, error) {
	for _, typ := range types {
		var found *core.Journal
		for _, j := range l.st.journals {
			if j.CompanyID == companyID && j.Type == typ && (found == nil || j.ID < found.ID) {
				j := j
				found = &j
			}
		}
		if found != nil {
			return found, nil
		}
	}
	return nil, nil
}

func (l *Ledger) CreateEntry(_ context.Context, spec core.EntrySpec) (int, error) {
	id := l.st.id()
	l.st.entries[id] = core.LedgerEntry{
		ID:        id,
		CompanyID: spec.CompanyID,
		JournalID: spec.JournalID,
		LoanID:    spec.LoanID,
		Reference: spec.Reference,
		Date:      spec.Date,
		Currency:  spec.Currency,
		State:     core.EntryDraft,
		Lines:     append([]core.EntryLine(nil), spec.Lines...),
		CreatedAt: l.now(),
	}
	return id, nil
}

func (l *Ledger) Post(_ context.Context, entryID int) error {
	e, ok := l.st.entries[entryID]
	if !ok {
		return core.NewNotFound("entry", strconv.Itoa(entryID))
	}
	if e.State != core.EntryDraft {
		return fmt.Errorf("entry %d is already %s", entryID, e.State)
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range e.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("entry %d is unbalanced: debit %s, credit %s", entryID, debit, credit)
	}
	now := l.now()
	e.State = core.EntryPosted
	e.PostedAt = &now
	l.st.entries[entryID] = e
	return nil
}
