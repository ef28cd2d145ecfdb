package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pgStore struct {
	pgReader
	pool *pgxpool.Pool
}

// NewPgStore constructs a Store backed by PostgreSQL.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pgReader: pgReader{q: pool}, pool: pool}
}

func (s *pgStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{pgReader: pgReader{q: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports a unique-constraint failure (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ── Reader ───────────────────────────────────────────────────────────────────

type pgReader struct {
	q pgxQuerier
}

func (r pgReader) Company(ctx context.Context, companyCode string) (*Company, error) {
	var c Company
	err := r.q.QueryRow(ctx,
		"SELECT id, company_code, name, base_currency FROM companies WHERE company_code = $1", companyCode,
	).Scan(&c.ID, &c.CompanyCode, &c.Name, &c.BaseCurrency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("company", companyCode)
		}
		return nil, fmt.Errorf("failed to resolve company %s: %w", companyCode, err)
	}
	return &c, nil
}

func (r pgReader) Companies(ctx context.Context) ([]Company, error) {
	rows, err := r.q.Query(ctx, "SELECT id, company_code, name, base_currency FROM companies ORDER BY company_code")
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.CompanyCode, &c.Name, &c.BaseCurrency); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r pgReader) Requirements(ctx context.Context, companyID int) ([]Requirement, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, company_id, name, description, mandatory, created_at
		FROM requirements
		WHERE company_id = $1
		ORDER BY name
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query requirements: %w", err)
	}
	defer rows.Close()

	var out []Requirement
	for rows.Next() {
		var req Requirement
		if err := rows.Scan(&req.ID, &req.CompanyID, &req.Name, &req.Description, &req.Mandatory, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan requirement: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

const loanTypeColumns = `
	id, company_id, name, description, criteria, max_amount, max_tenure, tenure_plan, amortization_method,
	interest_rate_percent, disburse_commission_percent, anticipated_payment_commission_percent,
	legal_expenses, life_insurance,
	payment_account, disbursement_account, disbursement_bank_account, disbursement_commission_account,
	anticipated_payment_commission_account, legal_expenses_account, life_insurance_account, interest_account,
	created_at`

func scanLoanType(row pgx.Row) (*LoanType, error) {
	var t LoanType
	var plan, method string
	err := row.Scan(
		&t.ID, &t.CompanyID, &t.Name, &t.Description, &t.Criteria, &t.MaxAmount, &t.MaxTenure, &plan, &method,
		&t.InterestRatePercent, &t.DisburseCommissionPercent, &t.AnticipatedPaymentCommissionPercent,
		&t.LegalExpenses, &t.LifeInsurance,
		&t.Accounts.Payment, &t.Accounts.Disbursement, &t.Accounts.DisbursementBank, &t.Accounts.DisbursementCommission,
		&t.Accounts.AnticipatedPaymentCommission, &t.Accounts.LegalExpenses, &t.Accounts.LifeInsurance, &t.Accounts.Interest,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if t.TenurePlan, err = ParseTenurePlan(plan); err != nil {
		return nil, err
	}
	if t.AmortizationMethod, err = ParseAmortizationMethod(method); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r pgReader) LoanType(ctx context.Context, companyID, id int) (*LoanType, error) {
	t, err := scanLoanType(r.q.QueryRow(ctx,
		"SELECT "+loanTypeColumns+" FROM loan_types WHERE company_id = $1 AND id = $2", companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("loan type", strconv.Itoa(id))
		}
		return nil, fmt.Errorf("failed to fetch loan type %d: %w", id, err)
	}
	if t.RequirementIDs, err = r.requirementIDs(ctx, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

func (r pgReader) LoanTypes(ctx context.Context, companyID int) ([]LoanType, error) {
	rows, err := r.q.Query(ctx,
		"SELECT "+loanTypeColumns+" FROM loan_types WHERE company_id = $1 ORDER BY name", companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query loan types: %w", err)
	}
	var out []LoanType
	for rows.Next() {
		t, err := scanLoanType(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan loan type: %w", err)
		}
		out = append(out, *t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loan type iteration error: %w", err)
	}

	for i := range out {
		if out[i].RequirementIDs, err = r.requirementIDs(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r pgReader) requirementIDs(ctx context.Context, loanTypeID int) ([]int, error) {
	rows, err := r.q.Query(ctx,
		"SELECT requirement_id FROM loan_type_requirements WHERE loan_type_id = $1 ORDER BY requirement_id", loanTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query requirements of loan type %d: %w", loanTypeID, err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan requirement id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const borrowerSelect = `
	SELECT b.id, b.company_id, b.code, b.name, b.created_at,
	       a.id, a.company_id, a.code, a.name, a.type
	FROM borrowers b
	LEFT JOIN accounts a ON a.id = b.loan_account_id`

func scanBorrower(row pgx.Row) (*Borrower, error) {
	var b Borrower
	var accID, accCompanyID *int
	var accCode, accName, accType *string
	if err := row.Scan(&b.ID, &b.CompanyID, &b.Code, &b.Name, &b.CreatedAt,
		&accID, &accCompanyID, &accCode, &accName, &accType); err != nil {
		return nil, err
	}
	if accID != nil {
		b.LoanAccount = &Account{ID: *accID, CompanyID: *accCompanyID, Code: *accCode, Name: *accName, Type: AccountType(*accType)}
	}
	return &b, nil
}

func (r pgReader) Borrower(ctx context.Context, companyID, id int) (*Borrower, error) {
	b, err := scanBorrower(r.q.QueryRow(ctx, borrowerSelect+" WHERE b.company_id = $1 AND b.id = $2", companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("borrower", strconv.Itoa(id))
		}
		return nil, fmt.Errorf("failed to fetch borrower %d: %w", id, err)
	}
	return b, nil
}

func (r pgReader) Borrowers(ctx context.Context, companyID int) ([]Borrower, error) {
	rows, err := r.q.Query(ctx, borrowerSelect+" WHERE b.company_id = $1 ORDER BY b.code", companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query borrowers: %w", err)
	}
	defer rows.Close()

	var out []Borrower
	for rows.Next() {
		b, err := scanBorrower(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan borrower: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ── Loans ────────────────────────────────────────────────────────────────────

const loanSelect = `
	SELECT l.id, l.company_id, l.reference, l.borrower_id, b.name, l.loan_type_id, lt.name,
	       l.amount, l.tenure, l.tenure_plan, l.amortization_method,
	       l.interest_rate_percent, l.disburse_commission_percent, l.anticipated_payment_commission_percent,
	       l.legal_expenses, l.life_insurance,
	       l.payment_account, l.disbursement_account, l.disbursement_bank_account, l.disbursement_commission_account,
	       l.anticipated_payment_commission_account, l.legal_expenses_account, l.life_insurance_account, l.interest_account,
	       l.disburse_amount, l.status, l.rejection_reason, l.repayments_dirty, l.created_on,
	       l.registration_entry_id, l.disbursement_entry_id, l.created_at
	FROM loans l
	JOIN borrowers b   ON b.id  = l.borrower_id
	JOIN loan_types lt ON lt.id = l.loan_type_id`

func scanLoan(row pgx.Row) (*Loan, error) {
	var l Loan
	var plan, method, status string
	err := row.Scan(
		&l.ID, &l.CompanyID, &l.Reference, &l.BorrowerID, &l.BorrowerName, &l.LoanTypeID, &l.LoanTypeName,
		&l.Amount, &l.Tenure, &plan, &method,
		&l.InterestRatePercent, &l.DisburseCommissionPercent, &l.AnticipatedPaymentCommissionPercent,
		&l.LegalExpenses, &l.LifeInsurance,
		&l.Accounts.Payment, &l.Accounts.Disbursement, &l.Accounts.DisbursementBank, &l.Accounts.DisbursementCommission,
		&l.Accounts.AnticipatedPaymentCommission, &l.Accounts.LegalExpenses, &l.Accounts.LifeInsurance, &l.Accounts.Interest,
		&l.DisburseAmount, &status, &l.RejectionReason, &l.RepaymentsDirty, &l.CreatedOn,
		&l.RegistrationEntryID, &l.DisbursementEntryID, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = LoanStatus(status)
	if l.TenurePlan, err = ParseTenurePlan(plan); err != nil {
		return nil, err
	}
	if l.AmortizationMethod, err = ParseAmortizationMethod(method); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r pgReader) Loan(ctx context.Context, companyID int, reference string) (*Loan, error) {
	return r.loan(ctx, companyID, reference, false)
}

func (r pgReader) loan(ctx context.Context, companyID int, reference string, forUpdate bool) (*Loan, error) {
	q := loanSelect + " WHERE l.company_id = $1 AND l.reference = $2"
	if forUpdate {
		q += " FOR UPDATE OF l"
	}
	l, err := scanLoan(r.q.QueryRow(ctx, q, companyID, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("loan", reference)
		}
		return nil, fmt.Errorf("failed to fetch loan %s: %w", reference, err)
	}
	if err := r.loadChildren(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (r pgReader) Loans(ctx context.Context, companyID int, filter LoanFilter) ([]Loan, error) {
	q := loanSelect + " WHERE l.company_id = $1"
	args := []any{companyID}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		q += fmt.Sprintf(" AND l.status = $%d", len(args))
	}
	if filter.BorrowerID != nil {
		args = append(args, *filter.BorrowerID)
		q += fmt.Sprintf(" AND l.borrower_id = $%d", len(args))
	}
	q += " ORDER BY l.reference"

	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	var out []Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		out = append(out, *l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loan iteration error: %w", err)
	}

	for i := range out {
		if err := r.loadChildren(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// loadChildren fills required documents, document slots and repayments.
func (r pgReader) loadChildren(ctx context.Context, l *Loan) error {
	rows, err := r.q.Query(ctx, `
		SELECT rq.id, rq.company_id, rq.name, rq.description, rq.mandatory, rq.created_at
		FROM loan_type_requirements ltr
		JOIN requirements rq ON rq.id = ltr.requirement_id
		WHERE ltr.loan_type_id = $1
		ORDER BY rq.id
	`, l.LoanTypeID)
	if err != nil {
		return fmt.Errorf("failed to query required documents of %s: %w", l.Reference, err)
	}
	l.RequiredDocuments = nil
	for rows.Next() {
		var req Requirement
		if err := rows.Scan(&req.ID, &req.CompanyID, &req.Name, &req.Description, &req.Mandatory, &req.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan required document: %w", err)
		}
		l.RequiredDocuments = append(l.RequiredDocuments, req)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.q.Query(ctx, `
		SELECT d.id, d.loan_id, d.requirement_id, rq.name, rq.mandatory, d.reference, d.filename,
		       d.storage_key, d.status, d.uploaded_at
		FROM loan_documents d
		JOIN requirements rq ON rq.id = d.requirement_id
		WHERE d.loan_id = $1
		ORDER BY d.id
	`, l.ID)
	if err != nil {
		return fmt.Errorf("failed to query documents of %s: %w", l.Reference, err)
	}
	l.Documents = nil
	for rows.Next() {
		var d LoanDocument
		var status string
		if err := rows.Scan(&d.ID, &d.LoanID, &d.RequirementID, &d.RequirementName, &d.Mandatory, &d.Reference,
			&d.Filename, &d.StorageKey, &status, &d.UploadedAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan document: %w", err)
		}
		d.Status = DocumentStatus(status)
		l.Documents = append(l.Documents, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.q.Query(ctx, `
		SELECT id, loan_id, sequence, due_date, principal, interest, remaining_balance, status, entry_id
		FROM repayments
		WHERE loan_id = $1
		ORDER BY sequence
	`, l.ID)
	if err != nil {
		return fmt.Errorf("failed to query repayments of %s: %w", l.Reference, err)
	}
	defer rows.Close()
	l.Repayments = nil
	for rows.Next() {
		var rp Repayment
		var status string
		if err := rows.Scan(&rp.ID, &rp.LoanID, &rp.Sequence, &rp.DueDate, &rp.Principal, &rp.Interest,
			&rp.RemainingBalance, &status, &rp.EntryID); err != nil {
			return fmt.Errorf("failed to scan repayment: %w", err)
		}
		rp.Status = RepaymentStatus(status)
		l.Repayments = append(l.Repayments, rp)
	}
	return rows.Err()
}

func (r pgReader) Entry(ctx context.Context, companyID, id int) (*LedgerEntry, error) {
	return loadEntry(ctx, r.q, companyID, id)
}

func (r pgReader) TrialBalance(ctx context.Context, companyID int) ([]AccountBalance, error) {
	return trialBalance(ctx, r.q, companyID)
}

// ── Tx ───────────────────────────────────────────────────────────────────────

type pgTx struct {
	pgReader
}

func (t *pgTx) Ledger() LedgerSystem { return &pgLedger{q: t.q} }

func (t *pgTx) LockLoan(ctx context.Context, companyID int, reference string) (*Loan, error) {
	return t.loan(ctx, companyID, reference, true)
}

func (t *pgTx) NextSequence(ctx context.Context, companyID int, name string) (int64, error) {
	return nextSequence(ctx, t.q, companyID, name)
}

func (t *pgTx) InsertRequirement(ctx context.Context, req *Requirement) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO requirements (company_id, name, description, mandatory)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, req.CompanyID, req.Name, req.Description, req.Mandatory).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return NewDuplicateName("requirement", req.Name)
		}
		return fmt.Errorf("failed to create requirement: %w", err)
	}
	return nil
}

func (t *pgTx) InsertLoanType(ctx context.Context, lt *LoanType) error {
	a := lt.Accounts
	err := t.q.QueryRow(ctx, `
		INSERT INTO loan_types (
			company_id, name, description, criteria, max_amount, max_tenure, tenure_plan, amortization_method,
			interest_rate_percent, disburse_commission_percent, anticipated_payment_commission_percent,
			legal_expenses, life_insurance,
			payment_account, disbursement_account, disbursement_bank_account, disbursement_commission_account,
			anticipated_payment_commission_account, legal_expenses_account, life_insurance_account, interest_account)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id, created_at
	`, lt.CompanyID, lt.Name, lt.Description, lt.Criteria, lt.MaxAmount, lt.MaxTenure,
		lt.TenurePlan.String(), lt.AmortizationMethod.String(),
		lt.InterestRatePercent, lt.DisburseCommissionPercent, lt.AnticipatedPaymentCommissionPercent,
		lt.LegalExpenses, lt.LifeInsurance,
		a.Payment, a.Disbursement, a.DisbursementBank, a.DisbursementCommission,
		a.AnticipatedPaymentCommission, a.LegalExpenses, a.LifeInsurance, a.Interest,
	).Scan(&lt.ID, &lt.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return NewDuplicateName("loan type", lt.Name)
		}
		return fmt.Errorf("failed to create loan type: %w", err)
	}

	for _, reqID := range lt.RequirementIDs {
		if _, err := t.q.Exec(ctx, `
			INSERT INTO loan_type_requirements (loan_type_id, requirement_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, lt.ID, reqID); err != nil {
			return fmt.Errorf("failed to link requirement %d: %w", reqID, err)
		}
	}
	return nil
}

func (t *pgTx) InsertBorrower(ctx context.Context, b *Borrower) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO borrowers (company_id, code, name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, b.CompanyID, b.Code, b.Name).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return NewDuplicateName("borrower", b.Code)
		}
		return fmt.Errorf("failed to create borrower: %w", err)
	}
	return nil
}

func (t *pgTx) SetBorrowerLoanAccount(ctx context.Context, companyID, borrowerID, accountID int) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE borrowers SET loan_account_id = $1 WHERE company_id = $2 AND id = $3
	`, accountID, companyID, borrowerID)
	if err != nil {
		return fmt.Errorf("failed to set loan account of borrower %d: %w", borrowerID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("borrower", strconv.Itoa(borrowerID))
	}
	return nil
}

func (t *pgTx) InsertAccount(ctx context.Context, a *Account) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO accounts (company_id, code, name, type)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, a.CompanyID, a.Code, a.Name, string(a.Type)).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return NewDuplicateName("account", a.Code)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (t *pgTx) InsertJournal(ctx context.Context, j *Journal) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO journals (company_id, code, name, type)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, j.CompanyID, j.Code, j.Name, string(j.Type)).Scan(&j.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return NewDuplicateName("journal", j.Code)
		}
		return fmt.Errorf("failed to create journal: %w", err)
	}
	return nil
}

func (t *pgTx) InsertLoan(ctx context.Context, l *Loan) error {
	a := l.Accounts
	err := t.q.QueryRow(ctx, `
		INSERT INTO loans (
			company_id, reference, borrower_id, loan_type_id, amount, tenure, tenure_plan, amortization_method,
			interest_rate_percent, disburse_commission_percent, anticipated_payment_commission_percent,
			legal_expenses, life_insurance,
			payment_account, disbursement_account, disbursement_bank_account, disbursement_commission_account,
			anticipated_payment_commission_account, legal_expenses_account, life_insurance_account, interest_account,
			disburse_amount, status, created_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		RETURNING id, created_at
	`, l.CompanyID, l.Reference, l.BorrowerID, l.LoanTypeID, l.Amount, l.Tenure,
		l.TenurePlan.String(), l.AmortizationMethod.String(),
		l.InterestRatePercent, l.DisburseCommissionPercent, l.AnticipatedPaymentCommissionPercent,
		l.LegalExpenses, l.LifeInsurance,
		a.Payment, a.Disbursement, a.DisbursementBank, a.DisbursementCommission,
		a.AnticipatedPaymentCommission, a.LegalExpenses, a.LifeInsurance, a.Interest,
		l.DisburseAmount, string(l.Status), l.CreatedOn,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return NewDuplicateName("loan", l.Reference)
		}
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateLoan(ctx context.Context, l *Loan) error {
	a := l.Accounts
	_, err := t.q.Exec(ctx, `
		UPDATE loans SET
			borrower_id = $1, loan_type_id = $2, amount = $3, tenure = $4, tenure_plan = $5, amortization_method = $6,
			interest_rate_percent = $7, disburse_commission_percent = $8, anticipated_payment_commission_percent = $9,
			legal_expenses = $10, life_insurance = $11,
			payment_account = $12, disbursement_account = $13, disbursement_bank_account = $14,
			disbursement_commission_account = $15, anticipated_payment_commission_account = $16,
			legal_expenses_account = $17, life_insurance_account = $18, interest_account = $19,
			disburse_amount = $20, status = $21, rejection_reason = $22, repayments_dirty = $23,
			registration_entry_id = $24, disbursement_entry_id = $25
		WHERE id = $26
	`, l.BorrowerID, l.LoanTypeID, l.Amount, l.Tenure, l.TenurePlan.String(), l.AmortizationMethod.String(),
		l.InterestRatePercent, l.DisburseCommissionPercent, l.AnticipatedPaymentCommissionPercent,
		l.LegalExpenses, l.LifeInsurance,
		a.Payment, a.Disbursement, a.DisbursementBank,
		a.DisbursementCommission, a.AnticipatedPaymentCommission,
		a.LegalExpenses, a.LifeInsurance, a.Interest,
		l.DisburseAmount, string(l.Status), l.RejectionReason, l.RepaymentsDirty,
		l.RegistrationEntryID, l.DisbursementEntryID,
		l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan %s: %w", l.Reference, err)
	}
	return nil
}

func (t *pgTx) ReplaceRepayments(ctx context.Context, loanID int, rs []Repayment) error {
	if _, err := t.q.Exec(ctx, "DELETE FROM repayments WHERE loan_id = $1", loanID); err != nil {
		return fmt.Errorf("failed to delete repayments of loan %d: %w", loanID, err)
	}
	for _, rp := range rs {
		_, err := t.q.Exec(ctx, `
			INSERT INTO repayments (loan_id, sequence, due_date, principal, interest, remaining_balance, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, loanID, rp.Sequence, rp.DueDate, rp.Principal, rp.Interest, rp.RemainingBalance, string(rp.Status))
		if err != nil {
			return fmt.Errorf("failed to insert repayment #%d: %w", rp.Sequence, err)
		}
	}
	return nil
}

// UpdateRepayment writes only the mutable columns of an installment.
func (t *pgTx) UpdateRepayment(ctx context.Context, rp *Repayment) error {
	_, err := t.q.Exec(ctx, `
		UPDATE repayments SET status = $1, entry_id = $2 WHERE id = $3
	`, string(rp.Status), rp.EntryID, rp.ID)
	if err != nil {
		return fmt.Errorf("failed to update repayment #%d: %w", rp.Sequence, err)
	}
	return nil
}

func (t *pgTx) InsertDocuments(ctx context.Context, docs []LoanDocument) error {
	for i := range docs {
		d := &docs[i]
		err := t.q.QueryRow(ctx, `
			INSERT INTO loan_documents (loan_id, requirement_id, reference, filename, storage_key, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, d.LoanID, d.RequirementID, d.Reference, d.Filename, d.StorageKey, string(d.Status)).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("failed to create document slot %s: %w", d.Reference, err)
		}
	}
	return nil
}

func (t *pgTx) UpdateDocument(ctx context.Context, d *LoanDocument) error {
	_, err := t.q.Exec(ctx, `
		UPDATE loan_documents SET filename = $1, storage_key = $2, status = $3, uploaded_at = $4 WHERE id = $5
	`, d.Filename, d.StorageKey, string(d.Status), d.UploadedAt, d.ID)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", d.Reference, err)
	}
	return nil
}

func (t *pgTx) UpdateEntry(ctx context.Context, companyID, id int, reference string) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE entries SET reference = $1 WHERE company_id = $2 AND id = $3
	`, reference, companyID, id)
	if err != nil {
		return fmt.Errorf("failed to update entry %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("entry", strconv.Itoa(id))
	}
	return nil
}
