package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// pgLedger is the LedgerSystem over the accounts, journals and entries tables.
// It runs on whatever querier it is given, normally the caller's transaction.
type pgLedger struct {
	q pgxQuerier
}

func (l *pgLedger) FindAccountByCode(ctx context.Context, companyID int, code string) (*Account, error) {
	var a Account
	var typ string
	err := l.q.QueryRow(ctx, `
		SELECT id, company_id, code, name, type
		FROM accounts
		WHERE company_id = $1 AND code = $2
	`, companyID, code).Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &typ)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch account %s: %w", code, err)
	}
	a.Type = AccountType(typ)
	return &a, nil
}

func (l *pgLedger) FindJournal(ctx context.Context, companyID int, types ...JournalType) (*Journal, error) {
	for _, t := range types {
		var j Journal
		var typ string
		err := l.q.QueryRow(ctx, `
			SELECT id, company_id, code, name, type
			FROM journals
			WHERE company_id = $1 AND type = $2
			ORDER BY id
			LIMIT 1
		`, companyID, string(t)).Scan(&j.ID, &j.CompanyID, &j.Code, &j.Name, &typ)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("failed to fetch %s journal: %w", t, err)
		}
		j.Type = JournalType(typ)
		return &j, nil
	}
	return nil, nil
}

// CreateEntry inserts a draft entry with its lines.
func (l *pgLedger) CreateEntry(ctx context.Context, spec EntrySpec) (int, error) {
	var entryID int
	err := l.q.QueryRow(ctx, `
		INSERT INTO entries (company_id, journal_id, loan_id, reference, entry_date, currency, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id
	`, spec.CompanyID, spec.JournalID, spec.LoanID, spec.Reference, spec.Date, spec.Currency, string(EntryDraft)).Scan(&entryID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}

	for _, line := range spec.Lines {
		_, err := l.q.Exec(ctx, `
			INSERT INTO entry_lines (entry_id, account_id, label, debit, credit, borrower_id)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, entryID, line.AccountID, line.Label, line.Debit, line.Credit, line.BorrowerID)
		if err != nil {
			return 0, fmt.Errorf("failed to insert entry line for account %s: %w", line.AccountCode, err)
		}
	}
	return entryID, nil
}

// Post locks a draft entry, re-checks its balance from the stored lines and marks it posted.
func (l *pgLedger) Post(ctx context.Context, entryID int) error {
	var state string
	err := l.q.QueryRow(ctx, "SELECT state FROM entries WHERE id = $1 FOR UPDATE", entryID).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("entry", strconv.Itoa(entryID))
		}
		return fmt.Errorf("failed to read entry %d for update: %w", entryID, err)
	}
	if EntryState(state) != EntryDraft {
		return stateErr(ErrInvalidState, "entry %d must be a draft to be posted, current state: %s", entryID, state)
	}

	var balanced bool
	err = l.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(debit), 0) = COALESCE(SUM(credit), 0)
		FROM entry_lines
		WHERE entry_id = $1
	`, entryID).Scan(&balanced)
	if err != nil {
		return fmt.Errorf("failed to check balance of entry %d: %w", entryID, err)
	}
	if !balanced {
		return validationErr(ErrUnbalancedEntry, "lines", "entry %d is unbalanced", entryID)
	}

	if _, err := l.q.Exec(ctx, `
		UPDATE entries SET state = $1, posted_at = NOW() WHERE id = $2
	`, string(EntryPosted), entryID); err != nil {
		return fmt.Errorf("failed to post entry %d: %w", entryID, err)
	}
	return nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func trialBalance(ctx context.Context, q pgxQuerier, companyID int) ([]AccountBalance, error) {
	rows, err := q.Query(ctx, `
		SELECT a.code, a.name, a.type,
		       COALESCE(SUM(el.debit)  FILTER (WHERE e.state = 'posted'), 0)
		     - COALESCE(SUM(el.credit) FILTER (WHERE e.state = 'posted'), 0) AS balance
		FROM accounts a
		LEFT JOIN entry_lines el ON el.account_id = a.id
		LEFT JOIN entries e      ON e.id = el.entry_id
		WHERE a.company_id = $1
		GROUP BY a.id, a.code, a.name, a.type
		ORDER BY a.code
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trial balance: %w", err)
	}
	defer rows.Close()

	var balances []AccountBalance
	for rows.Next() {
		var b AccountBalance
		var typ string
		if err := rows.Scan(&b.Code, &b.Name, &typ, &b.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		b.Type = AccountType(typ)
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func loadEntry(ctx context.Context, q pgxQuerier, companyID, id int) (*LedgerEntry, error) {
	var e LedgerEntry
	var state string
	var loanRef *string
	err := q.QueryRow(ctx, `
		SELECT e.id, e.company_id, e.journal_id, e.loan_id, l.reference, e.reference, e.entry_date,
		       e.currency, e.state, e.created_at, e.posted_at
		FROM entries e
		LEFT JOIN loans l ON l.id = e.loan_id
		WHERE e.company_id = $1 AND e.id = $2
	`, companyID, id).Scan(&e.ID, &e.CompanyID, &e.JournalID, &e.LoanID, &loanRef, &e.Reference, &e.Date,
		&e.Currency, &state, &e.CreatedAt, &e.PostedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("entry", strconv.Itoa(id))
		}
		return nil, fmt.Errorf("failed to fetch entry %d: %w", id, err)
	}
	e.State = EntryState(state)
	if loanRef != nil {
		e.LoanReference = *loanRef
	}

	rows, err := q.Query(ctx, `
		SELECT el.account_id, a.code, el.label, el.debit, el.credit, el.borrower_id
		FROM entry_lines el
		JOIN accounts a ON a.id = el.account_id
		WHERE el.entry_id = $1
		ORDER BY el.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lines of entry %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var line EntryLine
		if err := rows.Scan(&line.AccountID, &line.AccountCode, &line.Label, &line.Debit, &line.Credit, &line.BorrowerID); err != nil {
			return nil, fmt.Errorf("failed to scan entry line: %w", err)
		}
		e.Lines = append(e.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry lines: %w", err)
	}
	return &e, nil
}
