// restore-seed is a one-shot tool to restore the seed data of the demo company:
// chart of accounts, journals, document requirements, one loan type, one
// borrower and the officer/manager users.
//
// Usage: go run ./cmd/restore-seed
package main

import (
	"context"
	"log"
	"os"

	"loan-manager/internal/config"
	"loan-manager/internal/db"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "changeme"
		log.Println("SEED_PASSWORD not set, using the default demo password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Restoring company...")
	_, err = tx.Exec(ctx, `
		INSERT INTO companies (company_code, name, base_currency)
		VALUES ('1000', 'Demo Lending', 'USD')
		ON CONFLICT (company_code) DO UPDATE
		  SET name = EXCLUDED.name,
		      base_currency = EXCLUDED.base_currency;
	`)
	if err != nil {
		log.Fatalf("Failed to restore company: %v", err)
	}

	log.Println("Restoring chart of accounts...")
	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (company_id, code, name, type)
		SELECT c.id, a.code, a.name, a.type
		FROM companies c
		CROSS JOIN (VALUES
		    ('1100', 'Bank Account',          'asset_cash'),
		    ('1110', 'Collections Account',   'asset_cash'),
		    ('1200', 'Loans Receivable',      'asset'),
		    ('2100', 'Loans To Disburse',     'liability'),
		    ('3000', 'Owner Capital',         'equity'),
		    ('4100', 'Commission Income',     'revenue'),
		    ('4200', 'Legal Fees Income',     'revenue'),
		    ('4300', 'Insurance Income',      'revenue'),
		    ('4400', 'Interest Income',       'revenue'),
		    ('5100', 'Bank Charges',          'expense')
		) AS a(code, name, type)
		WHERE c.company_code = '1000'
		ON CONFLICT (company_id, code) DO UPDATE
		  SET name = EXCLUDED.name,
		      type = EXCLUDED.type;
	`)
	if err != nil {
		log.Fatalf("Failed to restore accounts: %v", err)
	}

	log.Println("Restoring journals...")
	_, err = tx.Exec(ctx, `
		INSERT INTO journals (company_id, code, name, type)
		SELECT c.id, j.code, j.name, j.type
		FROM companies c
		CROSS JOIN (VALUES
		    ('GEN', 'General', 'general'),
		    ('BNK', 'Bank',    'bank')
		) AS j(code, name, type)
		WHERE c.company_code = '1000'
		ON CONFLICT (company_id, code) DO NOTHING;
	`)
	if err != nil {
		log.Fatalf("Failed to restore journals: %v", err)
	}

	log.Println("Restoring requirements and loan type...")
	_, err = tx.Exec(ctx, `
		INSERT INTO requirements (company_id, name, description, mandatory)
		SELECT c.id, r.name, r.description, r.mandatory
		FROM companies c
		CROSS JOIN (VALUES
		    ('Identity card',    'Government issued identity document', true),
		    ('Proof of income',  'Last three payslips',                  true),
		    ('Utility bill',     'Proof of address',                     false)
		) AS r(name, description, mandatory)
		WHERE c.company_code = '1000'
		ON CONFLICT (company_id, name) DO NOTHING;

		INSERT INTO loan_types (company_id, name, description, max_amount, max_tenure, tenure_plan,
		    amortization_method, interest_rate_percent, disburse_commission_percent, legal_expenses,
		    payment_account, disbursement_account, disbursement_bank_account,
		    disbursement_commission_account, legal_expenses_account, interest_account)
		SELECT c.id, 'Personal Loan', 'Unsecured consumer loan', 50000, 36, 'monthly',
		    'french', 12, 1, 50,
		    '1110', '2100', '1100', '4100', '4200', '4400'
		FROM companies c
		WHERE c.company_code = '1000'
		ON CONFLICT (company_id, name) DO NOTHING;

		INSERT INTO loan_type_requirements (loan_type_id, requirement_id)
		SELECT lt.id, r.id
		FROM loan_types lt
		JOIN requirements r ON r.company_id = lt.company_id
		JOIN companies c ON c.id = lt.company_id
		WHERE c.company_code = '1000' AND lt.name = 'Personal Loan'
		ON CONFLICT DO NOTHING;
	`)
	if err != nil {
		log.Fatalf("Failed to restore catalog: %v", err)
	}

	log.Println("Restoring borrower...")
	_, err = tx.Exec(ctx, `
		INSERT INTO borrowers (company_id, code, name, loan_account_id)
		SELECT c.id, 'B001', 'Jane Doe', a.id
		FROM companies c
		JOIN accounts a ON a.company_id = c.id AND a.code = '1200'
		WHERE c.company_code = '1000'
		ON CONFLICT (company_id, code) DO NOTHING;
	`)
	if err != nil {
		log.Fatalf("Failed to restore borrower: %v", err)
	}

	log.Println("Restoring users...")
	_, err = tx.Exec(ctx, `
		INSERT INTO users (company_id, username, email, password_hash, role)
		SELECT c.id, u.username, u.email, $1, u.role
		FROM companies c
		CROSS JOIN (VALUES
		    ('officer', 'officer@example.com', 'officer'),
		    ('manager', 'manager@example.com', 'manager')
		) AS u(username, email, role)
		WHERE c.company_code = '1000'
		ON CONFLICT (username) DO UPDATE
		  SET password_hash = EXCLUDED.password_hash,
		      role = EXCLUDED.role,
		      is_active = true;
	`, string(hash))
	if err != nil {
		log.Fatalf("Failed to restore users: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Seed data restored successfully.")
}
