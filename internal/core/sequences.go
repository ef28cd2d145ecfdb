package core

import (
	"context"
	"fmt"
)

// nextSequence hands out the next number of a per-company counter. The upsert
// takes a row lock, so concurrent callers are serialised and no number is
// skipped or reused within committed transactions.
func nextSequence(ctx context.Context, q pgxQuerier, companyID int, name string) (int64, error) {
	var last int64
	err := q.QueryRow(ctx, `
		INSERT INTO sequences (company_id, name, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (company_id, name)
		DO UPDATE SET last_number = sequences.last_number + 1
		RETURNING last_number
	`, companyID, name).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to generate %s sequence number: %w", name, err)
	}
	return last, nil
}
