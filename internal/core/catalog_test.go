package core_test

import (
	"encoding/json"
	"errors"
	"testing"

	"loan-manager/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLoanType() core.LoanType {
	return core.LoanType{
		Name:                "  car LOAN ",
		Description:         "LOANS for NEW cars",
		MaxAmount:           dec("20000.004"),
		MaxTenure:           48,
		TenurePlan:          core.TenureMonthly,
		AmortizationMethod:  core.French,
		InterestRatePercent: dec("8.5"),
		Accounts:            core.AccountCodes{Payment: " 1110 ", Interest: "4400"},
	}
}

func TestLoanType_Normalize(t *testing.T) {
	lt := validLoanType()
	lt.Normalize()

	assert.Equal(t, "Car Loan", lt.Name)
	assert.Equal(t, "Loans for new cars", lt.Description)
	assert.True(t, dec("20000.00").Equal(lt.MaxAmount))
	assert.Equal(t, "1110", lt.Accounts.Payment)
	assert.NoError(t, lt.Validate())
}

func TestLoanType_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*core.LoanType)
		sentinel error
	}{
		{"missing name", func(lt *core.LoanType) { lt.Name = "" }, core.ErrInvalidInput},
		{"zero max amount", func(lt *core.LoanType) { lt.MaxAmount = dec("0") }, core.ErrOutOfBounds},
		{"zero max tenure", func(lt *core.LoanType) { lt.MaxTenure = 0 }, core.ErrOutOfBounds},
		{"rate above 100", func(lt *core.LoanType) { lt.InterestRatePercent = dec("100.01") }, core.ErrOutOfBounds},
		{"negative commission", func(lt *core.LoanType) { lt.DisburseCommissionPercent = dec("-1") }, core.ErrOutOfBounds},
		{"negative legal expenses", func(lt *core.LoanType) { lt.LegalExpenses = dec("-5") }, core.ErrOutOfBounds},
		{"missing method", func(lt *core.LoanType) { lt.AmortizationMethod = 0 }, core.ErrInvalidInput},
		{"missing plan", func(lt *core.LoanType) { lt.TenurePlan = 0 }, core.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lt := validLoanType()
			lt.Normalize()
			tt.mutate(&lt)
			err := lt.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)

			var verr *core.ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}

func TestLoanType_BoundaryPercentagesAccepted(t *testing.T) {
	lt := validLoanType()
	lt.InterestRatePercent = dec("100")
	lt.DisburseCommissionPercent = dec("0")
	lt.Normalize()
	assert.NoError(t, lt.Validate())
}

func TestEnums_TextRoundTrip(t *testing.T) {
	var payload struct {
		Plan   core.TenurePlan         `json:"plan"`
		Method core.AmortizationMethod `json:"method"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"plan":"biweekly","method":"German"}`), &payload))
	assert.Equal(t, core.TenureBiweekly, payload.Plan)
	assert.Equal(t, core.German, payload.Method)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"plan":"biweekly","method":"german"}`, string(out))

	err = json.Unmarshal([]byte(`{"plan":"yearly"}`), &payload)
	assert.Error(t, err)
}

func TestRequirement_Normalize(t *testing.T) {
	r := core.Requirement{Name: "proof of ADDRESS", Description: "  UTILITY bill  "}
	r.Normalize()
	assert.Equal(t, "Proof Of Address", r.Name)
	assert.Equal(t, "Utility bill", r.Description)
	assert.NoError(t, r.Validate())

	empty := core.Requirement{Name: "   "}
	empty.Normalize()
	assert.ErrorIs(t, empty.Validate(), core.ErrInvalidInput)
}
