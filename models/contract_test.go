package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validEMITerms() ContractTerms {
	return ContractTerms{
		PrincipalAmount:  10000,
		InterestRate:     12,
		PaymentType:      PaymentTypeEMI,
		PaymentFrequency: FrequencyMonthly,
		StartDate:        date(2026, time.January, 1),
		EndDate:          date(2027, time.January, 1),
	}
}

func TestContractTermsValidate(t *testing.T) {
	t.Run("valid EMI terms", func(t *testing.T) {
		assert.NoError(t, validEMITerms().Validate())
	})

	t.Run("valid one time terms", func(t *testing.T) {
		terms := validEMITerms()
		terms.PaymentType = PaymentTypeOneTime
		terms.PaymentFrequency = ""
		assert.NoError(t, terms.Validate())
	})

	t.Run("zero principal", func(t *testing.T) {
		terms := validEMITerms()
		terms.PrincipalAmount = 0
		assert.Error(t, terms.Validate())
	})

	t.Run("principal above cap", func(t *testing.T) {
		terms := validEMITerms()
		terms.PrincipalAmount = MaxPrincipalAmount + 1
		assert.Error(t, terms.Validate())
	})

	t.Run("negative interest rate", func(t *testing.T) {
		terms := validEMITerms()
		terms.InterestRate = -1
		assert.Error(t, terms.Validate())
	})

	t.Run("interest rate above cap", func(t *testing.T) {
		terms := validEMITerms()
		terms.InterestRate = MaxInterestRate + 0.5
		assert.Error(t, terms.Validate())
	})

	t.Run("unknown payment type", func(t *testing.T) {
		terms := validEMITerms()
		terms.PaymentType = "INSTALLMENT"
		assert.Error(t, terms.Validate())
	})

	t.Run("end date before start date", func(t *testing.T) {
		terms := validEMITerms()
		terms.EndDate = terms.StartDate.AddDate(0, 0, -1)
		assert.Error(t, terms.Validate())
	})

	t.Run("EMI without frequency", func(t *testing.T) {
		terms := validEMITerms()
		terms.PaymentFrequency = ""
		assert.Error(t, terms.Validate())
	})

	t.Run("term too short for one installment", func(t *testing.T) {
		terms := validEMITerms()
		terms.EndDate = terms.StartDate.AddDate(0, 0, 10)
		assert.Error(t, terms.Validate())
	})
}

func TestContractTransitionTable(t *testing.T) {
	allStatuses := []string{
		ContractStatusDraft, ContractStatusPendingESign, ContractStatusSigned,
		ContractStatusActive, ContractStatusCompleted, ContractStatusDefaulted,
		ContractStatusCancelled,
	}
	allEvents := []ContractEvent{
		EventESignInitiated, EventESignCompleted, EventESignDeclined,
		EventFirstInstallment, EventPaidInFull, EventGraceExpired, EventAdminCancel,
	}

	legal := map[string]map[ContractEvent]string{
		ContractStatusDraft: {
			EventESignInitiated: ContractStatusPendingESign,
			EventAdminCancel:    ContractStatusCancelled,
		},
		ContractStatusPendingESign: {
			EventESignCompleted: ContractStatusSigned,
			EventESignDeclined:  ContractStatusCancelled,
			EventAdminCancel:    ContractStatusCancelled,
		},
		ContractStatusSigned: {
			EventFirstInstallment: ContractStatusActive,
			EventPaidInFull:       ContractStatusCompleted,
		},
		ContractStatusActive: {
			EventPaidInFull:   ContractStatusCompleted,
			EventGraceExpired: ContractStatusDefaulted,
		},
	}

	// Every (status, event) pair resolves exactly as the table above says;
	// everything else is illegal.
	for _, from := range allStatuses {
		for _, event := range allEvents {
			next, ok := NextContractStatus(from, event)
			want, wantOK := legal[from][event]
			assert.Equal(t, wantOK, ok, "%s on %s", event, from)
			if wantOK {
				assert.Equal(t, want, next, "%s on %s", event, from)
			}
		}
	}

	// Terminal statuses have no outgoing transitions at all.
	for _, terminal := range []string{ContractStatusCompleted, ContractStatusDefaulted, ContractStatusCancelled} {
		assert.True(t, IsTerminalStatus(terminal))
		for _, event := range allEvents {
			_, ok := NextContractStatus(terminal, event)
			assert.False(t, ok, "%s must be terminal, got transition on %s", terminal, event)
		}
	}
	assert.False(t, IsTerminalStatus(ContractStatusActive))
}

func TestEventTarget(t *testing.T) {
	target, ok := EventTarget(EventESignCompleted)
	require.True(t, ok)
	assert.Equal(t, ContractStatusSigned, target)

	target, ok = EventTarget(EventGraceExpired)
	require.True(t, ok)
	assert.Equal(t, ContractStatusDefaulted, target)

	_, ok = EventTarget(ContractEvent("NO_SUCH_EVENT"))
	assert.False(t, ok)
}

func emiContract(principal float64, frequency string, start, end time.Time) *Contract {
	return &Contract{
		ID:               uuid.New(),
		PrincipalAmount:  principal,
		PaymentType:      PaymentTypeEMI,
		PaymentFrequency: frequency,
		StartDate:        start,
		EndDate:          end,
	}
}

func TestInstallmentMath(t *testing.T) {
	t.Run("monthly twelve installments", func(t *testing.T) {
		c := emiContract(10000, FrequencyMonthly, date(2026, time.January, 1), date(2027, time.January, 1))
		require.Equal(t, 12, c.InstallmentCount())
		assert.InDelta(t, 833.33, c.InstallmentAmount(), 0.001)

		// The final installment absorbs the rounding remainder so the sum
		// equals the principal exactly.
		var sum float64
		for i := 0; i < 12; i++ {
			amount, err := c.ObligationAmount(i)
			require.NoError(t, err)
			sum += amount
		}
		assert.InDelta(t, 10000, sum, 0.001)

		last, err := c.ObligationAmount(11)
		require.NoError(t, err)
		assert.InDelta(t, 833.37, last, 0.001)
	})

	t.Run("weekly four installments", func(t *testing.T) {
		c := emiContract(1000, FrequencyWeekly, date(2026, time.March, 1), date(2026, time.March, 29))
		require.Equal(t, 4, c.InstallmentCount())
		assert.InDelta(t, 250, c.InstallmentAmount(), 0.001)
	})

	t.Run("quarterly installments", func(t *testing.T) {
		c := emiContract(9000, FrequencyQuarterly, date(2026, time.January, 1), date(2027, time.January, 1))
		require.Equal(t, 4, c.InstallmentCount())
	})

	t.Run("one time is a single obligation", func(t *testing.T) {
		c := &Contract{
			ID:              uuid.New(),
			PrincipalAmount: 5000,
			PaymentType:     PaymentTypeOneTime,
			StartDate:       date(2026, time.January, 1),
			EndDate:         date(2026, time.June, 1),
		}
		require.Equal(t, 1, c.InstallmentCount())
		amount, err := c.ObligationAmount(0)
		require.NoError(t, err)
		assert.Equal(t, 5000.0, amount)
	})

	t.Run("ordinal out of range", func(t *testing.T) {
		c := emiContract(10000, FrequencyMonthly, date(2026, time.January, 1), date(2027, time.January, 1))
		_, err := c.ObligationAmount(12)
		assert.Error(t, err)
		_, err = c.ObligationAmount(-1)
		assert.Error(t, err)
	})
}

func TestObligationDueDate(t *testing.T) {
	c := emiContract(10000, FrequencyMonthly, date(2026, time.January, 1), date(2027, time.January, 1))
	assert.Equal(t, date(2026, time.February, 1), c.ObligationDueDate(0))
	assert.Equal(t, date(2027, time.January, 1), c.ObligationDueDate(11))

	oneTime := &Contract{
		PaymentType: PaymentTypeOneTime,
		StartDate:   date(2026, time.January, 1),
		EndDate:     date(2026, time.June, 1),
	}
	assert.Equal(t, date(2026, time.June, 1), oneTime.ObligationDueDate(0))
}

func TestObligationKey(t *testing.T) {
	c := emiContract(10000, FrequencyMonthly, date(2026, time.January, 1), date(2027, time.January, 1))
	assert.Equal(t, "order:"+c.ID.String()+":0", c.ObligationKey(0))
	assert.NotEqual(t, c.ObligationKey(0), c.ObligationKey(1))
}
