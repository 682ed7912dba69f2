package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstallmentsPixPrice(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	plan := p.Installments(10000)
	require.Equal(t, Money(9000), plan.PixPrice)
	require.Less(t, plan.PixPrice, Money(10000))
}

func TestInstallmentsNonPositivePrice(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	for _, price := range []Money{0, -1, -10000} {
		plan := p.Installments(price)
		require.Equal(t, Money(0), plan.PixPrice)
		require.Equal(t, 1, plan.MaxCount)
		require.Empty(t, plan.Schedule)
	}
}

func TestInstallmentsScheduleRoundTrip(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	price := Money(29990)
	plan := p.Installments(price)
	require.NotEmpty(t, plan.Schedule)
	for _, inst := range plan.Schedule {
		product := Money(inst.Count) * inst.Value
		diff := product - price
		if diff < 0 {
			diff = -diff
		}
		// count*value matches price within rounding tolerance
		require.LessOrEqual(t, diff, Money(inst.Count))
		if inst.Count > 1 {
			require.GreaterOrEqual(t, inst.Value, p.MinInstallmentValue)
		}
	}
}

func TestInstallmentsMaxCountCappedByMinValue(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	// R$35.00 supports only 3 installments of at least R$10.00.
	plan := p.Installments(3500)
	require.Equal(t, 3, plan.MaxCount)

	// Below the minimum a single installment always remains.
	plan = p.Installments(500)
	require.Equal(t, 1, plan.MaxCount)
	require.Len(t, plan.Schedule, 1)
	require.Equal(t, Money(500), plan.Schedule[0].Value)
}

func TestInstallmentsGlobalCap(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	plan := p.Installments(1000000)
	require.Equal(t, p.MaxInstallments, plan.MaxCount)
	require.Len(t, plan.Schedule, p.MaxInstallments)
}
