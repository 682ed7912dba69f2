package pricing

// Installment is a single entry of the installment schedule.
type Installment struct {
	Count int   `json:"count"`
	Value Money `json:"value"`
}

// InstallmentPlan describes the payment options displayed for a price:
// the discounted PIX cash price and the interest-free card schedule.
type InstallmentPlan struct {
	PixPrice Money         `json:"pixPrice"`
	MaxCount int           `json:"maxCount"`
	Schedule []Installment `json:"schedule"`
}

// Installments computes the plan for a given price. A non-positive price
// yields a neutral plan (cash price 0, max 1, empty schedule) so display
// code never has to guard against errors.
func (p Policy) Installments(price Money) InstallmentPlan {
	if price <= 0 {
		return InstallmentPlan{PixPrice: 0, MaxCount: 1}
	}
	pix := price - discountBps(price, p.PixDiscountBps)

	max := p.MaxInstallments
	if max < 1 {
		max = 1
	}
	if p.MinInstallmentValue > 0 {
		byValue := int(price / p.MinInstallmentValue)
		if byValue < max {
			max = byValue
		}
	}
	if max < 1 {
		max = 1
	}

	schedule := make([]Installment, 0, max)
	for n := 1; n <= max; n++ {
		value := divRound(price, n)
		if n > 1 && value < p.MinInstallmentValue {
			continue
		}
		schedule = append(schedule, Installment{Count: n, Value: value})
	}
	return InstallmentPlan{PixPrice: pix, MaxCount: max, Schedule: schedule}
}
