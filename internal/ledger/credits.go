package ledger

// CreditAccount is a consumable balance with a soft display ceiling. It is
// pure arithmetic: debits clamp at zero instead of failing and credits are
// never clamped to the ceiling.
type CreditAccount struct {
	balance int
	max     int
}

// NewCreditAccount creates an account; a negative initial balance is raised to zero
func NewCreditAccount(initial, max int) CreditAccount {
	if initial < 0 {
		initial = 0
	}
	return CreditAccount{balance: initial, max: max}
}

// Debit subtracts amount, flooring the balance at zero, and returns the new balance
func (a *CreditAccount) Debit(amount int) int {
	if amount < 0 {
		amount = 0
	}
	a.balance -= amount
	if a.balance < 0 {
		a.balance = 0
	}
	return a.balance
}

// Credit adds amount and returns the new balance
func (a *CreditAccount) Credit(amount int) int {
	if amount < 0 {
		amount = 0
	}
	a.balance += amount
	return a.balance
}

// Balance returns the current balance
func (a CreditAccount) Balance() int {
	return a.balance
}

// Max returns the display ceiling
func (a CreditAccount) Max() int {
	return a.max
}

// Fraction returns the balance as a share of the display ceiling, capped at 1
func (a CreditAccount) Fraction() float64 {
	if a.max <= 0 {
		return 0
	}
	f := float64(a.balance) / float64(a.max)
	if f > 1 {
		return 1
	}
	return f
}
