package domain

// TokenAllocation is one slice of the user's portfolio. Weight is a
// percentage of the total balance; Amount is derived as weight * balance and
// recomputed by the ledger on every balance change.
type TokenAllocation struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Color  string  `json:"color"`
	Weight float64 `json:"weight"` // percentage, all weights sum to 100
	Amount float64 `json:"amount"` // derived: weight/100 * balance
}

// PortfolioAllocation is the full derived allocation for a balance. It is
// owned by the ledger and only ever handed out as a copy.
type PortfolioAllocation struct {
	Tokens     []TokenAllocation `json:"tokens"`
	TotalValue float64           `json:"total_value"`
}

// BalanceSnapshot pairs a spendable balance with its allocation at a single
// observable point. Emitted on the balance event channel after every ledger
// mutation.
type BalanceSnapshot struct {
	Balance    float64             `json:"balance"`
	Allocation PortfolioAllocation `json:"allocation"`
}
