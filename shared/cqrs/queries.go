package cqrs

// ---------- User queries ----------

type GetUserQuery struct {
	UserID string
}

// ---------- Account queries ----------

// GetAccountQuery fetches a single account, subject to ownership check.
type GetAccountQuery struct {
	AccountID        string
	RequestingUserID string
}

// ListAccountsQuery fetches all accounts belonging to a user.
type ListAccountsQuery struct {
	UserID string
}

// ---------- Transaction queries ----------

// GetTransactionQuery fetches a single transaction touching one of the
// caller's accounts.
type GetTransactionQuery struct {
	TransactionID string
	UserID        string
}

// ListTransactionsQuery carries the raw listing filters as received from the
// client. AccountID narrows the listing to one owned account. Dates are
// YYYY-MM-DD.
type ListTransactionsQuery struct {
	UserID    string
	AccountID string
	Direction string
	Status    string
	Kind      string
	FromDate  string
	ToDate    string
	Page      int
	Limit     int
}

// ---------- Report queries ----------

// ReportQuery requests a balance report over an account or a user's accounts.
type ReportQuery struct {
	Scope            string
	ScopeID          string
	StartDate        string
	EndDate          string
	GroupBy          string
	Currency         string
	RequestingUserID string
}
