package types

type EntryKind string

type EntryStatus string

type TradeSide string

type NotificationCategory string

const (
	EntryKindDeposit    EntryKind = "deposit"
	EntryKindWithdrawal EntryKind = "withdrawal"
	EntryKindTrade      EntryKind = "trade"
)

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusRejected  EntryStatus = "rejected"
)

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

const (
	NotificationTransactionCompleted NotificationCategory = "transaction-completed"
	NotificationTransactionRejected  NotificationCategory = "transaction-rejected"
	NotificationTradeExecuted        NotificationCategory = "trade-executed"
)

// Terminal reports whether the status permits no further transitions.
func (s EntryStatus) Terminal() bool {
	return s == EntryStatusCompleted || s == EntryStatusRejected
}
