package ledger

import (
	"time" // Time and durations

	"instapay/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Money amounts
	"gorm.io/gorm"                  // GORM ORM library
)

// signedAmount validates amount for txType and returns it with the sign of the balance move.
// Deposits must be positive; withdrawals may arrive with either sign.
func signedAmount(txType string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsZero() || !amount.Equal(amount.Round(2)) {
		return decimal.Zero, ErrInvalidAmount
	}
	switch txType {
	case domain.TxDeposit:
		if amount.IsNegative() {
			return decimal.Zero, ErrInvalidAmount
		}
		return amount, nil
	case domain.TxWithdrawal:
		return amount.Abs().Neg(), nil
	}
	return decimal.Zero, ErrInvalidType
}

// checkTransactionLimit applies the per-operation cap to the absolute amount
func checkTransactionLimit(w *domain.Wallet, amount decimal.Decimal) error {
	if w.TransactionLimit.IsPositive() && amount.Abs().GreaterThan(w.TransactionLimit) {
		return &LimitError{Limit: "transaction", Max: w.TransactionLimit, Remaining: w.TransactionLimit}
	}
	return nil
}

// checkDebit verifies funds and the daily and monthly debit caps for a debit of amount (> 0)
func checkDebit(tx *gorm.DB, w *domain.Wallet, amount decimal.Decimal, now time.Time) error {
	if w.AvailableBalance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	monthly, err := debitsSince(tx, w.ID, monthStart)
	if err != nil {
		return err
	}
	daily, err := debitsSince(tx, w.ID, dayStart)
	if err != nil {
		return err
	}

	if w.DailyLimit.IsPositive() && daily.Add(amount).GreaterThan(w.DailyLimit) {
		return &LimitError{Limit: "daily", Max: w.DailyLimit, Remaining: headroom(w.DailyLimit, daily)}
	}
	if w.MonthlyLimit.IsPositive() && monthly.Add(amount).GreaterThan(w.MonthlyLimit) {
		return &LimitError{Limit: "monthly", Max: w.MonthlyLimit, Remaining: headroom(w.MonthlyLimit, monthly)}
	}
	return nil
}

// debitsSince sums completed debits of a wallet since t, as a positive number
func debitsSince(tx *gorm.DB, walletID uint, t time.Time) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := tx.Model(&domain.Transaction{}).
		Where("wallet_id = ? AND status = ? AND amount < 0 AND created_at >= ?", walletID, domain.TxCompleted, t).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total.Neg(), nil
}

func headroom(limit, used decimal.Decimal) decimal.Decimal {
	left := limit.Sub(used)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}
