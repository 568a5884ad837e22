package ledger

import (
	"context" // Context propagation
	"strings" // String manipulation

	"instapay/internal/domain"  // Importing domain models
	"instapay/internal/metrics" // Prometheus collectors

	"github.com/shopspring/decimal" // Money amounts
	"gorm.io/gorm"                  // GORM ORM library
)

// BalanceChange is a deposit or withdrawal requested by the wallet owner
type BalanceChange struct {
	UserID      uint
	WalletID    uint
	Pin         string
	Amount      decimal.Decimal // Positive, or negative for withdrawals
	Type        string          // DEPOSIT or WITHDRAWAL
	Category    string
	Description string
}

// UpdateBalance verifies the PIN and limits, then moves the balance and appends one ledger row
// in a single database transaction. It returns the updated wallet and the new row.
func (s *Service) UpdateBalance(ctx context.Context, in BalanceChange) (wallet *domain.Wallet, entry *domain.Transaction, err error) {
	defer func() {
		label := in.Type
		if label != domain.TxDeposit && label != domain.TxWithdrawal {
			label = "INVALID"
		}
		metrics.LedgerOperations.WithLabelValues(label, metrics.Result(err)).Inc()
	}()

	delta, err := signedAmount(in.Type, in.Amount)
	if err != nil {
		return nil, nil, err
	}

	w, err := s.GetOwnedWallet(ctx, in.UserID, in.WalletID)
	if err != nil {
		return nil, nil, err
	}
	if w.Status != domain.WalletActive {
		return nil, nil, ErrWalletInactive
	}
	if err := s.VerifyPin(ctx, w, in.Pin); err != nil {
		return nil, nil, err
	}
	if err := checkTransactionLimit(w, delta); err != nil {
		return nil, nil, err
	}

	category := strings.ToUpper(strings.TrimSpace(in.Category))
	if category == "" {
		category = domain.CategoryTopUp
		if delta.IsNegative() {
			category = domain.CategoryCashOut
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		locked, err := lockWallet(tx, w.ID)
		if err != nil {
			return err
		}
		if locked.Status != domain.WalletActive {
			return ErrWalletInactive
		}
		if delta.IsNegative() {
			if err := checkDebit(tx, locked, delta.Neg(), now); err != nil {
				return err
			}
		}

		before := locked.Balance
		locked.Balance = before.Add(delta)
		locked.AvailableBalance = locked.AvailableBalance.Add(delta)
		if err := saveBalances(tx, locked, now); err != nil {
			return err // Return error to rollback
		}

		row := domain.Transaction{
			Reference:     newReference(),
			WalletID:      locked.ID,
			UserID:        locked.UserID,
			Type:          in.Type,
			Category:      category,
			Amount:        delta,
			Currency:      locked.Currency,
			BalanceBefore: before,
			BalanceAfter:  locked.Balance,
			Status:        domain.TxCompleted,
			Description:   strings.TrimSpace(in.Description),
			CreatedAt:     now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err // Return error to rollback
		}
		wallet, entry = locked, &row
		return nil // Commit transaction
	})
	if err != nil {
		return nil, nil, err
	}
	return wallet, entry, nil
}
