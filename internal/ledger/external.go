package ledger

import (
	"context" // Context propagation
	"errors"  // Error matching
	"strings" // String manipulation

	"instapay/internal/domain"  // Importing domain models
	"instapay/internal/metrics" // Prometheus collectors

	"github.com/shopspring/decimal" // Money amounts
	"gorm.io/gorm"                  // GORM ORM library
)

// ExternalCredit is money captured by the payment processor for a wallet
type ExternalCredit struct {
	UserID      uint
	WalletID    uint
	Amount      decimal.Decimal
	Currency    string
	ExternalRef string // Processor id, recorded once
	Description string
	Metadata    domain.JSONMap
}

// CreditExternal credits a wallet for a captured payment. A reference that is already on
// the ledger returns the existing row with ErrAlreadyProcessed and moves no money.
// Limits do not apply: the funds have already been collected. A closed wallet is refused
// with ErrWalletInactive, a frozen one is still credited.
func (s *Service) CreditExternal(ctx context.Context, in ExternalCredit) (wallet *domain.Wallet, entry *domain.Transaction, err error) {
	defer func() {
		result := metrics.Result(err)
		if errors.Is(err, ErrAlreadyProcessed) {
			result = "duplicate"
		}
		metrics.LedgerOperations.WithLabelValues("EXTERNAL_CREDIT", result).Inc()
	}()

	if !in.Amount.IsPositive() || in.ExternalRef == "" {
		return nil, nil, ErrInvalidAmount
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Transaction
		err := tx.Where("external_reference = ?", in.ExternalRef).First(&existing).Error
		if err == nil {
			entry = &existing
			return ErrAlreadyProcessed
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		w, err := lockWallet(tx, in.WalletID)
		if err != nil {
			return err
		}
		if w.UserID != in.UserID {
			return ErrWalletNotFound
		}
		if w.Status == domain.WalletClosed {
			return ErrWalletInactive
		}
		if in.Currency != "" && !strings.EqualFold(in.Currency, w.Currency) {
			return ErrCurrencyMismatch
		}

		now := s.now()
		before := w.Balance
		w.Balance = before.Add(in.Amount)
		w.AvailableBalance = w.AvailableBalance.Add(in.Amount)
		if err := saveBalances(tx, w, now); err != nil {
			return err
		}

		ref := in.ExternalRef
		row := domain.Transaction{
			Reference:         newReference(),
			WalletID:          w.ID,
			UserID:            w.UserID,
			Type:              domain.TxDeposit,
			Category:          domain.CategoryTopUp,
			Amount:            in.Amount,
			Currency:          w.Currency,
			BalanceBefore:     before,
			BalanceAfter:      w.Balance,
			Status:            domain.TxCompleted,
			Description:       in.Description,
			ExternalReference: &ref,
			Metadata:          in.Metadata,
			CreatedAt:         now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		wallet, entry = w, &row
		return nil
	})
	if errors.Is(err, ErrAlreadyProcessed) {
		return nil, entry, err
	}
	if err != nil {
		return nil, nil, err
	}
	return wallet, entry, nil
}
