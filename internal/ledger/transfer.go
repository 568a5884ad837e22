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

// Recipient selects the destination of a transfer. Exactly one field is expected.
type Recipient struct {
	WalletID      uint
	Email         string
	BeneficiaryID uint
}

// TransferInput is a wallet-to-wallet transfer requested by the sender
type TransferInput struct {
	UserID       uint
	FromWalletID uint
	ToWalletID   uint
	Pin          string
	Amount       decimal.Decimal
	Description  string
}

// TransferResult holds both wallets and both ledger rows after commit
type TransferResult struct {
	From   *domain.Wallet
	To     *domain.Wallet
	Debit  *domain.Transaction
	Credit *domain.Transaction
}

// ResolveRecipient finds the wallet a transfer should credit. Email and beneficiary
// lookups pick the recipient's active wallet in currency, preferring the default one.
func (s *Service) ResolveRecipient(ctx context.Context, userID uint, r Recipient, currency string) (uint, error) {
	db := s.db.WithContext(ctx)
	switch {
	case r.WalletID != 0:
		return r.WalletID, nil
	case r.BeneficiaryID != 0:
		var b domain.Beneficiary
		if err := db.Where("id = ? AND user_id = ?", r.BeneficiaryID, userID).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, ErrRecipientNotFound
			}
			return 0, err
		}
		if b.WalletID != nil {
			return *b.WalletID, nil
		}
		if b.Email == "" {
			return 0, ErrRecipientNotFound
		}
		return s.walletByEmail(db, b.Email, currency)
	case strings.TrimSpace(r.Email) != "":
		return s.walletByEmail(db, r.Email, currency)
	}
	return 0, ErrRecipientNotFound
}

func (s *Service) walletByEmail(db *gorm.DB, email, currency string) (uint, error) {
	var u domain.User
	if err := db.Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrRecipientNotFound
		}
		return 0, err
	}
	var w domain.Wallet
	err := db.Where("user_id = ? AND currency = ? AND status = ?", u.ID, currency, domain.WalletActive).
		Order("is_default desc, id asc").First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrRecipientNotFound
	}
	if err != nil {
		return 0, err
	}
	return w.ID, nil
}

// Transfer debits the sender and credits the recipient in one database transaction.
// Wallets are locked in ascending id order.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (res *TransferResult, err error) {
	defer func() { metrics.LedgerOperations.WithLabelValues(domain.TxTransfer, metrics.Result(err)).Inc() }()

	if !in.Amount.IsPositive() || !in.Amount.Equal(in.Amount.Round(2)) {
		return nil, ErrInvalidAmount
	}
	from, err := s.GetOwnedWallet(ctx, in.UserID, in.FromWalletID)
	if err != nil {
		return nil, err
	}
	if in.ToWalletID == from.ID {
		return nil, ErrSameWallet
	}
	if from.Status != domain.WalletActive {
		return nil, ErrWalletInactive
	}
	if err := s.VerifyPin(ctx, from, in.Pin); err != nil {
		return nil, err
	}
	if err := checkTransactionLimit(from, in.Amount); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		first, second := from.ID, in.ToWalletID
		if second < first {
			first, second = second, first
		}
		locked := map[uint]*domain.Wallet{}
		for _, id := range []uint{first, second} {
			w, err := lockWallet(tx, id)
			if errors.Is(err, ErrWalletNotFound) && id == in.ToWalletID {
				return ErrRecipientNotFound
			}
			if err != nil {
				return err
			}
			locked[id] = w
		}
		src, dst := locked[from.ID], locked[in.ToWalletID]

		if src.Status != domain.WalletActive {
			return ErrWalletInactive
		}
		if dst.Status != domain.WalletActive {
			return ErrRecipientInactive
		}
		if src.Currency != dst.Currency {
			return ErrCurrencyMismatch
		}
		if err := checkDebit(tx, src, in.Amount, now); err != nil {
			return err
		}

		group := newReference()
		description := strings.TrimSpace(in.Description)
		sender, recipient := src.UserID, dst.UserID

		srcBefore, dstBefore := src.Balance, dst.Balance
		src.Balance = srcBefore.Sub(in.Amount)
		src.AvailableBalance = src.AvailableBalance.Sub(in.Amount)
		dst.Balance = dstBefore.Add(in.Amount)
		dst.AvailableBalance = dst.AvailableBalance.Add(in.Amount)
		if err := saveBalances(tx, src, now); err != nil {
			return err
		}
		if err := saveBalances(tx, dst, now); err != nil {
			return err
		}

		debit := domain.Transaction{
			Reference:            newReference(),
			WalletID:             src.ID,
			UserID:               src.UserID,
			Type:                 domain.TxTransfer,
			Category:             domain.CategoryTransfer,
			Amount:               in.Amount.Neg(),
			Currency:             src.Currency,
			BalanceBefore:        srcBefore,
			BalanceAfter:         src.Balance,
			Status:               domain.TxCompleted,
			Description:          description,
			SenderID:             &sender,
			RecipientID:          &recipient,
			CounterpartyWalletID: &dst.ID,
			GroupReference:       group,
			CreatedAt:            now,
		}
		credit := debit
		credit.Reference = newReference()
		credit.WalletID = dst.ID
		credit.UserID = dst.UserID
		credit.Amount = in.Amount
		credit.BalanceBefore = dstBefore
		credit.BalanceAfter = dst.Balance
		credit.CounterpartyWalletID = &src.ID

		if err := tx.Create(&debit).Error; err != nil {
			return err
		}
		if err := tx.Create(&credit).Error; err != nil {
			return err
		}
		res = &TransferResult{From: src, To: dst, Debit: &debit, Credit: &credit}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
