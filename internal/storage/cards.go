package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/casa/internal/common"
	"github.com/Veraticus/casa/internal/credit"
	"github.com/Veraticus/casa/internal/model"
)

const cardColumns = `id, household_id, name, owner_id, credit_limit, current_balance,
	closing_day, due_day, is_shared`

func scanCard(row rowScanner) (*model.CreditCard, error) {
	var card model.CreditCard
	err := row.Scan(
		&card.ID,
		&card.HouseholdID,
		&card.Name,
		&card.OwnerID,
		&card.CreditLimit,
		&card.CurrentBalance,
		&card.ClosingDay,
		&card.DueDay,
		&card.IsShared,
	)
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// CreateCard inserts a credit card.
func (s *SQLiteStorage) CreateCard(ctx context.Context, card *model.CreditCard) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCard(card); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credit_cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID,
		card.HouseholdID,
		card.Name,
		card.OwnerID,
		card.CreditLimit,
		card.CurrentBalance,
		card.ClosingDay,
		card.DueDay,
		card.IsShared,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("card %s: %w", card.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// GetCard retrieves a card by ID.
func (s *SQLiteStorage) GetCard(ctx context.Context, id string) (*model.CreditCard, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getCardTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getCardTx(ctx context.Context, q queryable, id string) (*model.CreditCard, error) {
	card, err := scanCard(q.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM credit_cards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("card %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

// ListCards returns the household's cards ordered by name.
func (s *SQLiteStorage) ListCards(ctx context.Context, householdID string) ([]model.CreditCard, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(householdID, "householdID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cardColumns+` FROM credit_cards
		WHERE household_id = ?
		ORDER BY name, id
	`, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cards []model.CreditCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// ListCardTransactions returns a card's transactions, oldest first.
func (s *SQLiteStorage) ListCardTransactions(ctx context.Context, cardID string) ([]model.CreditCardTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(cardID, "cardID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, card_id, hash, purchase_date, description, amount,
			installment_current, installment_total, third_party_name, reimbursement_status
		FROM credit_card_transactions
		WHERE card_id = ?
		ORDER BY purchase_date, id
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query card transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.CreditCardTransaction
	for rows.Next() {
		var txn model.CreditCardTransaction
		if err := rows.Scan(
			&txn.ID,
			&txn.CardID,
			&txn.Hash,
			&txn.PurchaseDate,
			&txn.Description,
			&txn.Amount,
			&txn.InstallmentCurrent,
			&txn.InstallmentTotal,
			&txn.ThirdPartyName,
			&txn.ReimbursementStatus,
		); err != nil {
			return nil, fmt.Errorf("failed to scan card transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// PostCardTransaction inserts txn and adds its amount to the card's balance in
// one transaction. It returns false without changes when the hash already exists.
func (s *SQLiteStorage) PostCardTransaction(ctx context.Context, txn *model.CreditCardTransaction) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if txn != nil {
		if txn.InstallmentTotal == 0 {
			txn.InstallmentTotal = 1
		}
		if txn.InstallmentCurrent == 0 {
			txn.InstallmentCurrent = 1
		}
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}
	}
	if err := validateCardTransaction(txn); err != nil {
		return false, err
	}

	posted := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		card, err := s.getCardTx(ctx, tx, txn.CardID)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO credit_card_transactions (id, card_id, hash, purchase_date,
				description, amount, installment_current, installment_total,
				third_party_name, reimbursement_status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			txn.ID,
			txn.CardID,
			txn.Hash,
			txn.PurchaseDate.UTC(),
			txn.Description,
			txn.Amount,
			txn.InstallmentCurrent,
			txn.InstallmentTotal,
			txn.ThirdPartyName,
			txn.ReimbursementStatus,
		)
		if err != nil {
			return fmt.Errorf("failed to insert card transaction: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check insert result: %w", err)
		}
		if n == 0 {
			return nil
		}

		updated := credit.Post(*card, *txn)
		if _, err := tx.ExecContext(ctx, `UPDATE credit_cards SET current_balance = ? WHERE id = ?`,
			updated.CurrentBalance, card.ID); err != nil {
			return fmt.Errorf("failed to update card balance: %w", err)
		}
		posted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return posted, nil
}

// UpdateReimbursementStatus changes the only mutable field of a posted transaction.
func (s *SQLiteStorage) UpdateReimbursementStatus(ctx context.Context, txnID string, status model.ReimbursementStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(txnID, "txnID"); err != nil {
		return err
	}
	switch status {
	case model.ReimbursementNone, model.ReimbursementPending, model.ReimbursementPaid:
	default:
		return fmt.Errorf("%w: reimbursement status %q", ErrInvalidCardTransaction, status)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE credit_card_transactions SET reimbursement_status = ? WHERE id = ?`, status, txnID)
	if err != nil {
		return fmt.Errorf("failed to update reimbursement status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("card transaction %s: %w", txnID, common.ErrNotFound)
	}
	return nil
}
