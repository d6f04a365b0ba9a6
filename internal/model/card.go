package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReimbursementStatus tracks money owed back by a third party for a charge.
type ReimbursementStatus string

const (
	ReimbursementNone    ReimbursementStatus = ""
	ReimbursementPending ReimbursementStatus = "pending"
	ReimbursementPaid    ReimbursementStatus = "paid"
)

// CreditCard is a credit instrument owned or shared by household members.
type CreditCard struct {
	CreditLimit    decimal.Decimal
	CurrentBalance decimal.Decimal
	ID             string
	HouseholdID    string
	Name           string
	OwnerID        string
	ClosingDay     int
	DueDay         int
	IsShared       bool
}

// CreditCardTransaction is a posted charge, either one-off or one slice of an installment plan.
type CreditCardTransaction struct {
	PurchaseDate        time.Time
	Amount              decimal.Decimal
	ID                  string
	CardID              string
	Description         string
	ThirdPartyName      string
	ReimbursementStatus ReimbursementStatus
	Hash                string
	InstallmentCurrent  int
	InstallmentTotal    int
}

// IsInstallment reports whether the charge belongs to a multi-installment plan.
func (t CreditCardTransaction) IsInstallment() bool {
	return t.InstallmentTotal > 1
}

// GenerateHash creates a unique hash for duplicate detection on import.
func (t *CreditCardTransaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s:%d/%d",
		t.CardID,
		t.PurchaseDate.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.Description,
		t.InstallmentCurrent,
		t.InstallmentTotal)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
