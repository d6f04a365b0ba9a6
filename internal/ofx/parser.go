// Package ofx imports credit card statements in OFX/QFX format.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/casa/internal/model"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)

	// installmentRegex matches "PARC 03/12", "PARCELA 3 DE 12" or a bare "03/12" at the end.
	installmentRegex = regexp.MustCompile(`(?i)\s*(?:-\s*)?(?:\bPARC(?:ELA)?\.?\s*)?(\d{1,2})\s*(?:/|\bDE\b)\s*(\d{1,2})\s*$`)
)

// Parser converts OFX card statements into card transactions.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// Mixed-case SEVERITY values are rejected by ofxgo.
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML files from some issuers drop the closing bracket of bare tags.
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

func (p *Parser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// ParseCardStatement returns the charges of every card statement in the file,
// attributed to cardID. Credits such as bill payments are skipped.
func (p *Parser) ParseCardStatement(_ context.Context, reader io.Reader, cardID string) ([]model.CreditCardTransaction, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var txns []model.CreditCardTransaction
	var stmts, skipped int
	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		stmts++
		for _, ofxTx := range stmt.BankTranList.Transactions {
			txn, ok := p.convertTransaction(ofxTx, cardID)
			if !ok {
				skipped++
				continue
			}
			txns = append(txns, txn)
		}
	}

	if len(resp.Bank) > 0 {
		slog.Warn("Ignoring bank statements in card import", "bank_statements", len(resp.Bank))
	}

	slog.Info("Parsed OFX card statement",
		"charges", len(txns),
		"skipped_credits", skipped,
		"cc_statements", stmts)

	return txns, nil
}

// convertTransaction turns a debit into a charge. It reports false for credits.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, cardID string) (model.CreditCardTransaction, bool) {
	amount, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(2))
	if err != nil || !amount.IsNegative() {
		return model.CreditCardTransaction{}, false
	}

	description, current, total := splitInstallment(p.extractMerchantName(ofxTx))

	txn := model.CreditCardTransaction{
		ID:                 string(ofxTx.FiTID),
		CardID:             cardID,
		PurchaseDate:       ofxTx.DtPosted.Time,
		Amount:             amount.Neg(),
		Description:        description,
		InstallmentCurrent: current,
		InstallmentTotal:   total,
	}
	txn.Hash = txn.GenerateHash()
	return txn, true
}

// splitInstallment removes an installment suffix from description and returns
// the slice numbers. Descriptions without one are a single 1/1 charge.
func splitInstallment(description string) (string, int, int) {
	m := installmentRegex.FindStringSubmatchIndex(description)
	if m == nil {
		return description, 1, 1
	}
	current, _ := strconv.Atoi(description[m[2]:m[3]])
	total, _ := strconv.Atoi(description[m[4]:m[5]])
	if total < 2 || current < 1 || current > total {
		return description, 1, 1
	}
	return strings.TrimSpace(description[:m[0]]), current, total
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := string(tx.Name)
	if tx.Memo != "" && (isGenericDescription(name) || strings.TrimSpace(name) == "") {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"COMPRA CARTAO ",
		"COMPRA COM CARTAO ",
		"COMPRA ",
		"PAG*",
		"PG *",
		"EC *",
	}
	upper := strings.ToUpper(name)
	for _, prefix := range prefixes {
		if strings.HasPrefix(upper, prefix) {
			name = strings.TrimSpace(name[len(prefix):])
			break
		}
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	generic := []string{
		"COMPRA",
		"DEBITO",
		"CREDITO",
		"PAGAMENTO",
		"COMPRA CARTAO",
	}

	upperName := strings.ToUpper(strings.TrimSpace(name))
	for _, g := range generic {
		if upperName == g {
			return true
		}
	}
	return false
}

// Accounts extracts the unique card account IDs in the file.
func (p *Parser) Accounts(_ context.Context, reader io.Reader) ([]string, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var accounts []string
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			id := string(stmt.CCAcctFrom.AcctID)
			if id != "" && !seen[id] {
				seen[id] = true
				accounts = append(accounts, id)
			}
		}
	}
	return accounts, nil
}
