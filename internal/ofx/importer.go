package ofx

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/Veraticus/casa/internal/service"
)

// ImportResult counts what an import did.
type ImportResult struct {
	Parsed     int
	Posted     int
	Duplicates int
}

// Importer posts parsed statement charges to a card.
type Importer struct {
	parser *Parser
	store  service.CardStore
}

// NewImporter creates an importer over store.
func NewImporter(store service.CardStore) *Importer {
	return &Importer{parser: NewParser(), store: store}
}

// Import parses reader and posts every new charge to cardID. Charges already
// posted (same hash) are counted as duplicates. progress, when non-nil, is
// called once per parsed charge.
func (i *Importer) Import(ctx context.Context, cardID string, reader io.Reader, progress func()) (ImportResult, error) {
	if _, err := i.store.GetCard(ctx, cardID); err != nil {
		return ImportResult{}, fmt.Errorf("card %s: %w", cardID, err)
	}

	txns, err := i.parser.ParseCardStatement(ctx, reader, cardID)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{Parsed: len(txns)}
	for idx := range txns {
		txn := txns[idx]
		if txn.ID == "" {
			txn.ID = uuid.NewString()
		} else {
			txn.ID = cardID + ":" + txn.ID
		}

		posted, err := i.store.PostCardTransaction(ctx, &txn)
		if err != nil {
			return result, fmt.Errorf("failed to post %q: %w", txn.Description, err)
		}
		if posted {
			result.Posted++
		} else {
			result.Duplicates++
		}
		if progress != nil {
			progress()
		}
	}
	return result, nil
}
