// Package credits implements the per-user metered balance for consumable
// resources. All mutations go through single guarded SQL statements so the
// database serializes concurrent access; the ledger never does a
// read-modify-write in application code.
package credits

import (
	"context"
	"fmt"

	"posterforge/internal/domain"
	"posterforge/internal/infra"
	"posterforge/internal/sqlinline"
)

type Ledger struct {
	sql infra.SQLExecutor
}

func NewLedger(sql infra.SQLExecutor) *Ledger {
	return &Ledger{sql: sql}
}

// TryDebit consumes one credit from the named counter. It returns
// domain.ErrInsufficientCredit when the pre-debit balance is not strictly
// positive; in that case no decrement is applied. Debits carry no
// idempotency key: each consuming job id is unique and consumes at most once.
func (l *Ledger) TryDebit(ctx context.Context, userID string, counter domain.CreditCounter) (int, error) {
	if !counter.Valid() {
		return 0, fmt.Errorf("credits: unknown counter %q", counter)
	}
	var remaining int
	row := l.sql.QueryRow(ctx, sqlinline.QTryDebitCredit, userID, string(counter))
	if err := row.Scan(&remaining); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrInsufficientCredit
		}
		return 0, fmt.Errorf("credits: debit: %w", err)
	}
	return remaining, nil
}

// Grant adds amount to the counter, at most once per eventID. A redelivered
// payment notification with an already-seen eventID is absorbed: applied is
// false and the balance is untouched.
func (l *Ledger) Grant(ctx context.Context, userID string, counter domain.CreditCounter, amount int, eventID string) (applied bool, err error) {
	if !counter.Valid() {
		return false, fmt.Errorf("credits: unknown counter %q", counter)
	}
	if amount <= 0 {
		return false, fmt.Errorf("credits: grant amount must be positive, got %d", amount)
	}
	if eventID == "" {
		return false, fmt.Errorf("credits: grant requires an event id")
	}
	var accepted int
	row := l.sql.QueryRow(ctx, sqlinline.QGrantCredit, eventID, userID, string(counter), amount)
	if err := row.Scan(&accepted); err != nil {
		return false, fmt.Errorf("credits: grant: %w", err)
	}
	return accepted > 0, nil
}

// Balance reads the current value of one counter; missing rows read as zero.
func (l *Ledger) Balance(ctx context.Context, userID string, counter domain.CreditCounter) (int, error) {
	var balance int
	row := l.sql.QueryRow(ctx, sqlinline.QSelectCreditBalance, userID, string(counter))
	if err := row.Scan(&balance); err != nil {
		return 0, fmt.Errorf("credits: balance: %w", err)
	}
	return balance, nil
}
