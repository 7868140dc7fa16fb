package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"manifest/internal/domain"
)

// Ledger remembers which paid sessions have already bought a render. It is
// process-local and forgets everything on restart.
type Ledger struct {
	verifier Verifier

	mu       sync.Mutex
	consumed map[string]struct{}
}

func NewLedger(verifier Verifier) *Ledger {
	return &Ledger{verifier: verifier, consumed: make(map[string]struct{})}
}

// Consume verifies sessionID and marks it spent. The session is reserved
// before verification so concurrent submissions cannot both redeem it.
// Unpaid, unknown or already spent sessions yield domain.ErrPaymentRequired.
func (l *Ledger) Consume(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", domain.ErrPaymentRequired)
	}

	l.mu.Lock()
	if _, spent := l.consumed[sessionID]; spent {
		l.mu.Unlock()
		return fmt.Errorf("%w: session already used", domain.ErrPaymentRequired)
	}
	l.consumed[sessionID] = struct{}{}
	l.mu.Unlock()

	paid, err := l.verifier.IsPaid(ctx, sessionID)
	if err != nil {
		l.Release(sessionID)
		return fmt.Errorf("%w: verify session: %w", domain.ErrPaymentRequired, err)
	}
	if !paid {
		l.Release(sessionID)
		return fmt.Errorf("%w: session not paid", domain.ErrPaymentRequired)
	}
	return nil
}

// Release returns a consumed session to the unspent pool, for use when the
// job it paid for could not be accepted.
func (l *Ledger) Release(sessionID string) {
	l.mu.Lock()
	delete(l.consumed, strings.TrimSpace(sessionID))
	l.mu.Unlock()
}

// Consumed reports whether sessionID has been spent.
func (l *Ledger) Consumed(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.consumed[strings.TrimSpace(sessionID)]
	return ok
}
