package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/holiman/uint256"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
)

// MemoryLedger is an in-process balance ledger. Settlements debit the
// funder by the full amount and credit the business and the fee sink.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[interfaces.Address]*uint256.Int
	log      *slog.Logger
}

// NewMemoryLedger creates a ledger with every balance at zero.
func NewMemoryLedger(log *slog.Logger) *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[interfaces.Address]*uint256.Int),
		log:      log,
	}
}

// Deposit credits addr with amount.
func (l *MemoryLedger) Deposit(addr interfaces.Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balance(addr).AddUint64(l.balance(addr), amount)
}

// BalanceOf returns a copy of the balance of addr.
func (l *MemoryLedger) BalanceOf(addr interfaces.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balance(addr).Clone()
}

// Settle moves Net to the business and Fee to the fee sink out of the
// funder's balance, or nothing if the funder cannot cover Amount.
func (l *MemoryLedger) Settle(ctx context.Context, s interfaces.Settlement) error {
	if s.Net+s.Fee != s.Amount || s.Net > s.Amount {
		return fmt.Errorf("settlement parts %d+%d do not add up to %d", s.Net, s.Fee, s.Amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	amount := uint256.NewInt(s.Amount)
	funderBalance := l.balance(s.Funder)
	if funderBalance.Lt(amount) {
		l.log.Debug("Funder balance too low", "funder", s.Funder, "balance", funderBalance.Dec(), "amount", s.Amount)
		return fmt.Errorf("%w: funder %s holds %s, needs %d", interfaces.ErrInsufficientFunds, s.Funder, funderBalance.Dec(), s.Amount)
	}

	funderBalance.Sub(funderBalance, amount)
	business := l.balance(s.Business)
	business.AddUint64(business, s.Net)
	sink := l.balance(s.FeeSink)
	sink.AddUint64(sink, s.Fee)

	l.log.Debug("Settled funding", "invoice", s.Key.String(), "funder", s.Funder, "net", s.Net, "fee", s.Fee)
	return nil
}

// balance returns the mutable balance of addr. Must be called with l.mu held.
func (l *MemoryLedger) balance(addr interfaces.Address) *uint256.Int {
	b, ok := l.balances[addr]
	if !ok {
		b = new(uint256.Int)
		l.balances[addr] = b
	}
	return b
}
