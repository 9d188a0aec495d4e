package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
)

var (
	// ErrNoTransactOpts is returned when a settlement is attempted without
	// first setting transaction options.
	ErrNoTransactOpts = errors.New("no authorized transactor available")

	// ErrSettlementPending is returned when an earlier transfer for the same
	// invoice is still outstanding under different terms.
	ErrSettlementPending = errors.New("settlement already sent with different terms")
)

// DefaultMineTimeout bounds how long a sent settlement is waited on.
const DefaultMineTimeout = 2 * time.Minute

// EthBackend is the subset of an Ethereum client the escrow ledger needs.
// Both *ethclient.Client and the simulated backend client satisfy it.
type EthBackend interface {
	ethereum.ChainStateReader
	ethereum.GasPricer
	ethereum.TransactionReader
	ethereum.TransactionSender
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// EthLedger settles fundings from an escrow account on an Ethereum-compatible
// chain. Amounts are denominated in wei. The escrow is also the fee sink:
// only the net amount leaves it.
//
// A transfer that was broadcast but not seen mined stays pending under its
// invoice key. Settling the same invoice again waits on that transfer
// instead of sending a second one.
type EthLedger struct {
	backend     EthBackend
	auth        *bind.TransactOpts
	mineTimeout time.Duration
	log         *slog.Logger

	mu      sync.Mutex
	pending map[interfaces.InvoiceKey]*types.Transaction
}

// NewEthLedger creates a ledger over backend. SetTransactOpts must be called
// before the first settlement.
func NewEthLedger(backend EthBackend, log *slog.Logger) *EthLedger {
	return &EthLedger{
		backend:     backend,
		mineTimeout: DefaultMineTimeout,
		log:         log,
		pending:     make(map[interfaces.InvoiceKey]*types.Transaction),
	}
}

// SetTransactOpts sets the escrow signer.
func (l *EthLedger) SetTransactOpts(auth *bind.TransactOpts) {
	l.auth = auth
}

// SetMineTimeout sets how long Settle waits for a sent transfer to be mined.
func (l *EthLedger) SetMineTimeout(d time.Duration) {
	l.mineTimeout = d
}

// Escrow returns the escrow address, which is also the fee sink.
func (l *EthLedger) Escrow() (common.Address, error) {
	if l.auth == nil {
		return common.Address{}, ErrNoTransactOpts
	}
	return l.auth.From, nil
}

// Pending returns the hash of the outstanding transfer for key, if any.
func (l *EthLedger) Pending(key interfaces.InvoiceKey) (common.Hash, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.pending[key]
	if !ok {
		return common.Hash{}, false
	}
	return tx.Hash(), true
}

// Settle transfers s.Net from the escrow to the business and waits until
// the transfer is mined. Once the transfer is broadcast, cancelling ctx no
// longer aborts the wait; only the ledger's mine timeout does.
func (l *EthLedger) Settle(ctx context.Context, s interfaces.Settlement) error {
	if l.auth == nil {
		return ErrNoTransactOpts
	}
	if s.FeeSink != l.auth.From {
		return fmt.Errorf("fee sink %s is not the escrow %s", s.FeeSink, l.auth.From)
	}

	value := new(big.Int).SetUint64(s.Net)

	tx, err := l.outstanding(ctx, s.Key)
	if err != nil {
		return err
	}
	if tx != nil {
		if *tx.To() != s.Business || tx.Value().Cmp(value) != 0 {
			return fmt.Errorf("%w: %s paid %s wei to %s", ErrSettlementPending, tx.Hash(), tx.Value(), tx.To())
		}
		l.log.Info("Waiting on earlier settlement", "invoice", s.Key.String(), "tx", tx.Hash())
	} else {
		tx, err = l.send(ctx, s.Business, value)
		if err != nil {
			return err
		}
		l.mu.Lock()
		l.pending[s.Key] = tx
		l.mu.Unlock()
		l.log.Info("Settlement sent", "invoice", s.Key.String(), "tx", tx.Hash(), "to", s.Business, "value", value)
	}

	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.mineTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, l.backend, tx)
	if err != nil {
		return fmt.Errorf("settlement %s not mined: %w", tx.Hash(), err)
	}

	l.mu.Lock()
	delete(l.pending, s.Key)
	l.mu.Unlock()

	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("settlement transaction %s reverted", tx.Hash())
	}

	l.log.Info("Settlement mined", "invoice", s.Key.String(), "tx", tx.Hash(), "block", receipt.BlockNumber)
	return nil
}

// outstanding returns the pending transfer for key. A transfer the node no
// longer knows about was dropped from the pool and is forgotten.
func (l *EthLedger) outstanding(ctx context.Context, key interfaces.InvoiceKey) (*types.Transaction, error) {
	l.mu.Lock()
	tx, ok := l.pending[key]
	l.mu.Unlock()
	if !ok {
		return nil, nil
	}

	_, _, err := l.backend.TransactionByHash(ctx, tx.Hash())
	switch {
	case err == nil:
		return tx, nil
	case errors.Is(err, ethereum.NotFound):
		l.log.Warn("Pending settlement was dropped, resending", "invoice", key.String(), "tx", tx.Hash())
		l.mu.Lock()
		delete(l.pending, key)
		l.mu.Unlock()
		return nil, nil
	default:
		return nil, fmt.Errorf("could not look up pending settlement %s: %w", tx.Hash(), err)
	}
}

func (l *EthLedger) send(ctx context.Context, to common.Address, value *big.Int) (*types.Transaction, error) {
	gasPrice, err := l.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not suggest gas price: %w", err)
	}

	balance, err := l.backend.BalanceAt(ctx, l.auth.From, nil)
	if err != nil {
		return nil, fmt.Errorf("could not read escrow balance: %w", err)
	}
	cost := new(big.Int).Mul(gasPrice, big.NewInt(int64(params.TxGas)))
	cost.Add(cost, value)
	if balance.Cmp(cost) < 0 {
		return nil, fmt.Errorf("%w: escrow %s holds %s wei, needs %s", interfaces.ErrInsufficientFunds, l.auth.From, balance, cost)
	}

	nonce, err := l.backend.PendingNonceAt(ctx, l.auth.From)
	if err != nil {
		return nil, fmt.Errorf("could not get escrow nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      params.TxGas,
		GasPrice: gasPrice,
	})

	signed, err := l.auth.Signer(l.auth.From, tx)
	if err != nil {
		return nil, fmt.Errorf("could not sign settlement: %w", err)
	}

	if err := l.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("could not send settlement: %w", err)
	}
	return signed, nil
}
