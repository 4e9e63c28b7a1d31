// Package postgres holds the Postgres-backed custody ledger.
package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"stakehub/internal/domain"
	"stakehub/internal/ledger"
	"stakehub/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one hash-chained posting. Every pull or push writes one.
type Entry struct {
	ID           uuid.UUID       `db:"id"`
	Seq          int64           `db:"seq"`
	Op           string          `db:"op"`
	Account      string          `db:"account"`
	Amount       decimal.Decimal `db:"amount"`
	PreviousHash string          `db:"previous_hash"`
	Hash         string          `db:"hash"`
	CreatedAt    time.Time       `db:"created_at"`
}

type account struct {
	Balance   decimal.Decimal `db:"balance"`
	Allowance decimal.Decimal `db:"allowance"`
}

// CustodyLedger implements ledger.ValueLedger on Postgres. Escrowed value
// sits on the custody account's row; each transfer locks the rows it
// touches and appends a chained entry in the same transaction.
type CustodyLedger struct {
	db      *sqlx.DB
	custody domain.Address
	now     func() time.Time
}

var _ ledger.ValueLedger = (*CustodyLedger)(nil)

func NewCustodyLedger(db *sqlx.DB, custody domain.Address) *CustodyLedger {
	return &CustodyLedger{db: db, custody: custody, now: time.Now}
}

// Deposit credits a balance from outside the system, e.g. a funding bridge.
func (l *CustodyLedger) Deposit(ctx context.Context, a domain.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Validation(errors.ErrInvalidAmount)
	}
	return l.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := credit(ctx, tx, a, amount); err != nil {
			return err
		}
		return l.appendEntry(ctx, tx, "deposit", a, amount)
	})
}

// Approve sets how much the custody account may pull from owner.
func (l *CustodyLedger) Approve(ctx context.Context, owner domain.Address, amount decimal.Decimal) error {
	query := `
		INSERT INTO ledger_accounts (address, balance, allowance, updated_at)
		VALUES ($1, 0, $2, $3)
		ON CONFLICT (address) DO UPDATE SET allowance = EXCLUDED.allowance, updated_at = EXCLUDED.updated_at
	`
	_, err := l.db.ExecContext(ctx, query, owner.Hex(), amount, l.now().UTC())
	return errors.Wrap(err, "failed to set allowance")
}

func (l *CustodyLedger) BalanceOf(ctx context.Context, a domain.Address) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.db.GetContext(ctx, &balance, `SELECT balance FROM ledger_accounts WHERE address = $1`, a.Hex())
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to read balance")
	}
	return balance, nil
}

// Pull moves amount from's balance into custody, spending allowance.
func (l *CustodyLedger) Pull(ctx context.Context, from domain.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Validation(errors.ErrInvalidAmount)
	}
	return l.inTx(ctx, func(tx *sqlx.Tx) error {
		var acct account
		err := tx.GetContext(ctx, &acct, `SELECT balance, allowance FROM ledger_accounts WHERE address = $1 FOR UPDATE`, from.Hex())
		if err == sql.ErrNoRows {
			return errors.External(errors.ErrInsufficientAllowance)
		}
		if err != nil {
			return errors.External(errors.Wrap(err, "failed to lock account"))
		}
		if acct.Allowance.LessThan(amount) {
			return errors.External(errors.ErrInsufficientAllowance)
		}
		if acct.Balance.LessThan(amount) {
			return errors.External(errors.ErrInsufficientBalance)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE ledger_accounts
			SET balance = balance - $2, allowance = allowance - $2, updated_at = $3
			WHERE address = $1
		`, from.Hex(), amount, l.now().UTC())
		if err != nil {
			return errors.External(errors.Wrap(err, "failed to debit account"))
		}
		if err := credit(ctx, tx, l.custody, amount); err != nil {
			return err
		}
		return l.appendEntry(ctx, tx, "pull", from, amount)
	})
}

func (l *CustodyLedger) Push(ctx context.Context, to domain.Address, amount decimal.Decimal) error {
	return l.PushAll(ctx, ledger.Transfer{To: to, Amount: amount})
}

// PushAll pays every transfer out of custody in one database transaction.
func (l *CustodyLedger) PushAll(ctx context.Context, transfers ...ledger.Transfer) error {
	total := decimal.Zero
	for _, t := range transfers {
		if !t.Amount.IsPositive() {
			return errors.Validation(errors.ErrInvalidAmount)
		}
		total = total.Add(t.Amount)
	}
	if len(transfers) == 0 {
		return nil
	}

	return l.inTx(ctx, func(tx *sqlx.Tx) error {
		var held decimal.Decimal
		err := tx.GetContext(ctx, &held, `SELECT balance FROM ledger_accounts WHERE address = $1 FOR UPDATE`, l.custody.Hex())
		if err != nil && err != sql.ErrNoRows {
			return errors.External(errors.Wrap(err, "failed to lock custody"))
		}
		if held.LessThan(total) {
			return errors.External(errors.Wrap(errors.ErrTransferFailed, "custody underfunded"))
		}

		_, err = tx.ExecContext(ctx, `UPDATE ledger_accounts SET balance = balance - $2, updated_at = $3 WHERE address = $1`,
			l.custody.Hex(), total, l.now().UTC())
		if err != nil {
			return errors.External(errors.Wrap(err, "failed to debit custody"))
		}
		for _, t := range transfers {
			if err := credit(ctx, tx, t.To, t.Amount); err != nil {
				return err
			}
			if err := l.appendEntry(ctx, tx, "push", t.To, t.Amount); err != nil {
				return err
			}
		}
		return nil
	})
}

// VerifyChain walks every entry in order and recomputes its hash.
func (l *CustodyLedger) VerifyChain(ctx context.Context) error {
	var entries []Entry
	if err := l.db.SelectContext(ctx, &entries, `SELECT * FROM ledger_entries ORDER BY seq ASC`); err != nil {
		return errors.Wrap(err, "failed to read ledger")
	}

	prev := genesisHash
	for i, e := range entries {
		if e.PreviousHash != prev {
			return fmt.Errorf("chain broken at index %d: expected prev_hash %s, got %s", i, prev, e.PreviousHash)
		}
		if want := entryHash(e.ID, e.Op, e.Account, e.Amount, e.PreviousHash, e.CreatedAt); e.Hash != want {
			return fmt.Errorf("hash mismatch at index %d: expected %s, got %s", i, want, e.Hash)
		}
		prev = e.Hash
	}
	return nil
}

func (l *CustodyLedger) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.External(errors.Wrap(err, "failed to begin transaction"))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.External(errors.Wrap(err, "failed to commit transaction"))
	}
	return nil
}

func credit(ctx context.Context, tx *sqlx.Tx, a domain.Address, amount decimal.Decimal) error {
	query := `
		INSERT INTO ledger_accounts (address, balance, allowance, updated_at)
		VALUES ($1, $2, 0, now())
		ON CONFLICT (address) DO UPDATE SET balance = ledger_accounts.balance + EXCLUDED.balance, updated_at = now()
	`
	if _, err := tx.ExecContext(ctx, query, a.Hex(), amount); err != nil {
		return errors.External(errors.Wrap(err, "failed to credit account"))
	}
	return nil
}

func (l *CustodyLedger) appendEntry(ctx context.Context, tx *sqlx.Tx, op string, a domain.Address, amount decimal.Decimal) error {
	// Locking the newest entry serializes writers so the chain never forks.
	var prev string
	err := tx.GetContext(ctx, &prev, `SELECT hash FROM ledger_entries ORDER BY seq DESC LIMIT 1 FOR UPDATE`)
	if err == sql.ErrNoRows {
		prev = genesisHash
	} else if err != nil {
		return errors.External(errors.Wrap(err, "failed to read chain head"))
	}

	e := Entry{
		ID:           uuid.New(),
		Op:           op,
		Account:      a.Hex(),
		Amount:       amount,
		PreviousHash: prev,
		CreatedAt:    l.now().UTC().Truncate(time.Microsecond),
	}
	e.Hash = entryHash(e.ID, e.Op, e.Account, e.Amount, e.PreviousHash, e.CreatedAt)

	query := `
		INSERT INTO ledger_entries (id, op, account, amount, previous_hash, hash, created_at)
		VALUES (:id, :op, :account, :amount, :previous_hash, :hash, :created_at)
	`
	if _, err := tx.NamedExecContext(ctx, query, e); err != nil {
		return errors.External(errors.Wrap(err, "failed to insert ledger entry"))
	}
	return nil
}

func entryHash(id uuid.UUID, op, account string, amount decimal.Decimal, prev string, at time.Time) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s:%d", id, op, account, amount.String(), prev, at.UnixNano())
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
