package stake

// Tx collects undo actions for every write made through it. Callers defer
// Rollback right after Begin and call Commit once the external transfer has
// succeeded; Rollback after Commit is a no-op. When the store is backed,
// Commit hands the written records to the backend.
type Tx struct {
	undo  []func()
	done  bool
	batch Batch
	flush func(*Batch)
}

func (tx *Tx) onRollback(fn func()) {
	tx.undo = append(tx.undo, fn)
}

func (tx *Tx) Commit() {
	if tx.done {
		return
	}
	tx.undo = nil
	tx.done = true
	if tx.flush != nil && !tx.batch.empty() {
		tx.flush(&tx.batch)
	}
}

func (tx *Tx) Rollback() {
	if tx.done {
		return
	}
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.done = true
}
