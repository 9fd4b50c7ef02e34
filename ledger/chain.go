/*
chain.go - Running balance maintenance

PURPOSE:
  Keeps the running-balance invariant intact across the ledger:

    running_balance[i] = running_balance[i-1] + net_usd[i]
    running_balance[0] = opening_balance

  Any insert away from the tail, any edit that changes a row's net USD,
  and any delete breaks the invariant for every subsequent row. RecalcFrom
  repairs a contiguous suffix in one pass.

SEE ALSO:
  - book.go: Container operations that create the repair obligation
  - fx.go: Net USD derivation
*/
package ledger

// RecalcFrom re-derives RunningBalanceUSD for book.Transactions[start:],
// anchored on the previous row's balance or, for the first row, on the
// configured opening balance. Out-of-range starts clamp rather than fail:
// a delete at the tail legitimately leaves nothing to repair.
func RecalcFrom(book *Book, start RowHandle) {
	if start < 0 {
		start = 0
	}
	if int(start) >= len(book.Transactions) {
		return
	}

	prev := book.OpeningBalance
	if start > 0 {
		prev = book.Transactions[start-1].RunningBalanceUSD
	}

	for i := int(start); i < len(book.Transactions); i++ {
		prev = prev.Add(book.Transactions[i].NetUSD)
		book.Transactions[i].RunningBalanceUSD = prev
	}
}

// AppendWithBalance appends a row and computes its balance directly from
// the current tail, avoiding a full rescan. Correctness still only depends
// on RecalcFrom; this is the tail-append fast path.
func AppendWithBalance(book *Book, tx Transaction) RowHandle {
	tx.RunningBalanceUSD = book.CurrentBalance().Add(tx.NetUSD)
	return book.AppendTransaction(tx)
}
