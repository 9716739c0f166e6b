package server

import (
	expenseports "github.com/pricewatch/pricewatch/modules/expense/domain/ports"
	priceports "github.com/pricewatch/pricewatch/modules/pricebook/domain/ports"
)

// PriceStore is the full pricebook surface the handler wires: the executor
// consumes the read side, the pricebook API also writes.
type PriceStore interface {
	priceports.PriceReadStore
	priceports.PriceWriteStore
}

type ExpenseStore interface {
	expenseports.ExpenseReadStore
	expenseports.ExpenseWriteStore
}
