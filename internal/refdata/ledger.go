package refdata

import "ExpenseCertify/internal/model"

// LedgerCatalog is the set of valid (Account2.Code, Sub Ledger.Code) pairs.
type LedgerCatalog struct {
	keys map[string]struct{}
}

// ImmunitySet lists ledger pairs exempt from suspicious-rule matching. It
// shares the ledger catalog's representation.
type ImmunitySet = LedgerCatalog

// NewLedgerCatalog builds a pair set.
func NewLedgerCatalog(pairs []model.LedgerPair) *LedgerCatalog {
	l := &LedgerCatalog{keys: make(map[string]struct{}, len(pairs))}
	for _, p := range pairs {
		l.keys[p.Key()] = struct{}{}
	}
	return l
}

// Contains reports whether the composite of account2 and subLedger is present.
func (l *LedgerCatalog) Contains(account2, subLedger string) bool {
	if l == nil {
		return false
	}
	_, ok := l.keys[model.LedgerPair{Account2: account2, SubLedger: subLedger}.Key()]
	return ok
}

// Len is the number of distinct pairs.
func (l *LedgerCatalog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.keys)
}
