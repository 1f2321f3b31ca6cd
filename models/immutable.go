package models

import "errors"

// ErrImmutableRecord is returned by hooks guarding append-only tables
var ErrImmutableRecord = errors.New("record is immutable")

// All returns every persisted model, in migration order
func All() []interface{} {
	return []interface{}{
		&User{},
		&Case{},
		&ContractDocument{},
		&LogEntry{},
		&LogVersion{},
		&AnchorRecord{},
		&CaseStatusChange{},
		&AccessGrant{},
	}
}
