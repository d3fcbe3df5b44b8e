package domain

import "time"

// DekRecord is the per-user Data Encryption Key record (spec.md §3 "DEK
// Record", §4.2). Uid and Email are searchable identifiers encrypted under
// the KEK (not the DEK) so the record is findable without already knowing the
// DEK; Dek is the key material itself, also KEK-encrypted at rest.
type DekRecord struct {
	Uid       string
	Email     string
	Dek       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
