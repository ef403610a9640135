package nonce

import "gorm.io/gorm/clause"

// onConflictDoNothing mirrors the relational "INSERT ... ON CONFLICT DO
// NOTHING" pattern spec §4.3 requires for atomic insert-if-absent.
func onConflictDoNothing() clause.OnConflict {
	return clause.OnConflict{DoNothing: true}
}
