/*
fingerprint.go - Deterministic posting fingerprints

PURPOSE:
  Produces the collision-resistant identifier that makes re-running the
  due-occurrence processor safe. Identical inputs always yield identical
  output - no random or time-of-call salt. A retried run regenerates the
  same fingerprint, so the storage-level unique index turns the duplicate
  insert into a no-op instead of a double posting.

WHY NO SALT:
  Manual-entry flows elsewhere intentionally salt their fingerprints so a
  user can record two identical coffees on the same day. Scheduled
  postings must do the opposite: one occurrence, one fingerprint, forever.

SEE ALSO:
  - entry.go: The Entry carrying the fingerprint
  - store.go: InsertBatch treating collisions as no-ops
*/
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint derives the idempotency identifier for one posting leg.
//
// The discriminator distinguishes legs materialized from the same rule on
// the same date (outgoing vs incoming vs fee), so co-created transfer legs
// never collide with each other while retries of the same leg always do.
func Fingerprint(date Date, amount int64, discriminator string, definitionID string, owner OwnerID) string {
	payload := fmt.Sprintf("%s|%d|%s|%s|%s", date, amount, discriminator, definitionID, owner)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
