package redisx

import "time"

const (
	// Order placement idempotency: idem:order:place:{user_id}:{client key} -> order id
	KeyIdemOrderPlace = "idem:order:place:%d:%s"

	// Read-mostly catalog lists: catalog:{name} -> JSON body
	KeyCatalog = "catalog:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

const (
	pendingMarker = "pending"
	doneMarker    = "done"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLCatalog     = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
