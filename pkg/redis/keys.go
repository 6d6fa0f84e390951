package redis

import (
	"fmt"
	"time"
)

// SnapshotChannel carries the JSON of every newly published snapshot.
const SnapshotChannel = "debtview:snapshot:updates"

// SnapshotKey holds the latest published snapshot.
func SnapshotKey() string {
	return "snapshot:latest"
}

// ReferenceMasterKey holds the raw master rows for a source.
func ReferenceMasterKey(source string) string {
	return fmt.Sprintf("reference:master:%s", source)
}

// ReferenceTableKey holds the built schedule table for a settlement date.
func ReferenceTableKey(settlement time.Time) string {
	return fmt.Sprintf("reference:table:%s", settlement.Format("2006-01-02"))
}
