package badger

import (
	"fmt"
	"strconv"
)

// Key layout. Prefixes end in ':' so one record class can never shadow
// another, and connection rows carry a generation number so a rebuild can
// write a complete new row set before flipping the pointer.
const (
	entityPrefix  = "ent:"
	summaryPrefix = "sum:"

	// connGenKey holds the current connection generation number.
	connGenKey = "congen"
	// connPrefix is followed by "<gen>:<sourceID>:" per row.
	connPrefix = "con:"
)

func makeEntityKey(id string) []byte {
	return []byte(entityPrefix + id)
}

func makeSummaryKey(weekKey string) []byte {
	return []byte(summaryPrefix + weekKey)
}

func makeConnGenPrefix(gen uint64) []byte {
	return []byte(fmt.Sprintf("%s%d:", connPrefix, gen))
}

func makeConnSourcePrefix(gen uint64, sourceID string) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:", connPrefix, gen, sourceID))
}

// makeConnKey identifies one directed edge. A (source, kind, target) triple
// maps to at most one row, so the key needs no further disambiguation.
func makeConnKey(gen uint64, sourceID, kind, targetID string) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:%s:%s", connPrefix, gen, sourceID, kind, targetID))
}

func encodeGen(gen uint64) []byte {
	return []byte(strconv.FormatUint(gen, 10))
}

func decodeGen(data []byte) (uint64, error) {
	return strconv.ParseUint(string(data), 10, 64)
}
