package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainRecords prefixes record-sequence hashes. The version suffix allows
// the algorithm to change without colliding with old snapshots.
const DomainRecords = "liveview/records/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordsHash computes a content hash over an ordered record sequence.
// Two sequences hash equal only if they hold the same records in the same order.
func RecordsHash(records []IRObject) (string, error) {
	arr := make(IRArray, len(records))
	for i, r := range records {
		arr[i] = r
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("records hash: %w", err)
	}
	return hashWithDomain(DomainRecords, canonical), nil
}
