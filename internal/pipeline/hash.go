package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"go-data-pipeline/internal/model"
)

// ContentHash fingerprints a transformed record set. Map keys are encoded in
// sorted order, so equal sets always hash equally.
func ContentHash(records []model.Record) (string, error) {
	if records == nil {
		records = []model.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
