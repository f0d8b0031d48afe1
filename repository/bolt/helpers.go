package bolt

import (
	"encoding/json"
	"strings"

	"go.etcd.io/bbolt"
)

const keySeparator = "\x00"

func compositeKey(parts ...string) []byte {
	return []byte(strings.Join(parts, keySeparator))
}

func getJSON(b *bbolt.Bucket, key []byte, dest interface{}) (bool, error) {
	raw := b.Get(key)
	if raw == nil {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func putJSON(b *bbolt.Bucket, key []byte, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.Put(key, payload)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
