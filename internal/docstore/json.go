package docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetJSON unmarshals the document at key into v. The second return value is
// false when the document does not exist.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode document[%s]: %w", key, err)
	}
	return true, nil
}

// PutJSON marshals v and stores it at key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode document[%s]: %w", key, err)
	}
	return s.Put(ctx, key, data)
}
