package driver

import (
	"context"
)

// ReadAll drains the cursor into a slice and closes it
func ReadAll[T any](ctx context.Context, cursor Cursor) ([]T, error) {
	defer cursor.Close()
	var results []T
	for cursor.HasMore() {
		var result T
		if err := cursor.ReadDocument(ctx, &result); err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}
