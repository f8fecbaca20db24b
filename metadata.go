package tesouro

import (
	"context"

	"github.com/vendahub/tesouro/internal/notification"
)

// UpdateWithdrawalMetadata merges the given keys into a withdrawal's existing
// metadata and persists the result. Existing keys not present in newMetadata
// are preserved; matching keys are overwritten. Returns the merged map.
func (l *Tesouro) UpdateWithdrawalMetadata(ctx context.Context, id string, newMetadata map[string]interface{}) (map[string]interface{}, error) {
	withdrawal, err := l.datasource.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := mergeMetadata(withdrawal.MetaData, newMetadata)
	if err := l.datasource.UpdateWithdrawalMetadata(ctx, id, merged); err != nil {
		return nil, err
	}

	// Refresh the search document so metadata filters stay current.
	withdrawal.MetaData = merged
	go func() {
		if err := l.queue.queueIndexData(withdrawal.WithdrawalID, "withdrawals", withdrawal); err != nil {
			notification.NotifyError(err)
		}
	}()

	return merged, nil
}

// mergeMetadata overlays incoming keys onto current, initializing the map
// when the withdrawal had no metadata yet.
func mergeMetadata(current, incoming map[string]interface{}) map[string]interface{} {
	if current == nil {
		current = make(map[string]interface{})
	}
	for k, v := range incoming {
		current[k] = v
	}
	return current
}
