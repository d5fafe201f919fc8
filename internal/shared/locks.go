package shared

import "fmt"

// OrderCompletionLockKey builds the redis key serializing completion checks
// per order. Two concurrent receipt or return saves against the same order
// must not race to evaluate a stale shortfall; no cross-order locking.
func OrderCompletionLockKey(orderID int64) string {
	return fmt.Sprintf("reconcile:order:%d:completion", orderID)
}
