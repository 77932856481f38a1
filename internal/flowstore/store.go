// Package flowstore persists booking flow snapshots between requests and
// guards one-shot work (payment recovery) across instances.
package flowstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("flow not found")

const keyPrefix = "builderhub:flow:"

// Store keeps opaque, already encoded snapshots. Saves are last-writer-wins;
// MarkOnce is atomic.
type Store interface {
	Load(ctx context.Context, flowID string) ([]byte, error)
	Save(ctx context.Context, flowID string, data []byte, ttl time.Duration) error
	// MarkOnce returns true for the first caller that marks marker on flowID
	// within ttl and false for every later one.
	MarkOnce(ctx context.Context, flowID, marker string, ttl time.Duration) (bool, error)
}

func snapshotKey(flowID string) string {
	return keyPrefix + flowID
}

func markerKey(flowID, marker string) string {
	return keyPrefix + flowID + ":once:" + marker
}
