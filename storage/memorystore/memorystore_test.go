package memorystore

import (
	"testing"

	"github.com/carebridge/portal/storage"
	"github.com/carebridge/portal/storage/storagetests"
)

func TestMemoryStore(t *testing.T) {
	storagetests.Run(t, func() storage.Store {
		return New()
	})
}
