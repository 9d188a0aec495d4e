package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestJournal_PersistsInOrder(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)

	journal := NewJournal(backend, 4, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		journal.Run(ctx)
		close(stopped)
	}()

	admin := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	business := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	at := time.Date(2023, time.October, 1, 12, 0, 0, 0, time.UTC)

	kinds := []interfaces.EventKind{
		interfaces.EventBusinessVerified,
		interfaces.EventInvoiceRegistered,
		interfaces.EventInvoiceCertified,
		interfaces.EventRiskAssessed,
		interfaces.EventInvoiceFunded,
		interfaces.EventInvoiceRepaid,
	}
	var recorded []interfaces.Event
	for _, kind := range kinds {
		ev := interfaces.NewEvent(kind, admin, at)
		ev.Business = business
		ev.InvoiceID = "INV-2023-001"
		journal.Record(ev)
		recorded = append(recorded, ev)
	}

	cancel()
	<-stopped

	entries := journal.Entries()
	require.Len(t, entries, len(kinds))
	for i, entry := range entries {
		assert.Equal(t, recorded[i].ID, entry.EventID)
		assert.Equal(t, kinds[i], entry.Kind)

		ev, err := journal.Fetch(context.Background(), entry.ContentID)
		require.NoError(t, err)
		assert.Equal(t, recorded[i], ev)
	}
	assert.Zero(t, journal.Failed())

	// Events recorded after the journal stopped are dropped, not blocked on.
	journal.Record(interfaces.NewEvent(interfaces.EventFeeChanged, admin, at))
	assert.Equal(t, int64(1), journal.Dropped())
	assert.Len(t, journal.Entries(), len(kinds))
}

func TestJournal_RecordAfterStop(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)

	journal := NewJournal(backend, 64, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	journal.Run(ctx)

	for range 40 {
		journal.Record(interfaces.NewEvent(interfaces.EventFeeChanged, common.Address{}, time.Now()))
	}

	assert.Equal(t, int64(40), journal.Dropped())
	assert.Zero(t, journal.Failed())
	assert.Empty(t, journal.Entries())
}

func TestJournal_EveryEventAccounted(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)

	journal := NewJournal(backend, 2, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		journal.Run(ctx)
		close(stopped)
	}()

	const writers, perWriter = 4, 25
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWriter {
				journal.Record(interfaces.NewEvent(interfaces.EventFeeChanged, common.Address{}, time.Now()))
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	cancel()
	<-stopped
	wg.Wait()

	total := int64(len(journal.Entries())) + journal.Dropped() + journal.Failed()
	assert.Equal(t, int64(writers*perWriter), total)
}

func TestJournal_StoreFailure(t *testing.T) {
	backend := &MockStorageBackend{name: "failing"}
	backend.On("Store", mock.Anything, mock.Anything, interfaces.EventType).Return(interfaces.ContentID{}, interfaces.ErrBackendUnavailable)

	journal := NewJournal(backend, 1, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		journal.Run(ctx)
		close(stopped)
	}()

	journal.Record(interfaces.NewEvent(interfaces.EventFeeChanged, common.Address{}, time.Now()))
	cancel()
	<-stopped

	assert.Equal(t, int64(1), journal.Failed())
	assert.Empty(t, journal.Entries())
}
