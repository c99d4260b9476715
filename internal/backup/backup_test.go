package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roxtor/backend/internal/domain"
)

type recorder struct {
	restored *domain.Snapshot
}

func (r *recorder) Restore(_ context.Context, snap domain.Snapshot) error {
	r.restored = &snap
	return nil
}

func current() domain.Snapshot {
	return domain.Snapshot{
		Stores:   []domain.Store{{ID: "store_1", Name: "ROXTOR PRINCIPAL", Prefix: "P"}},
		Orders:   []domain.Order{{ID: "old"}},
		Settings: domain.Settings{EncryptionKey: "ROXTOR-LOCAL", LoginPINHash: "login", MasterPINHash: "master"},
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := current()
	src.Orders = []domain.Order{{ID: "o1", OrderNumber: "P-0001"}}
	doc := Export(src, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "ROXTOR-LOCAL", doc.KeyCheck)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(doc))
	decoded, err := Decode(&buf)
	require.NoError(t, err)

	rec := &recorder{}
	snap, err := Import(context.Background(), rec, decoded, current(), true)
	require.NoError(t, err)
	require.NotNil(t, rec.restored)
	assert.Equal(t, "P-0001", rec.restored.Orders[0].OrderNumber)
	assert.Equal(t, snap.Orders, rec.restored.Orders)
}

func TestKeyMismatchLeavesStateUntouched(t *testing.T) {
	doc := Export(current(), time.Now())
	doc.KeyCheck = "OTHER"

	rec := &recorder{}
	_, err := Import(context.Background(), rec, doc, current(), true)

	assert.ErrorIs(t, err, ErrKeyMismatch)
	assert.Nil(t, rec.restored)
}

func TestUnconfirmedImportIsRefused(t *testing.T) {
	rec := &recorder{}
	_, err := Import(context.Background(), rec, Export(current(), time.Now()), current(), false)

	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Nil(t, rec.restored)
}

func TestOlderDocumentsKeepStoresAndPins(t *testing.T) {
	doc := Document{KeyCheck: "ROXTOR-LOCAL", Orders: []domain.Order{{ID: "o9"}}}

	rec := &recorder{}
	snap, err := Import(context.Background(), rec, doc, current(), true)
	require.NoError(t, err)

	assert.Equal(t, "store_1", snap.Stores[0].ID)
	assert.Equal(t, "login", snap.Settings.LoginPINHash)
	assert.Equal(t, "ROXTOR-LOCAL", snap.Settings.EncryptionKey)
}

func TestInvalidDocuments(t *testing.T) {
	_, err := Decode(strings.NewReader("{"))
	assert.ErrorIs(t, err, ErrInvalidDocument)

	doc := Document{KeyCheck: "ROXTOR-LOCAL", Orders: []domain.Order{{ID: "a"}, {ID: "a"}}}
	_, err = Import(context.Background(), &recorder{}, doc, current(), true)
	assert.ErrorIs(t, err, ErrInvalidDocument)
}
