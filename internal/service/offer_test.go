package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angebot-ai/sales-assistant/internal/model"
	natsclient "github.com/angebot-ai/sales-assistant/internal/nats"
	"github.com/angebot-ai/sales-assistant/internal/offer"
)

type fakeKV struct {
	data map[string][]byte
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
}

func (f *fakeKV) Put(ctx context.Context, key string, value []byte) error {
	f.data[key] = value
	return nil
}

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := f.data[key]
	if !ok {
		return nil, natsclient.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeKV) Delete(ctx context.Context, key string) error {
	if _, ok := f.data[key]; !ok {
		return natsclient.ErrKeyNotFound
	}
	delete(f.data, key)
	return nil
}

func (f *fakeKV) ListValues(ctx context.Context, prefix string) ([][]byte, error) {
	var values [][]byte
	for key, v := range f.data {
		if strings.HasPrefix(key, prefix) {
			values = append(values, v)
		}
	}
	return values, nil
}

func savableOffer(id string) model.Offer {
	return model.Offer{
		ID:          id,
		Title:       "Website-Relaunch",
		Description: "Kompletter Relaunch der Unternehmensseite",
		Items: []model.OfferItem{
			{Name: "Umsetzung", Description: "Frontend und CMS-Aufbau", Price: 95, Quantity: 24},
		},
		TotalPrice: 2280,
		ValidUntil: time.Now().Add(7 * 24 * time.Hour),
	}
}

func newOfferFixture() (*OfferService, *fakeKV) {
	kv := newFakeKV()
	return NewOfferService(kv, testLogger()), kv
}

func TestOfferSave(t *testing.T) {
	svc, kv := newOfferFixture()

	saved, err := svc.Save(context.Background(), "user-1", savableOffer("offer-1"))
	require.NoError(t, err)

	assert.Equal(t, "offer-1", saved.ID)
	assert.Equal(t, "user-1", saved.UserID)
	assert.Equal(t, "Website-Relaunch", saved.Title)
	assert.Equal(t, 2280.0, saved.TotalPrice)
	assert.Contains(t, kv.data, "user-1.offer-1")

	// The stored blob round-trips to the full offer.
	var stored model.SavedOffer
	require.NoError(t, json.Unmarshal(kv.data["user-1.offer-1"], &stored))
	var full model.Offer
	require.NoError(t, json.Unmarshal(stored.Payload, &full))
	assert.Len(t, full.Items, 1)
}

func TestOfferSaveRepairsValidity(t *testing.T) {
	svc, _ := newOfferFixture()

	o := savableOffer("offer-1")
	o.ValidUntil = time.Now().Add(-time.Hour)

	before := time.Now()
	saved, err := svc.Save(context.Background(), "user-1", o)
	require.NoError(t, err)

	assert.True(t, saved.ValidUntil.After(before), "past validity must be replaced with a future default")
	assert.WithinDuration(t, before.Add(offer.DefaultValidity), saved.ValidUntil, time.Minute)
}

func TestOfferSaveRejectsInvalid(t *testing.T) {
	svc, kv := newOfferFixture()

	o := savableOffer("offer-1")
	o.Title = ""
	o.Items = nil
	o.TotalPrice = 0

	_, err := svc.Save(context.Background(), "user-1", o)

	var invalidErr *InvalidOfferError
	require.ErrorAs(t, err, &invalidErr)
	assert.ErrorIs(t, err, ErrInvalidOffer)
	assert.Contains(t, invalidErr.Violations, "Titel darf nicht leer sein")
	assert.Empty(t, kv.data, "rejected offers are never written")
}

func TestOfferGet(t *testing.T) {
	svc, _ := newOfferFixture()
	ctx := context.Background()

	_, err := svc.Save(ctx, "user-1", savableOffer("offer-1"))
	require.NoError(t, err)

	got, err := svc.Get(ctx, "user-1", "offer-1")
	require.NoError(t, err)
	assert.Equal(t, "offer-1", got.ID)

	_, err = svc.Get(ctx, "user-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(ctx, "user-2", "offer-1")
	assert.ErrorIs(t, err, ErrNotFound, "offers are scoped to their owner key")
}

func TestOfferGetDeletesExpired(t *testing.T) {
	svc, kv := newOfferFixture()
	ctx := context.Background()

	// Plant an already-expired record directly; Save would repair the date.
	expired := model.SavedOffer{
		ID:         "offer-1",
		UserID:     "user-1",
		Title:      "Abgelaufen",
		ValidUntil: time.Now().Add(-time.Hour),
		SavedAt:    time.Now().Add(-48 * time.Hour),
	}
	data, err := json.Marshal(expired)
	require.NoError(t, err)
	require.NoError(t, kv.Put(ctx, "user-1.offer-1", data))

	_, err = svc.Get(ctx, "user-1", "offer-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotContains(t, kv.data, "user-1.offer-1", "expired offers are cleaned up on read")
}

func TestOfferListOmitsAndDeletesExpired(t *testing.T) {
	svc, kv := newOfferFixture()
	ctx := context.Background()

	_, err := svc.Save(ctx, "user-1", savableOffer("offer-1"))
	require.NoError(t, err)
	_, err = svc.Save(ctx, "user-1", savableOffer("offer-2"))
	require.NoError(t, err)

	expired := model.SavedOffer{
		ID:         "offer-3",
		UserID:     "user-1",
		ValidUntil: time.Now().Add(-time.Minute),
		SavedAt:    time.Now().Add(-72 * time.Hour),
	}
	data, err := json.Marshal(expired)
	require.NoError(t, err)
	require.NoError(t, kv.Put(ctx, "user-1.offer-3", data))

	// Another user's offer must not leak into the listing.
	_, err = svc.Save(ctx, "user-2", savableOffer("offer-9"))
	require.NoError(t, err)

	resp, err := svc.List(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Total)
	ids := []string{resp.Offers[0].ID, resp.Offers[1].ID}
	assert.ElementsMatch(t, []string{"offer-1", "offer-2"}, ids)
	assert.NotContains(t, kv.data, "user-1.offer-3", "expired offers are deleted during listing")
	assert.Contains(t, kv.data, "user-2.offer-9")
}

func TestOfferListNewestFirst(t *testing.T) {
	svc, kv := newOfferFixture()
	ctx := context.Background()

	older := model.SavedOffer{
		ID:         "offer-old",
		UserID:     "user-1",
		ValidUntil: time.Now().Add(24 * time.Hour),
		SavedAt:    time.Now().Add(-time.Hour),
	}
	newer := model.SavedOffer{
		ID:         "offer-new",
		UserID:     "user-1",
		ValidUntil: time.Now().Add(24 * time.Hour),
		SavedAt:    time.Now(),
	}
	for _, saved := range []model.SavedOffer{older, newer} {
		data, err := json.Marshal(saved)
		require.NoError(t, err)
		require.NoError(t, kv.Put(ctx, "user-1."+saved.ID, data))
	}

	resp, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, resp.Offers, 2)
	assert.Equal(t, "offer-new", resp.Offers[0].ID)
	assert.Equal(t, "offer-old", resp.Offers[1].ID)
}

func TestOfferDelete(t *testing.T) {
	svc, kv := newOfferFixture()
	ctx := context.Background()

	_, err := svc.Save(ctx, "user-1", savableOffer("offer-1"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "user-1", "offer-1"))
	assert.Empty(t, kv.data)

	assert.ErrorIs(t, svc.Delete(ctx, "user-1", "offer-1"), ErrNotFound)
}

func TestInvalidOfferErrorUnwrapsSentinel(t *testing.T) {
	err := &InvalidOfferError{Violations: []string{"Titel darf nicht leer sein", "Angebot enthält keine Positionen"}}

	assert.ErrorIs(t, err, ErrInvalidOffer)
	assert.Equal(t, "invalid offer: Titel darf nicht leer sein; Angebot enthält keine Positionen", err.Error())

	var invalidErr *InvalidOfferError
	assert.True(t, errors.As(error(err), &invalidErr))
	assert.Len(t, invalidErr.Violations, 2)
}
