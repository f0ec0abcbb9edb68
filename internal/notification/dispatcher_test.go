package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/creatorpay/internal/clock"
	"github.com/smallbiznis/creatorpay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChannel struct {
	name      string
	types     map[EventType]bool
	err       error
	delivered []Event
	recipient *Recipient
}

func (c *fakeChannel) Name() string             { return c.name }
func (c *fakeChannel) Handles(t EventType) bool { return c.types[t] }

func (c *fakeChannel) Deliver(ctx context.Context, recipient *Recipient, event Event) error {
	c.delivered = append(c.delivered, event)
	c.recipient = recipient
	return c.err
}

type staticResolver struct {
	recipient *Recipient
	err       error
}

func (r staticResolver) Resolve(context.Context, string) (*Recipient, error) {
	return r.recipient, r.err
}

type capturePublisher struct {
	subject string
	data    []byte
}

func (p *capturePublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return nil
}

func TestDispatcherRoutesByEventType(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mail := &fakeChannel{name: "email", types: map[EventType]bool{EventPayoutRequested: true}}
	dm := &fakeChannel{name: "discord", types: map[EventType]bool{EventItemClawedBack: true}}
	recipient := &Recipient{UserID: "creator-1", Email: "c1@example.com"}

	d := NewDispatcher(zap.NewNop(), clock.NewFakeClock(now), staticResolver{recipient: recipient}, nil, mail, dm)
	d.NotifyBestEffort(context.Background(), Event{Type: EventPayoutRequested, UserID: "creator-1"})

	require.Len(t, mail.delivered, 1)
	assert.Empty(t, dm.delivered)
	assert.Equal(t, recipient, mail.recipient)
	assert.NotEmpty(t, mail.delivered[0].ID)
	assert.Equal(t, now, mail.delivered[0].OccurredAt)
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	failing := &fakeChannel{name: "email", types: map[EventType]bool{EventEvidenceRejected: true}, err: errors.New("smtp down")}
	next := &fakeChannel{name: "discord", types: map[EventType]bool{EventEvidenceRejected: true}}

	d := NewDispatcher(zap.NewNop(), clock.SystemClock{}, staticResolver{err: errors.New("db gone")}, nil, failing, next)

	assert.NotPanics(t, func() {
		d.NotifyBestEffort(context.Background(), Event{Type: EventEvidenceRejected, UserID: "creator-1"})
	})
	assert.Len(t, failing.delivered, 1)
	assert.Len(t, next.delivered, 1)
	assert.Nil(t, next.recipient)
}

func TestDiscordChannelSkipsWithoutDiscordID(t *testing.T) {
	ch := NewDiscordChannel(nil)
	err := ch.Deliver(context.Background(), &Recipient{UserID: "creator-1"}, Event{Type: EventItemClawedBack, Message: "hi"})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestEventChannelPublishesUnderPrefix(t *testing.T) {
	pub := &capturePublisher{}
	ch := NewEventChannel(pub, "payouts.")

	err := ch.Deliver(context.Background(), nil, Event{ID: "evt-1", Type: EventItemClawedBack, PayoutRequestID: "42"})
	require.NoError(t, err)
	assert.Equal(t, "payouts.payout.item_clawed_back", pub.subject)
	assert.Contains(t, string(pub.data), `"payout_request_id":"42"`)
	assert.Equal(t, "creatorpay.payout.requested", NewEventChannel(pub, "").Subject(EventPayoutRequested))
}

func TestProfileResolver(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedProfile(t, db, "creator-1", "c1@example.com", "998877", time.Now())

	resolver := NewProfileResolver(db)
	got, err := resolver.Resolve(context.Background(), "creator-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "c1@example.com", got.Email)
	assert.Equal(t, "998877", got.DiscordID)

	missing, err := resolver.Resolve(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecorderFiltersByType(t *testing.T) {
	rec := &Recorder{}
	rec.NotifyBestEffort(context.Background(), Event{Type: EventPayoutRequested})
	rec.NotifyBestEffort(context.Background(), Event{Type: EventEvidenceRejected})

	assert.Len(t, rec.Events(), 2)
	assert.Len(t, rec.OfType(EventEvidenceRejected), 1)
}
