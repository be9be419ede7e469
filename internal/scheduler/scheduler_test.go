package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachmail/coachmail/internal/archive"
	"github.com/coachmail/coachmail/internal/booking"
	"github.com/coachmail/coachmail/internal/config"
	"github.com/coachmail/coachmail/internal/gmail"
	"github.com/coachmail/coachmail/internal/ledger"
	"github.com/coachmail/coachmail/internal/notify"
	"github.com/coachmail/coachmail/internal/slots"
)

type fakeMail struct {
	ids    []string
	msgs   map[string]*gmail.InboundMessage
	sent   []gmail.Outbound
	marked []string
}

func (f *fakeMail) Search(ctx context.Context, query string) ([]string, error) {
	return f.ids, nil
}

func (f *fakeMail) Fetch(ctx context.Context, id string) (*gmail.InboundMessage, error) {
	return f.msgs[id], nil
}

func (f *fakeMail) BatchMarkProcessed(ctx context.Context, ids []string) error {
	f.marked = append(f.marked, ids...)
	return nil
}

func (f *fakeMail) Send(ctx context.Context, out gmail.Outbound) error {
	f.sent = append(f.sent, out)
	return nil
}

type fakeCal struct {
	events []slots.Event
}

func (f *fakeCal) ListUpcoming(ctx context.Context, now time.Time, limit int64) ([]slots.Event, error) {
	return f.events, nil
}

type fakeBooker struct {
	booked []booking.Customer
	err    error
}

func (f *fakeBooker) Book(ctx context.Context, offer slots.Offer, customer booking.Customer, threadID string) error {
	if f.err != nil {
		return f.err
	}
	f.booked = append(f.booked, customer)
	return nil
}

type fakeArchiver struct {
	records []archive.Record
}

func (f *fakeArchiver) WriteDaily(ctx context.Context, day time.Time, records []archive.Record) (string, error) {
	f.records = append(f.records, records...)
	return "archive.txt", nil
}

type memStore struct {
	entries  []ledger.Entry
	appended []ledger.Entry
	removed  []string
}

func (m *memStore) Load(ctx context.Context) ([]ledger.Entry, error) { return m.entries, nil }
func (m *memStore) Append(ctx context.Context, entries []ledger.Entry) error {
	m.appended = append(m.appended, entries...)
	return nil
}
func (m *memStore) Remove(ctx context.Context, address string) error {
	m.removed = append(m.removed, address)
	return nil
}

type fakeAlertSender struct {
	sent []notify.Message
}

func (f *fakeAlertSender) Send(ctx context.Context, msg notify.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

type fixture struct {
	coord  *Coordinator
	mail   *fakeMail
	cal    *fakeCal
	booker *fakeBooker
	store  *memStore
	alerts *fakeAlertSender
	arch   *fakeArchiver
	cfg    *config.Config
}

func mondaySlot() slots.Event {
	return slots.Event{
		ID:       "ev1",
		Start:    time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC),
		Summary:  "wolne",
		Location: "GymA",
	}
}

func newFixture(t *testing.T, entries ...ledger.Entry) *fixture {
	t.Helper()
	cfg := &config.Config{
		UserEmail:         "coach@example.com",
		DataDir:           t.TempDir(),
		OfferMarker:       "wolne",
		MinOfferWarning:   1,
		CalendarListLimit: 15,
		SearchWindowDays:  1,
	}
	f := &fixture{
		mail:   &fakeMail{msgs: map[string]*gmail.InboundMessage{}},
		cal:    &fakeCal{events: []slots.Event{mondaySlot()}},
		booker: &fakeBooker{},
		store:  &memStore{entries: entries},
		alerts: &fakeAlertSender{},
		arch:   &fakeArchiver{},
		cfg:    cfg,
	}
	f.coord = New(
		cfg,
		config.DefaultLocale(),
		f.mail,
		f.cal,
		f.booker,
		ledger.New(f.store, nil),
		f.arch,
		notify.NewOperator(f.alerts, "coach@example.com", nil),
		nil,
		nil,
	)
	return f
}

func (f *fixture) addMessage(id string, msg *gmail.InboundMessage) {
	f.mail.ids = append(f.mail.ids, id)
	f.mail.msgs[id] = msg
}

func TestRunNewInquiryGetsOffer(t *testing.T) {
	f := newFixture(t)
	f.addMessage("m1", &gmail.InboundMessage{
		ID:         "m1",
		ThreadID:   "t1",
		Sender:     "new@example.com",
		SenderName: "Anna",
		Subject:    "training inquiry",
		Receipt:    time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Body:       "hi, do you have free sessions?",
	})

	summary, err := f.coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Questions)
	assert.Equal(t, 1, summary.OffersSent)

	require.Len(t, f.mail.sent, 1)
	out := f.mail.sent[0]
	assert.Equal(t, "new@example.com", out.To)
	assert.Equal(t, "RE: training inquiry", out.Subject)
	assert.Contains(t, out.Body, "Dear Anna")
	assert.Contains(t, out.Body, "2024-01-01 (Poniedziałek) at 18:00 in GymA")
	assert.Equal(t, "t1", out.ThreadID)

	require.Len(t, f.store.appended, 1)
	assert.Equal(t, "new@example.com", f.store.appended[0].Address)
	assert.Equal(t, []string{"m1"}, f.mail.marked)
	require.Len(t, f.arch.records, 1)
}

func TestRunMatchingReplyBooks(t *testing.T) {
	offered := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, ledger.Entry{Address: "anna@example.com", AwaitingSince: offered})
	f.addMessage("m1", &gmail.InboundMessage{
		ID:         "m1",
		ThreadID:   "t1",
		Sender:     "anna@example.com",
		SenderName: "Anna",
		Subject:    "Re: training inquiry",
		Receipt:    offered.Add(2 * time.Hour),
		Body:       "2024-01-01 (Poniedziałek) at 18:00 in GymA works for me!",
	})

	summary, err := f.coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Responses)
	assert.Equal(t, 1, summary.Matched)

	require.Len(t, f.booker.booked, 1)
	assert.Equal(t, "anna@example.com", f.booker.booked[0].Address)
	assert.Equal(t, []string{"anna@example.com"}, f.store.removed)
	assert.Equal(t, []string{"m1"}, f.mail.marked)
	assert.Empty(t, f.mail.sent)
	// Only answered inquiries are archived, not replies.
	assert.Empty(t, f.arch.records)
}

func TestRunUnmatchedReplyStaysUnread(t *testing.T) {
	offered := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, ledger.Entry{Address: "anna@example.com", AwaitingSince: offered})
	f.addMessage("m1", &gmail.InboundMessage{
		ID:      "m1",
		Sender:  "anna@example.com",
		Subject: "Re: training inquiry",
		Receipt: offered.Add(2 * time.Hour),
		Body:    "none of these work, can we do friday instead?",
	})
	f.addMessage("m2", &gmail.InboundMessage{
		ID:         "m2",
		Sender:     "new@example.com",
		SenderName: "Piotr",
		Subject:    "training inquiry",
		Receipt:    offered.Add(3 * time.Hour),
		Body:       "do you have free sessions?",
	})

	summary, err := f.coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unmatched)

	assert.Empty(t, f.booker.booked)
	assert.Empty(t, f.store.removed)

	// The unmatched reply holds the whole batch unread; the new inquiry
	// still gets its offer.
	assert.Empty(t, f.mail.marked)
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "new@example.com", f.mail.sent[0].To)

	require.Len(t, f.alerts.sent, 1)
	assert.Contains(t, f.alerts.sent[0].Subject, "anna@example.com")
}

func TestRunIndeterminateMessageSkipped(t *testing.T) {
	offered := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, ledger.Entry{Address: "anna@example.com", AwaitingSince: offered})
	f.addMessage("m1", &gmail.InboundMessage{
		ID:      "m1",
		Sender:  "anna@example.com",
		Subject: "old message",
		Receipt: offered.Add(-2 * time.Hour),
		Body:    "sent before the offer",
	})

	summary, err := f.coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Indeterminate)

	assert.Empty(t, f.booker.booked)
	assert.Empty(t, f.mail.sent)
	assert.Empty(t, f.store.removed)
	assert.Equal(t, []string{"m1"}, f.mail.marked)
	assert.Empty(t, f.arch.records)
}

func TestRunKeywordFilter(t *testing.T) {
	f := newFixture(t)
	f.cfg.Keywords = []string{"training"}
	f.addMessage("m1", &gmail.InboundMessage{
		ID:      "m1",
		Sender:  "spam@example.com",
		Subject: "great deal on watches",
		Receipt: time.Now(),
		Body:    "buy now",
	})
	f.addMessage("m2", &gmail.InboundMessage{
		ID:         "m2",
		Sender:     "new@example.com",
		SenderName: "Piotr",
		Subject:    "question",
		Receipt:    time.Now(),
		Body:       "I would like to join a Training session",
	})

	summary, err := f.coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Questions)
	assert.Equal(t, 1, summary.OffersSent)
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "new@example.com", f.mail.sent[0].To)
	// Both messages are done with, keyword match or not.
	assert.ElementsMatch(t, []string{"m1", "m2"}, f.mail.marked)
	// Only the accepted inquiry lands in the archive.
	require.Len(t, f.arch.records, 1)
	assert.Equal(t, "new@example.com", f.arch.records[0].From)
}

func TestRunNoOffersAborts(t *testing.T) {
	f := newFixture(t)
	f.cal.events = nil

	_, err := f.coord.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, slots.ErrNoOffers)

	// The failed run alerts the operator.
	require.Len(t, f.alerts.sent, 1)
	assert.Contains(t, f.alerts.sent[0].Subject, "failed")
}

func TestRunLowAvailabilityAlert(t *testing.T) {
	f := newFixture(t)
	f.cfg.MinOfferWarning = 15

	_, err := f.coord.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, f.alerts.sent, 1)
	assert.Equal(t, "Low slot availability", f.alerts.sent[0].Subject)
}

func TestRunDryRunWritesPreparedReplies(t *testing.T) {
	f := newFixture(t)
	f.cfg.DryRun = true
	f.addMessage("m1", &gmail.InboundMessage{
		ID:         "m1",
		Sender:     "new@example.com",
		SenderName: "Anna",
		Subject:    "training inquiry",
		Receipt:    time.Now(),
		Body:       "do you have free sessions?",
	})

	summary, err := f.coord.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Zero(t, summary.OffersSent)

	// Nothing sent, nothing marked, ledger untouched.
	assert.Empty(t, f.mail.sent)
	assert.Empty(t, f.mail.marked)
	assert.Empty(t, f.store.appended)

	path := filepath.Join(f.cfg.PreparedRepliesDir(), "new@example.com.txt")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Dear Anna")
	assert.Contains(t, string(data), "2024-01-01 (Poniedziałek) at 18:00 in GymA")
}

func TestRunEmptyReplyBodyUnmatched(t *testing.T) {
	offered := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, ledger.Entry{Address: "anna@example.com", AwaitingSince: offered})
	f.addMessage("m1", &gmail.InboundMessage{
		ID:      "m1",
		Sender:  "anna@example.com",
		Subject: "Re: training",
		Receipt: offered.Add(time.Hour),
		Body:    "> everything here is quoted",
	})

	summary, err := f.coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unmatched)
	assert.Empty(t, f.mail.marked)
}

func TestRunSlotTakenBetweenOfferAndReply(t *testing.T) {
	offered := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, ledger.Entry{Address: "anna@example.com", AwaitingSince: offered})
	f.booker.err = booking.ErrSlotTaken
	f.addMessage("m1", &gmail.InboundMessage{
		ID:      "m1",
		Sender:  "anna@example.com",
		Subject: "Re: training",
		Receipt: offered.Add(time.Hour),
		Body:    "2024-01-01 (Poniedziałek) at 18:00 in GymA",
	})

	summary, err := f.coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unmatched)
	assert.Empty(t, f.store.removed)
	assert.Empty(t, f.mail.marked)
	require.Len(t, f.alerts.sent, 1)
}
