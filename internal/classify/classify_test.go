package classify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachmail/coachmail/internal/ledger"
)

type memStore struct{ entries []ledger.Entry }

func (m *memStore) Load(ctx context.Context) ([]ledger.Entry, error) { return m.entries, nil }
func (m *memStore) Append(ctx context.Context, entries []ledger.Entry) error {
	m.entries = append(m.entries, entries...)
	return nil
}
func (m *memStore) Remove(ctx context.Context, address string) error { return nil }

func loadedLedger(t *testing.T, entries ...ledger.Entry) *ledger.Ledger {
	t.Helper()
	l := ledger.New(&memStore{entries: entries}, nil)
	require.NoError(t, l.Load(context.Background()))
	return l
}

func TestClassify(t *testing.T) {
	offered := time.Date(2023, 10, 23, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		entries []ledger.Entry
		sender  string
		receipt time.Time
		want    Kind
	}{
		{
			name:    "unknown sender is a question",
			sender:  "new@example.com",
			receipt: offered.Add(time.Hour),
			want:    Question,
		},
		{
			name:    "message after offer is a response",
			entries: []ledger.Entry{{Address: "known@example.com", AwaitingSince: offered}},
			sender:  "known@example.com",
			receipt: offered.Add(time.Hour),
			want:    Response,
		},
		{
			name:    "message before offer is indeterminate",
			entries: []ledger.Entry{{Address: "known@example.com", AwaitingSince: offered}},
			sender:  "known@example.com",
			receipt: offered.Add(-time.Hour),
			want:    Indeterminate,
		},
		{
			name:    "message at exactly the offer time is indeterminate",
			entries: []ledger.Entry{{Address: "known@example.com", AwaitingSince: offered}},
			sender:  "known@example.com",
			receipt: offered,
			want:    Indeterminate,
		},
		{
			name: "earliest of several entries decides",
			entries: []ledger.Entry{
				{Address: "known@example.com", AwaitingSince: offered.Add(48 * time.Hour)},
				{Address: "known@example.com", AwaitingSince: offered},
			},
			sender:  "known@example.com",
			receipt: offered.Add(time.Hour),
			want:    Response,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := loadedLedger(t, tt.entries...)
			assert.Equal(t, tt.want, Classify(l, tt.sender, tt.receipt))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "question", Question.String())
	assert.Equal(t, "response", Response.String())
	assert.Equal(t, "indeterminate", Indeterminate.String())
}
