package correlation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ricochet.dev/ricochet/internal/store"
)

func TestSeverityForContextTag(t *testing.T) {
	assert.Equal(t, SeverityHigh, SeverityForContextTag("ssti:django"))
	assert.Equal(t, SeverityHigh, SeverityForContextTag("sqli"))
	assert.Equal(t, SeverityMedium, SeverityForContextTag("xss:html"))
	assert.Equal(t, SeverityInfo, SeverityForContextTag("unknown"))
}

func TestSeverityForContextTag_MatchesKeywordAnywhereInTag(t *testing.T) {
	// Tags are free-form; the keyword need not lead the tag.
	assert.Equal(t, SeverityHigh, SeverityForContextTag("blind-sqli"))
	assert.Equal(t, SeverityHigh, SeverityForContextTag("log-ssti:jinja2"))
	assert.Equal(t, SeverityMedium, SeverityForContextTag("reflected-xss"))
	assert.Equal(t, SeverityInfo, SeverityForContextTag("header:x-forwarded-host"))
}

func TestFromPair_DerivesDelayAndParsesJSONMetadata(t *testing.T) {
	sent := time.Now()
	received := sent.Add(42 * time.Second)

	pair := store.CorrelatedPair{
		Injection: store.Injection{Token: "aaaaaaaaaaaaaaaa", ContextTag: "xss:html", SentAt: sent},
		Callback:  store.Callback{ID: "cb-1", Token: "aaaaaaaaaaaaaaaa", Body: `{"cookie":"abc"}`, ReceivedAt: received},
	}

	f := FromPair(pair)
	assert.InDelta(t, 42, f.DelaySeconds, 0.01)
	assert.Equal(t, SeverityMedium, f.Severity)
	require.NotNil(t, f.Metadata)
	assert.Equal(t, "abc", f.Metadata["cookie"])
}

func TestFromPair_NonJSONBodyLeavesMetadataNil(t *testing.T) {
	pair := store.CorrelatedPair{
		Injection: store.Injection{Token: "bbbbbbbbbbbbbbbb", ContextTag: "sqli", SentAt: time.Now()},
		Callback:  store.Callback{ID: "cb-2", Token: "bbbbbbbbbbbbbbbb", Body: "not json", ReceivedAt: time.Now()},
	}
	f := FromPair(pair)
	assert.Nil(t, f.Metadata)
}

func TestQuery_ReturnsFindingsForCorrelatedPairs(t *testing.T) {
	s, err := store.New(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.RecordInjection(ctx, store.Injection{
		Token: "cccccccccccccccc", URL: "https://x", Method: "GET", ParamName: "q", ContextTag: "ssti", PayloadTemplate: "{{7*7}}", SentAt: time.Now(),
	}))
	_, err = s.RecordCallback(ctx, store.Callback{
		ID: "cb-3", Token: "cccccccccccccccc", Protocol: "http", RemoteAddr: "1.1.1.1", ReceivedAt: time.Now(),
	})
	require.NoError(t, err)

	findings, err := Query(ctx, s, time.Time{}, "")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, SeverityHigh, findings[0].Severity)
}
