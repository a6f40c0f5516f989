package activeprobe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ricochet.dev/ricochet/internal/activeprobe/fixtures"
	"ricochet.dev/ricochet/internal/inject"
	"ricochet.dev/ricochet/internal/ratelimit"
	"ricochet.dev/ricochet/internal/store"
)

func TestRun_ProbesEveryEndpointParamPair(t *testing.T) {
	srv := fixtures.NewServer()
	defer srv.Close()

	s, err := store.New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	inj := inject.New(s, ratelimit.New(1000, 1000))

	opts := Options{
		BaseURL:         srv.URL,
		Endpoints:       []string{"/search", "/profile"},
		ParamNames:      []string{"q", "id"},
		PayloadTemplate: "{{CALLBACK}}",
		ContextTag:      "xss",
		Concurrency:     2,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	results := Run(ctx, inj, opts)

	require.Len(t, results, 4) // 2 endpoints x 2 params
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, 200, r.StatusCode)
	}
}

func TestRun_DryRunSendsNothing(t *testing.T) {
	s, err := store.New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	inj := inject.New(s, ratelimit.New(1000, 1000))
	opts := Options{
		BaseURL:         "http://127.0.0.1:1", // would fail to connect if a real send were attempted
		Endpoints:       []string{"/x"},
		ParamNames:      []string{"q"},
		PayloadTemplate: "{{CALLBACK}}",
		ContextTag:      "xss",
		DryRun:          true,
	}

	results := Run(context.Background(), inj, opts)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.True(t, results[0].DryRun)
}

func TestParseEndpointsFile_SkipsBlankAndCommentLines(t *testing.T) {
	contents := "/a\n# comment\n\nb/c\n"
	got := ParseEndpointsFile(contents)
	assert.Equal(t, []string{"/a", "/b/c"}, got)
}
