package timeline

import (
	"context"
	"errors"
	"testing"

	"github.com/dghubble/go-twitter/twitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "tweetcollector/pkg/errors"
	"tweetcollector/pkg/logger"
	tw "tweetcollector/pkg/twitter"
)

// timelineServer serves a fixed timeline the way the API does: newest first,
// bounded by since_id and max_id, at most count entries.
type timelineServer struct {
	ids      []int64 // newest first
	requests []tw.PageRequest
	failAt   int // 1-based call number that fails, 0 for never
	failWith error
	// override returns a canned page for a call number instead
	override map[int][]int64
}

func (s *timelineServer) FetchPage(ctx context.Context, req tw.PageRequest) ([]twitter.Tweet, error) {
	s.requests = append(s.requests, req)
	call := len(s.requests)
	if s.failAt == call {
		return nil, s.failWith
	}
	if ids, ok := s.override[call]; ok {
		return tweets(ids...), nil
	}

	var page []twitter.Tweet
	for _, id := range s.ids {
		if id <= req.SinceID {
			continue
		}
		if req.MaxID != 0 && id > req.MaxID {
			continue
		}
		page = append(page, twitter.Tweet{ID: id, Lang: "en"})
		if len(page) == req.Count {
			break
		}
	}
	return page, nil
}

func tweets(ids ...int64) []twitter.Tweet {
	out := make([]twitter.Tweet, len(ids))
	for i, id := range ids {
		out[i] = twitter.Tweet{ID: id, Lang: "en"}
	}
	return out
}

// descending returns n ids counting down from top
func descending(top int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = top - int64(i)
	}
	return out
}

func idsOf(ts []twitter.Tweet) []int64 {
	out := make([]int64, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func newTestPaginator(f PageFetcher) *Paginator {
	return NewPaginator(f, Options{PageSize: 200, ContinueThreshold: 100}, logger.NewNopLogger())
}

func TestCollectEmptyFirstPage(t *testing.T) {
	server := &timelineServer{}
	p := newTestPaginator(server)

	out, err := p.Collect(context.Background(), 1, 500)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Len(t, server.requests, 1)
	assert.Equal(t, tw.PageRequest{UserID: 1, SinceID: 500, Count: 200}, server.requests[0])
}

func TestCollectFullPagesUntilEmpty(t *testing.T) {
	for k := 1; k <= 3; k++ {
		server := &timelineServer{ids: descending(10_000, 200*k)}
		p := newTestPaginator(server)

		out, err := p.Collect(context.Background(), 1, 0)
		require.NoError(t, err)
		assert.Len(t, out, 200*k)
		assert.Len(t, server.requests, k+1, "k full pages then one empty page")
	}
}

func TestCollectStitchesWithOldestMinusOne(t *testing.T) {
	server := &timelineServer{ids: descending(1000, 450)}
	p := newTestPaginator(server)

	out, err := p.Collect(context.Background(), 3, 0)
	require.NoError(t, err)
	assert.Equal(t, descending(1000, 450), idsOf(out))

	require.Len(t, server.requests, 4)
	assert.Equal(t, int64(0), server.requests[0].MaxID)
	assert.Equal(t, int64(800), server.requests[1].MaxID)
	assert.Equal(t, int64(600), server.requests[2].MaxID)
	assert.Equal(t, int64(550), server.requests[3].MaxID)
}

func TestCollectShortFirstPageStops(t *testing.T) {
	server := &timelineServer{ids: descending(5000, 99)}
	p := newTestPaginator(server)

	out, err := p.Collect(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, out, 99)
	assert.Len(t, server.requests, 1, "below the continue threshold no older page is requested")
}

func TestCollectThresholdPageContinues(t *testing.T) {
	server := &timelineServer{ids: descending(5000, 130), override: map[int][]int64{1: descending(5000, 100)}}
	p := newTestPaginator(server)

	out, err := p.Collect(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, out, 130)
	assert.Len(t, server.requests, 3)
}

func TestCollectStrictFullPages(t *testing.T) {
	server := &timelineServer{ids: descending(5000, 150)}
	p := NewPaginator(server, Options{PageSize: 200, ContinueThreshold: 100, StrictFullPages: true}, logger.NewNopLogger())

	out, err := p.Collect(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, out, 150)
	assert.Len(t, server.requests, 1)
}

func TestCollectRespectsWatermark(t *testing.T) {
	server := &timelineServer{ids: descending(1000, 400)}
	p := newTestPaginator(server)

	out, err := p.Collect(context.Background(), 1, 700)
	require.NoError(t, err)
	assert.Len(t, out, 300)
	for _, tweet := range out {
		assert.Greater(t, tweet.ID, int64(700))
	}
	for _, req := range server.requests {
		assert.Equal(t, int64(700), req.SinceID)
	}
}

func TestCollectStopsWithoutCallWhenMaxIDReachesWatermark(t *testing.T) {
	server := &timelineServer{ids: descending(900, 200)}
	p := newTestPaginator(server)

	out, err := p.Collect(context.Background(), 1, 700)
	require.NoError(t, err)
	assert.Len(t, out, 200)
	require.Len(t, server.requests, 1, "next max_id 700 would not be above the watermark")
}

func TestCollectDropsDuplicatesAndStaleEntries(t *testing.T) {
	server := &timelineServer{override: map[int][]int64{
		1: append(descending(1000, 150), 50),   // 50 is at or below the watermark
		2: append([]int64{851, 852}, 849, 848), // overlap with the first page
		3: {},
	}}
	p := newTestPaginator(server)

	out, err := p.Collect(context.Background(), 1, 60)
	require.NoError(t, err)

	ids := idsOf(out)
	seen := map[int64]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
		assert.Greater(t, id, int64(60))
	}
	assert.Len(t, ids, 152)
	assert.Equal(t, int64(848), ids[len(ids)-1])
}

func TestCollectStopsWhenPageDoesNotAdvance(t *testing.T) {
	server := &timelineServer{override: map[int][]int64{
		1: descending(1000, 120),
		2: {990, 985},
	}}
	p := newTestPaginator(server)

	out, err := p.Collect(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, out, 120)
	assert.Len(t, server.requests, 2)
}

func TestCollectPropagatesErrors(t *testing.T) {
	protected := errs.New(errs.ErrorTypeProtected, 179, "not authorized")
	server := &timelineServer{ids: descending(1000, 400), failAt: 2, failWith: protected}
	p := newTestPaginator(server)

	out, err := p.Collect(context.Background(), 8, 0)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, protected))
	assert.Equal(t, errs.KindProtectedOrUnavailable, errs.Classify(err))
}

func TestNewPaginatorDefaults(t *testing.T) {
	p := NewPaginator(&timelineServer{}, Options{PageSize: 500}, logger.NewNopLogger())
	assert.Equal(t, 200, p.opts.PageSize)
	assert.Equal(t, 100, p.opts.ContinueThreshold)
}
