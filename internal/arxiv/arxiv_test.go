// ABOUTME: Tests for the arXiv search client and result cache.
// ABOUTME: Uses httptest servers serving canned Atom feeds.

package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Attention Is All
 You Need</title>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <author><name>Niki Parmar</name></author>
    <author><name>Jakob Uszkoreit</name></author>
  </entry>
</feed>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <opensearch:totalResults xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/">0</opensearch:totalResults>
</feed>`

func TestSearch(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "all:attention is all you need", r.URL.Query().Get("search_query"))
		assert.Equal(t, "1", r.URL.Query().Get("max_results"))
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	defer client.Close()

	result, err := client.Search(context.Background(), "attention is all you need")
	require.NoError(t, err)
	assert.Equal(t, "Attention Is All  You Need", result.Title)
	assert.Equal(t, "http://arxiv.org/abs/1706.03762v7", result.URL)
	assert.Equal(t, "Ashish Vaswani, Noam Shazeer, Niki Parmar...", result.Authors)

	// Second search for the same query is served from cache.
	_, err = client.Search(context.Background(), "attention is all you need")
	require.NoError(t, err)
	assert.Equal(t, int64(1), requests.Load())
}

func TestSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emptyFeed))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	defer client.Close()

	_, err := client.Search(context.Background(), "zzz nonexistent")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestSearchEmptyQuery(t *testing.T) {
	client := New("http://unused.invalid", time.Second)
	defer client.Close()

	_, err := client.Search(context.Background(), "   ")
	assert.Error(t, err)
}

func TestSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	defer client.Close()

	_, err := client.Search(context.Background(), "anything")
	assert.ErrorContains(t, err, "status 503")
}

func TestParseFeedLinkPreference(t *testing.T) {
	// Only an alternate link without a text/html type: still used.
	feed := `<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Some Paper</title>
    <link href="http://arxiv.org/abs/2401.00001" rel="alternate"/>
    <author><name>Only Author</name></author>
  </entry>
</feed>`

	result, err := parseFeed([]byte(feed))
	require.NoError(t, err)
	assert.Equal(t, "http://arxiv.org/abs/2401.00001", result.URL)
	assert.Equal(t, "Only Author", result.Authors)
}

func TestResultCache(t *testing.T) {
	c := newResultCache(50*time.Millisecond, 2)
	defer c.Close()

	c.put("a", &Result{Title: "A"})
	c.put("b", &Result{Title: "B"})

	got, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, "A", got.Title)

	// Third entry evicts the oldest.
	c.put("c", &Result{Title: "C"})
	_, ok = c.get("a")
	assert.False(t, ok)
	_, ok = c.get("b")
	assert.True(t, ok)

	// Entries expire after the TTL.
	time.Sleep(60 * time.Millisecond)
	_, ok = c.get("b")
	assert.False(t, ok)
}
