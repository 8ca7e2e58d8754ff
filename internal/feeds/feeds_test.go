package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>뽐뿌 게시판</title>
  <link>https://www.ppomppu.co.kr/</link>
  <item>
    <title>[쿠팡] 무선 이어폰   (19,900원/무료)</title>
    <link>https://www.ppomppu.co.kr/1</link>
    <dc:creator>딜헌터</dc:creator>
    <pubDate>Wed, 01 May 2024 09:00:00 +0900</pubDate>
    <description><![CDATA[<p>역대가 <b>최저가</b></p>]]></description>
  </item>
  <item>
    <title>두번째 딜</title>
    <link>https://www.ppomppu.co.kr/2</link>
  </item>
  <item><title>세번째</title></item>
</channel>
</rss>`

func TestRSSSourceFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.UserAgent(), "NIRA")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	t.Cleanup(srv.Close)

	src := NewHotdealSource()
	src.URL = srv.URL
	src.Limit = 2

	digest, err := src.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "🔥 뽐뿌 핫딜 (RSS)", digest.Title)
	assert.False(t, digest.Fallback)
	require.Len(t, digest.Items, 2)

	first := digest.Items[0]
	assert.Equal(t, "[쿠팡] 무선 이어폰 (19,900원/무료)", first.Title)
	assert.Equal(t, "딜헌터", first.Author)
	assert.Equal(t, "역대가 최저가", first.Snippet)
	assert.True(t, first.Published.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)), first.Published)
}

func TestRSSSourceDigestFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	src := NewHotdealSource()
	src.URL = srv.URL

	digest := src.Digest(context.Background())
	require.NotNil(t, digest)
	assert.True(t, digest.Fallback)
	assert.Empty(t, digest.Items)
	assert.Equal(t, ppomppuHome, digest.URL)
}

func TestNewNewsSource(t *testing.T) {
	t.Parallel()

	for _, category := range NewsCategories() {
		src, err := NewNewsSource(category)
		require.NoError(t, err, category)
		assert.Contains(t, src.Footer, "www.yna.co.kr")
	}

	_, err := NewNewsSource("연예")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "가나다...", Truncate("가나다라마바사", 6))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
}

func TestStripHTML(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b & c", StripHTML("<div>a<br/> b &amp; c</div>"))
	assert.Equal(t, "plain text", StripHTML("plain \n text"))
}

func TestHTMLToMarkdown(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "**bold**", HTMLToMarkdown("<b>bold</b>"))
}
