// internal/feeds/sources.go

package feeds

import (
	"fmt"
	"net/url"
)

const (
	PpomppuRSS  = "https://www.ppomppu.co.kr/rss.php?id=ppomppu"
	ppomppuHome = "https://www.ppomppu.co.kr/zboard/zboard.php?id=ppomppu"

	hotdealColor = 0xFF8800
	newsColor    = 0x0099FF
)

// DefaultNewsCategory is used when no category is chosen.
const DefaultNewsCategory = "최신기사"

var newsFeeds = map[string]string{
	"최신기사": "https://www.yna.co.kr/rss/news.xml",
	"스포츠":  "https://www.yna.co.kr/rss/sports.xml",
	"정치":   "https://www.yna.co.kr/rss/politics.xml",
	"경제":   "https://www.yna.co.kr/rss/economy.xml",
	"문화":   "https://www.yna.co.kr/rss/culture.xml",
	"사회":   "https://www.yna.co.kr/rss/society.xml",
	"북한":   "https://www.yna.co.kr/rss/northkorea.xml",
}

var newsOrder = []string{"최신기사", "스포츠", "정치", "경제", "문화", "사회", "북한"}

// NewHotdealSource reads the Ppomppu hot deal board.
func NewHotdealSource() *RSSSource {
	src := NewRSSSource("hotdeal", PpomppuRSS)
	src.Title = "🔥 뽐뿌 핫딜 (RSS)"
	src.HomeURL = ppomppuHome
	src.Footer = "출처: 뽐뿌 핫딜 (RSS)"
	src.Color = hotdealColor
	src.Fallback = "현재 자동 수집에 문제가 있습니다. 링크를 통해 최신 핫딜을 확인해주세요."
	return src
}

// NewsCategories lists the news categories in display order.
func NewsCategories() []string {
	return append([]string(nil), newsOrder...)
}

// NewNewsSource reads one Yonhap news category.
func NewNewsSource(category string) (*RSSSource, error) {
	feedURL, ok := newsFeeds[category]
	if !ok {
		return nil, fmt.Errorf("unknown news category %q", category)
	}
	src := NewRSSSource(category+" 뉴스", feedURL)
	src.Color = newsColor
	if u, err := url.Parse(feedURL); err == nil {
		src.Footer = fmt.Sprintf("%s 뉴스 - 출처: %s", category, u.Hostname())
		src.HomeURL = "https://" + u.Hostname()
	}
	src.Fallback = fmt.Sprintf("'%s' 뉴스를 가져오지 못했습니다. 잠시 후 다시 시도해주세요.", category)
	return src, nil
}
