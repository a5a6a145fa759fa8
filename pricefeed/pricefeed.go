// Package pricefeed scrapes market values from the community price page. It
// is advisory only; nothing in the negotiation loop depends on it.
package pricefeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
)

// DefaultURL is the price page.
const DefaultURL = "https://originvalues.com/"

var pfLog zerolog.Logger = log.With().Str("module", "pricefeed").Logger()

// Item is one priced entry.
type Item struct {
	Name string
	// RawPrice is the text as shown on the page.
	RawPrice string
	// Price is valid when PriceOK is set.
	Price   decimal.Decimal
	PriceOK bool
	Image   string
}

// Client fetches the price page.
type Client struct {
	URL  string
	HTTP *http.Client
}

// NewClient returns a client for DefaultURL.
func NewClient() *Client {
	return &Client{URL: DefaultURL, HTTP: &http.Client{Timeout: 20 * time.Second}}
}

// Fetch downloads and parses the page.
func (c *Client) Fetch(ctx context.Context) ([]Item, error) {
	target := c.URL
	if target == "" {
		target = DefaultURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "tradebot-pricefeed/1.0")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch prices: unexpected status %d", resp.StatusCode)
	}

	items, err := Parse(resp.Body)
	if err != nil {
		return nil, err
	}
	pfLog.Info().Int("count", len(items)).Msg("[PriceFeed] fetched items")
	return items, nil
}

// Parse extracts every element with class "grid-item": its h2 is the name,
// its span.hc-value the price and its first img the icon. Containers missing
// a name or price are skipped.
func Parse(r io.Reader) ([]Item, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse price page: %w", err)
	}

	var items []Item
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "grid-item") {
			if it, ok := parseContainer(n); ok {
				items = append(items, it)
			}
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return items, nil
}

func parseContainer(n *html.Node) (Item, bool) {
	name := find(n, func(x *html.Node) bool { return x.Data == "h2" })
	price := find(n, func(x *html.Node) bool { return x.Data == "span" && hasClass(x, "hc-value") })
	if name == nil || price == nil {
		pfLog.Warn().Msg("[PriceFeed] item container without name or price, skipped")
		return Item{}, false
	}

	it := Item{Name: text(name), RawPrice: text(price)}
	if img := find(n, func(x *html.Node) bool { return x.Data == "img" }); img != nil {
		it.Image = attr(img, "src")
	}
	if d, err := ParsePrice(it.RawPrice); err == nil {
		it.Price, it.PriceOK = d, true
	} else {
		pfLog.Debug().Err(err).Str("item", it.Name).Msg("[PriceFeed] unparsable price")
	}
	return it, true
}

// ParsePrice reads values like "1,250", "12.5k", "3M" or "450 HC".
func ParsePrice(s string) (decimal.Decimal, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSuffix(v, "hc")
	v = strings.ReplaceAll(v, ",", "")
	v = strings.TrimSpace(v)

	mult := decimal.NewFromInt(1)
	switch {
	case strings.HasSuffix(v, "k"):
		mult = decimal.NewFromInt(1_000)
		v = strings.TrimSuffix(v, "k")
	case strings.HasSuffix(v, "m"):
		mult = decimal.NewFromInt(1_000_000)
		v = strings.TrimSuffix(v, "m")
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %q: %w", s, err)
	}
	return d.Mul(mult), nil
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type == html.ElementNode && match(ch) {
			return ch
		}
		if got := find(ch, match); got != nil {
			return got
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		if x.Type == html.TextNode {
			b.WriteString(x.Data)
		}
		for ch := x.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
