package scraper

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/core/parse"
	"github.com/vietddude/pollster/internal/retry"
)

// decodeProduct normalizes a scraping API payload into a domain product.
// The API moves fields around between plan tiers and marketplaces, so
// every read probes the known variants rather than binding to one shape.
// The request_info.success flag gates whether the payload is trusted at
// all.
func decodeProduct(body []byte, asin, marketplace string, now time.Time) (*domain.Product, error) {
	if !gjson.ValidBytes(body) {
		return nil, &retry.ParseError{Service: serviceName, Reason: "response body is not valid JSON"}
	}
	root := gjson.ParseBytes(body)

	if ri := root.Get("request_info"); ri.Exists() && !ri.Get("success").Bool() {
		msg := ri.Get("message").String()
		if msg == "" {
			msg = "request was not successful"
		}
		low := strings.ToLower(msg)
		if strings.Contains(low, "invalid") || strings.Contains(low, "not found") || strings.Contains(low, "could not find") {
			return nil, retry.Terminal("scraper rejected request: "+msg, nil)
		}
		return nil, fmt.Errorf("scraper request failed: %s", msg)
	}

	p := root.Get("product")
	if !p.Exists() {
		return nil, &retry.ParseError{Service: serviceName, Reason: "response contains no product payload"}
	}

	prod := &domain.Product{
		ASIN:        asin,
		Marketplace: marketplace,
		Title:       p.Get("title").String(),
		Brand:       p.Get("brand").String(),
		Rating:      p.Get("rating").Float(),
		ReviewCount: int(p.Get("ratings_total").Int()),
		Features:    stringSlice(p.Get("feature_bullets")),
		ImageURLs:   decodeImages(p),
		FetchedAt:   now.UTC(),
	}
	if apiASIN := p.Get("asin").String(); apiASIN != "" {
		prod.ASIN = strings.ToUpper(apiASIN)
	}
	prod.Price, prod.Currency = decodePrice(p)

	avail := p.Get("buybox_winner.availability")
	rawAvail := avail.Get("raw").String()
	prod.InStock = avail.Get("type").String() == "in_stock" ||
		strings.Contains(strings.ToLower(rawAvail), "in stock")
	prod.DeliveryDays = parse.ShippingDays(rawAvail, now)

	if prod.Title == "" && prod.Price == 0 && len(prod.ImageURLs) == 0 {
		return nil, &retry.ParseError{Service: serviceName, Reason: "product payload missing title, price and images"}
	}
	return prod, nil
}

func decodePrice(p gjson.Result) (float64, string) {
	for _, path := range []string{"buybox_winner.price", "price"} {
		v := p.Get(path)
		if !v.Exists() {
			continue
		}
		switch {
		case v.IsObject():
			cur := v.Get("currency").String()
			if cur == "" {
				cur = "USD"
			}
			if val := v.Get("value"); val.Exists() {
				return val.Float(), cur
			}
			if raw := v.Get("raw").String(); raw != "" {
				return parse.Price(raw), cur
			}
		case v.Type == gjson.String:
			if f := parse.Price(v.String()); f > 0 {
				return f, "USD"
			}
		case v.Type == gjson.Number:
			return v.Float(), "USD"
		}
	}
	return 0, "USD"
}

// decodeImages accepts both image shapes the API emits: a list of
// {link: url} objects and a bare list of URL strings. The main image
// always sorts first.
func decodeImages(p gjson.Result) []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	add(p.Get("main_image.link").String())
	p.Get("images").ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			add(v.Get("link").String())
		} else {
			add(v.String())
		}
		return true
	})
	return urls
}

func stringSlice(v gjson.Result) []string {
	if !v.Exists() {
		return nil
	}
	var out []string
	v.ForEach(func(_, item gjson.Result) bool {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}
