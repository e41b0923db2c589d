package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"pricepal/internal/misc"
	"pricepal/internal/model"
)

var ErrProductIdentifier = errors.New("no product identifier found in Amazon URL")
var ErrAmazonFetch = errors.New("Amazon fetch failed")

const amazonSite = "https://www.amazon.in"

// Ordered from most to least specific. The bare 10-character segment matcher
// must come last or it would claim other alphanumeric path tokens before the
// explicit /dp/ and /product/ forms get a chance.
var asinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/dp/([A-Z0-9]{10})(?:[/?#]|$)`),
	regexp.MustCompile(`/product/([A-Z0-9]{10})(?:[/?#]|$)`),
	regexp.MustCompile(`[?&]asin=([A-Z0-9]{10})(?:[&#]|$)`),
	regexp.MustCompile(`/([A-Z0-9]{10})(?:[/?#]|$)`),
}

// ExtractASIN resolves the 10-character Amazon catalog identifier from a
// product URL, trying pattern matchers in priority order.
func ExtractASIN(rawURL string) (string, error) {
	for _, p := range asinPatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return m[1], nil
		}
	}
	return "", errors.Wrapf(ErrProductIdentifier, "url: %s", rawURL)
}

// CanonicalProductURL rebuilds a product URL from nothing but the ASIN,
// dropping referral and tracking noise so the same product always maps to
// the same URL.
func CanonicalProductURL(asin string) string {
	return amazonSite + "/dp/" + asin
}

type fieldSelector struct {
	selector string
	extract  func(*goquery.Selection) string
}

func selectionText(s *goquery.Selection) string {
	return strings.TrimSpace(s.First().Text())
}

func selectionImageSrc(s *goquery.Selection) string {
	if src, ok := s.First().Attr("src"); ok && src != "" {
		return src
	}
	src, _ := s.First().Attr("data-src")
	return src
}

var titleSelectors = []fieldSelector{
	{"#productTitle", selectionText},
	{".product-title", selectionText},
	{`[data-automation-id="product-title"]`, selectionText},
}

var priceSelectors = []fieldSelector{
	{".a-price-whole", selectionText},
	{".a-offscreen", selectionText},
	{".a-price .a-offscreen", selectionText},
	{`[data-automation-id="price"]`, selectionText},
	{".a-price-range .a-offscreen", selectionText},
}

var imageSelectors = []fieldSelector{
	{"#landingImage", selectionImageSrc},
	{".a-dynamic-image", selectionImageSrc},
	{`[data-automation-id="product-image"]`, selectionImageSrc},
}

func firstMatch(doc *goquery.Document, chain []fieldSelector) string {
	for _, fs := range chain {
		sel := doc.Find(fs.selector)
		if sel.Length() == 0 {
			continue
		}
		if v := fs.extract(sel); v != "" {
			return v
		}
	}
	return ""
}

var priceTokenPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// parsePriceText pulls the first numeric token out of a price string,
// tolerating currency symbols and thousands separators ("₹1,23,456.00").
func parsePriceText(text string) (float64, bool) {
	text = strings.ReplaceAll(text, ",", "")
	tok := priceTokenPattern.FindString(text)
	if tok == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// AmazonGetProduct fetches the product page for the ASIN resolved from
// rawURL and scrapes it into an Observation. A missing identifier, a failed
// request or a non-2xx status is a hard failure; a selector chain missing
// on the page only degrades that one field to its default.
func (c Client) AmazonGetProduct(ctx context.Context, rawURL string) (model.Observation, error) {
	var o model.Observation
	asin, err := ExtractASIN(rawURL)
	if err != nil {
		return o, err
	}

	site := c.AmazonSite
	if site == "" {
		site = amazonSite
	}
	fetchURL := site + "/dp/" + asin

	req, err := newRequest(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return o, errors.Wrapf(err, "error creating request from URL: %s", fetchURL)
	}
	resp, err := c.Do(req)
	if err != nil {
		return o, errors.Wrapf(ErrAmazonFetch, "error doing request to URL: %s, err: %v", fetchURL, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.Logger.Errorf("AmazonGetProduct: Error closing response body on request to URL: %s, err: %v", fetchURL, err)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 2*1024*1024))
	if err != nil {
		return o, errors.Wrapf(ErrAmazonFetch, "error reading product page response body, status: %s, URL: %s, err: %v",
			resp.Status, fetchURL, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode > 299 {
		return o, errors.Wrapf(ErrAmazonFetch, "error getting product page, status: %s, URL: %s, body:\n%s",
			resp.Status, fetchURL, misc.BytesLimit(body, 500))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return o, errors.Wrapf(ErrAmazonFetch, "error parsing product page HTML, URL: %s, err: %v", fetchURL, err)
	}

	name := firstMatch(doc, titleSelectors)
	if name == "" {
		c.Logger.Debugf("AmazonGetProduct: No title found for ASIN: %s, falling back to default", asin)
		name = "Product Name Not Found"
	}

	var price float64
	for _, fs := range priceSelectors {
		sel := doc.Find(fs.selector)
		if sel.Length() == 0 {
			continue
		}
		if p, ok := parsePriceText(fs.extract(sel)); ok {
			price = p
			break
		}
	}
	if price == 0 {
		c.Logger.Debugf("AmazonGetProduct: No price found for ASIN: %s, falling back to 0", asin)
	}

	imageURL := firstMatch(doc, imageSelectors)

	// Absence of the availability element is not evidence of unavailability,
	// only the explicit phrase downgrades the product.
	availability := model.AvailabilityInStock
	if avText := selectionText(doc.Find("#availability span")); avText != "" {
		if strings.Contains(strings.ToLower(avText), "out of stock") {
			availability = model.AvailabilityOutOfStock
		}
	}

	return model.Observation{
		Name:         name,
		Price:        price,
		ImageURL:     imageURL,
		ASIN:         asin,
		URL:          CanonicalProductURL(asin),
		Availability: availability,
	}, nil
}
