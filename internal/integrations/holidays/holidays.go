package holidays

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/decembrrr/internal/config"
)

// Day types used by the production calendar feed.
const (
	dayOff       = "1"
	dayShortened = "2"
	dayWorking   = "3"
)

// Holiday is one non-working date from the feed.
type Holiday struct {
	Date  time.Time
	Title string
}

// Client fetches the XML production calendar of a year
type Client struct {
	urlTemplate string
	client      *http.Client
	log         *logrus.Logger
}

// NewClient initializes a new production calendar client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		urlTemplate: cfg.HolidayFeedURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// sendRequest downloads the calendar of year
func (c *Client) sendRequest(ctx context.Context, year int) ([]byte, error) {
	url := c.urlTemplate
	if strings.Contains(url, "%d") {
		url = fmt.Sprintf(url, year)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debugf("Holiday feed XML response: %s", string(body))

	return body, nil
}

// parseCalendar extracts the days off of year from the feed document
func parseCalendar(rawBody []byte, year int) ([]Holiday, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	root := doc.SelectElement("calendar")
	if root == nil {
		return nil, fmt.Errorf("no calendar element found in XML")
	}
	if y := root.SelectAttrValue("year", ""); y != "" && y != fmt.Sprint(year) {
		return nil, fmt.Errorf("feed is for year %s, want %d", y, year)
	}

	titles := map[string]string{}
	for _, h := range root.FindElements("./holidays/holiday") {
		titles[h.SelectAttrValue("id", "")] = h.SelectAttrValue("title", "")
	}

	var out []Holiday
	for _, day := range root.FindElements("./days/day") {
		switch day.SelectAttrValue("t", dayOff) {
		case dayOff:
		case dayShortened, dayWorking:
			continue
		default:
			return nil, fmt.Errorf("unknown day type %q", day.SelectAttrValue("t", ""))
		}
		d, err := time.Parse("2006.01.02", fmt.Sprintf("%d.%s", year, day.SelectAttrValue("d", "")))
		if err != nil {
			return nil, fmt.Errorf("failed to parse day %q: %w", day.SelectAttrValue("d", ""), err)
		}
		title := titles[day.SelectAttrValue("h", "")]
		if title == "" {
			title = "Day off"
		}
		out = append(out, Holiday{Date: d, Title: title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// GetHolidays retrieves the days off of year
func (c *Client) GetHolidays(ctx context.Context, year int) ([]Holiday, error) {
	body, err := c.sendRequest(ctx, year)
	if err != nil {
		return nil, err
	}

	holidays, err := parseCalendar(body, year)
	if err != nil {
		return nil, err
	}

	c.log.Infof("Retrieved %d days off for %d", len(holidays), year)
	return holidays, nil
}
