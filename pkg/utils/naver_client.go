package utils

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Default Naver endpoints.
const (
	NaverSearchAdBaseURL = "https://api.naver.com"
	NaverOpenAPIBaseURL  = "https://openapi.naver.com"

	keywordToolURI = "/keywordstool"
)

// ErrNaverCredentials is returned when a call needs keys that are not set.
var ErrNaverCredentials = errors.New("naver credentials not configured")

// NaverConfig holds API credentials and endpoints
type NaverConfig struct {
	SearchAdAPIKey    string
	SearchAdSecretKey string
	CustomerID        string
	ClientID          string
	ClientSecret      string

	// Base URLs default to the public endpoints
	SearchAdBaseURL string
	OpenAPIBaseURL  string
}

// NaverClient calls the Naver Search Ad keyword tool, shopping search and
// DataLab search trend APIs.
type NaverClient struct {
	httpClient *HTTPClient
	config     NaverConfig
	now        func() time.Time
}

// NewNaverClient creates a Naver API client
func NewNaverClient(config NaverConfig, httpClient *HTTPClient) *NaverClient {
	if config.SearchAdBaseURL == "" {
		config.SearchAdBaseURL = NaverSearchAdBaseURL
	}
	if config.OpenAPIBaseURL == "" {
		config.OpenAPIBaseURL = NaverOpenAPIBaseURL
	}
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &NaverClient{
		httpClient: httpClient,
		config:     config,
		now:        time.Now,
	}
}

// SignSearchAd returns the base64 HMAC-SHA256 of "timestamp.method.uri".
func SignSearchAd(secret, timestamp, method, uri string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + method + "." + uri))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *NaverClient) searchAdHeaders(method, uri string) map[string]string {
	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	return map[string]string{
		"Content-Type": "application/json; charset=UTF-8",
		"X-Timestamp":  timestamp,
		"X-API-KEY":    c.config.SearchAdAPIKey,
		"X-Customer":   c.config.CustomerID,
		"X-Signature":  SignSearchAd(c.config.SearchAdSecretKey, timestamp, method, uri),
	}
}

func (c *NaverClient) openAPIHeaders() map[string]string {
	return map[string]string{
		"X-Naver-Client-Id":     c.config.ClientID,
		"X-Naver-Client-Secret": c.config.ClientSecret,
	}
}

// SearchVolume is a monthly query count. The API reports very small volumes
// as the string "< 10"; those decode as zero.
type SearchVolume int

// UnmarshalJSON accepts numbers and strings.
func (v *SearchVolume) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return ferr
			}
			i = int64(f)
		}
		*v = SearchVolume(i)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("search volume: %w", err)
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		*v = 0
		return nil
	}
	*v = SearchVolume(i)
	return nil
}

// KeywordStat is one related keyword from the keyword tool
type KeywordStat struct {
	RelKeyword         string       `json:"relKeyword"`
	MonthlyPcQcCnt     SearchVolume `json:"monthlyPcQcCnt"`
	MonthlyMobileQcCnt SearchVolume `json:"monthlyMobileQcCnt"`
	CompIdx            string       `json:"compIdx,omitempty"`
}

// Total is PC plus mobile monthly volume.
func (k KeywordStat) Total() int {
	return int(k.MonthlyPcQcCnt) + int(k.MonthlyMobileQcCnt)
}

// KeywordResult is the keyword tool response
type KeywordResult struct {
	KeywordList []KeywordStat `json:"keywordList"`
}

// TopKeywords returns up to n keywords ordered by total volume, highest first.
func (r *KeywordResult) TopKeywords(n int) []KeywordStat {
	sorted := append([]KeywordStat(nil), r.KeywordList...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Total() > sorted[j].Total()
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Keywords queries related keywords for a hint keyword
func (c *NaverClient) Keywords(ctx context.Context, hint string) (*KeywordResult, error) {
	if c.config.SearchAdAPIKey == "" || c.config.SearchAdSecretKey == "" || c.config.CustomerID == "" {
		return nil, fmt.Errorf("keyword tool: %w", ErrNaverCredentials)
	}
	resp, err := c.httpClient.Do(ctx, &HTTPRequest{
		URL:     c.config.SearchAdBaseURL + keywordToolURI,
		Method:  "GET",
		Headers: c.searchAdHeaders("GET", keywordToolURI),
		QueryParams: map[string]string{
			"hintKeywords": hint,
			"showDetail":   "1",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("keyword tool request failed: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, &StatusError{Service: "Naver keyword tool", StatusCode: resp.StatusCode, Body: string(resp.RawBody)}
	}
	var result KeywordResult
	if err := json.Unmarshal(resp.RawBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse keyword tool response: %w", err)
	}
	return &result, nil
}

// ShoppingItem is one product from the shopping search
type ShoppingItem struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Image     string `json:"image,omitempty"`
	LPrice    string `json:"lprice"`
	HPrice    string `json:"hprice,omitempty"`
	MallName  string `json:"mallName"`
	ProductID string `json:"productId"`
	Brand     string `json:"brand,omitempty"`
	Maker     string `json:"maker,omitempty"`
	Category1 string `json:"category1,omitempty"`
	Category2 string `json:"category2,omitempty"`
}

// ShoppingResult is the shopping search response
type ShoppingResult struct {
	Total   int            `json:"total"`
	Start   int            `json:"start"`
	Display int            `json:"display"`
	Items   []ShoppingItem `json:"items"`
}

// PriceStats summarizes lowest prices across items
type PriceStats struct {
	Min    int `json:"min"`
	Q1     int `json:"q1"`
	Median int `json:"median"`
	Q3     int `json:"q3"`
	Max    int `json:"max"`
	Count  int `json:"count"`
}

// PriceStats computes the price distribution of items with a parseable
// lowest price. ok is false when there are none.
func (r *ShoppingResult) PriceStats() (stats PriceStats, ok bool) {
	prices := make([]int, 0, len(r.Items))
	for _, item := range r.Items {
		if p, err := strconv.Atoi(item.LPrice); err == nil {
			prices = append(prices, p)
		}
	}
	if len(prices) == 0 {
		return PriceStats{}, false
	}
	sort.Ints(prices)
	n := len(prices)
	return PriceStats{
		Min:    prices[0],
		Q1:     prices[n/4],
		Median: prices[n/2],
		Q3:     prices[3*n/4],
		Max:    prices[n-1],
		Count:  n,
	}, true
}

// Shopping searches products, most similar first. display is clamped to 1..100.
func (c *NaverClient) Shopping(ctx context.Context, query string, display int) (*ShoppingResult, error) {
	if c.config.ClientID == "" || c.config.ClientSecret == "" {
		return nil, fmt.Errorf("shopping search: %w", ErrNaverCredentials)
	}
	if display <= 0 || display > 100 {
		display = 100
	}
	resp, err := c.httpClient.Do(ctx, &HTTPRequest{
		URL:     c.config.OpenAPIBaseURL + "/v1/search/shop.json",
		Method:  "GET",
		Headers: c.openAPIHeaders(),
		QueryParams: map[string]string{
			"query":   query,
			"display": strconv.Itoa(display),
			"sort":    "sim",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shopping search request failed: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, &StatusError{Service: "Naver shopping", StatusCode: resp.StatusCode, Body: string(resp.RawBody)}
	}
	var result ShoppingResult
	if err := json.Unmarshal(resp.RawBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse shopping response: %w", err)
	}
	return &result, nil
}

// TrendPoint is one period of relative search volume
type TrendPoint struct {
	Period string  `json:"period"`
	Ratio  float64 `json:"ratio"`
}

// TrendSeries is the trend of one keyword group
type TrendSeries struct {
	Title    string       `json:"title"`
	Keywords []string     `json:"keywords"`
	Data     []TrendPoint `json:"data"`
}

// TrendResult is the DataLab search trend response
type TrendResult struct {
	StartDate string        `json:"startDate"`
	EndDate   string        `json:"endDate"`
	TimeUnit  string        `json:"timeUnit"`
	Results   []TrendSeries `json:"results"`
}

// Trend returns the monthly search trend of keyword over the last year
func (c *NaverClient) Trend(ctx context.Context, keyword string) (*TrendResult, error) {
	if c.config.ClientID == "" || c.config.ClientSecret == "" {
		return nil, fmt.Errorf("datalab: %w", ErrNaverCredentials)
	}
	end := c.now()
	start := end.AddDate(-1, 0, 0)
	body := map[string]interface{}{
		"startDate": start.Format("2006-01-02"),
		"endDate":   end.Format("2006-01-02"),
		"timeUnit":  "month",
		"keywordGroups": []map[string]interface{}{
			{"groupName": keyword, "keywords": []string{keyword}},
		},
	}
	resp, err := c.httpClient.Do(ctx, &HTTPRequest{
		URL:     c.config.OpenAPIBaseURL + "/v1/datalab/search",
		Method:  "POST",
		Headers: c.openAPIHeaders(),
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("datalab request failed: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, &StatusError{Service: "Naver datalab", StatusCode: resp.StatusCode, Body: string(resp.RawBody)}
	}
	var result TrendResult
	if err := json.Unmarshal(resp.RawBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse datalab response: %w", err)
	}
	return &result, nil
}
