// Package donutsmp provides access to the DonutSMP auction house API.
package donutsmp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ColinPogu/donutsmp-ah-scanner/internal/models"
)

// MaxTransactionPages is the upstream cap on the sale-history pagination.
const MaxTransactionPages = 10

const maxErrorBodyBytes = 512

// Client is a stateless request layer over the auction list and
// transaction endpoints. It performs no retries of its own: it classifies
// each response and leaves retry policy to the caller.
type Client struct {
	baseURL    string
	authKey    string
	httpClient *http.Client
}

// NewClient creates a new DonutSMP API client. authKey is the bearer
// credential; it is attached to every request and never logged.
func NewClient(baseURL, authKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		authKey: authKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type rawItem struct {
	ID          *string `json:"id"`
	DisplayName *string `json:"display_name"`
	Count       *int64  `json:"count"`
}

type rawSeller struct {
	Name *string `json:"name"`
	UUID *string `json:"uuid"`
}

type rawListing struct {
	Item     rawItem   `json:"item"`
	Price    *float64  `json:"price"`
	Seller   rawSeller `json:"seller"`
	TimeLeft *int64    `json:"time_left"`
}

type rawTransaction struct {
	Item   rawItem   `json:"item"`
	Price  *float64  `json:"price"`
	Seller rawSeller `json:"seller"`
	SoldAt *int64    `json:"unixMillisDateSold"`
}

type listingsResponse struct {
	Result []rawListing `json:"result"`
}

type transactionsResponse struct {
	Result []rawTransaction `json:"result"`
}

// FetchListings retrieves one page of live auction listings. search and
// sort are optional upstream filters; empty strings omit them. An empty
// result is valid and signals "no more pages".
func (c *Client) FetchListings(ctx context.Context, page int, search, sort string) ([]models.ListingEntry, error) {
	body := map[string]string{}
	if search != "" {
		body["search"] = search
	}
	if sort != "" {
		body["sort"] = sort
	}

	url := fmt.Sprintf("%s/v1/auction/list/%d", c.baseURL, page)
	respBody, err := c.get(ctx, url, page, body)
	if err != nil {
		return nil, err
	}

	var parsed listingsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &FatalError{Page: page, Status: http.StatusOK, Body: fmt.Sprintf("malformed listings payload: %v", err)}
	}

	entries := make([]models.ListingEntry, 0, len(parsed.Result))
	for _, r := range parsed.Result {
		entries = append(entries, models.ListingEntry{
			Item:       models.NewItemKey(r.Item.ID, r.Item.DisplayName),
			Price:      r.Price,
			Count:      r.Item.Count,
			SellerName: r.Seller.Name,
			SellerUUID: r.Seller.UUID,
			TimeLeft:   r.TimeLeft,
		})
	}
	return entries, nil
}

// FetchTransactions retrieves one page of completed sales. The upstream
// contract caps pagination at 10 pages; out-of-range pages are rejected
// before any network call.
func (c *Client) FetchTransactions(ctx context.Context, page int) ([]models.TransactionEntry, error) {
	if page < 1 || page > MaxTransactionPages {
		return nil, ErrPageOutOfRange
	}

	url := fmt.Sprintf("%s/v1/auction/transactions/%d", c.baseURL, page)
	respBody, err := c.get(ctx, url, page, nil)
	if err != nil {
		return nil, err
	}

	var parsed transactionsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &FatalError{Page: page, Status: http.StatusOK, Body: fmt.Sprintf("malformed transactions payload: %v", err)}
	}

	entries := make([]models.TransactionEntry, 0, len(parsed.Result))
	for _, r := range parsed.Result {
		entries = append(entries, models.TransactionEntry{
			Item:       models.NewItemKey(r.Item.ID, r.Item.DisplayName),
			Price:      r.Price,
			SellerName: r.Seller.Name,
			SellerUUID: r.Seller.UUID,
			SoldAt:     r.SoldAt,
		})
	}
	return entries, nil
}

// get performs a single GET request and classifies the response:
// 200 → body, 401 → ErrUnauthorized, 5xx/transport → RetryableError,
// anything else → FatalError. The upstream expects optional filters as a
// JSON body on GET.
func (c *Client) get(ctx context.Context, url string, page int, body map[string]string) ([]byte, error) {
	if c.authKey == "" {
		return nil, ErrMissingAuthKey
	}

	var reqBody io.Reader
	if len(body) > 0 {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.authKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RetryableError{Page: page, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &RetryableError{Page: page, Err: err}
		}
		return data, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode >= 500:
		return nil, &RetryableError{Page: page, Err: fmt.Errorf("server error %d", resp.StatusCode)}
	default:
		return nil, &FatalError{Page: page, Status: resp.StatusCode, Body: truncatedBody(resp.Body)}
	}
}

func truncatedBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	return string(data)
}
