package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/splitledger/splitledger/pkg/apperr"
	"github.com/splitledger/splitledger/pkg/entity"
	"github.com/splitledger/splitledger/pkg/logger"
)

// HTTPClient talks to the server of record over its REST API.
type HTTPClient struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string
	// Token authenticates every request as a bearer token.
	Token string

	http *http.Client
	log  logger.Logger
}

var _ API = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, token string, log logger.Logger) *HTTPClient {
	if log == nil {
		log = logger.Nop{}
	}
	return &HTTPClient{
		BaseURL: baseURL,
		Token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// do runs one JSON round trip. A nil body sends no payload; a nil out
// discards the response body.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var payload *bytes.Buffer
	if body != nil {
		payload = bytes.NewBuffer(nil)
		if err := json.NewEncoder(payload).Encode(body); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %v", apperr.ErrNoConnection, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, apperr.ErrNotFound)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s %s: %w", method, path, apperr.ErrConflict)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *HTTPClient) GetGroup(ctx context.Context, groupID int64) (*entity.Group, error) {
	var out entity.Group
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/groups/%d", groupID), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListMembers(ctx context.Context, groupID int64) ([]*entity.GroupMember, error) {
	var out []*entity.GroupMember
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/groups/%d/members", groupID), nil, &out)
	return out, err
}

func (c *HTTPClient) ListAccounts(ctx context.Context, groupID int64) ([]*entity.Account, error) {
	var out []*entity.Account
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/groups/%d/accounts", groupID), nil, &out)
	return out, err
}

func (c *HTTPClient) GetAccount(ctx context.Context, groupID, accountID int64) (*entity.Account, error) {
	var out entity.Account
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/groups/%d/accounts/%d", groupID, accountID), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateAccount(ctx context.Context, a *entity.Account) (*entity.Account, error) {
	var out entity.Account
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/groups/%d/accounts", a.GroupID), a, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateAccount(ctx context.Context, a *entity.Account) (*entity.Account, error) {
	var out entity.Account
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/groups/%d/accounts/%d", a.GroupID, a.ID), a, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteAccount(ctx context.Context, groupID, accountID int64) (*entity.Account, error) {
	var out entity.Account
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/groups/%d/accounts/%d", groupID, accountID), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DiscardAccountEdit(ctx context.Context, groupID, accountID int64) (*entity.Account, error) {
	var out entity.Account
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/groups/%d/accounts/%d/discard", groupID, accountID), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListTransactions(ctx context.Context, groupID int64) ([]entity.TransactionRecord, error) {
	var out []entity.TransactionRecord
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/groups/%d/transactions", groupID), nil, &out)
	return out, err
}

func (c *HTTPClient) GetTransaction(ctx context.Context, groupID, txID int64) (entity.TransactionRecord, error) {
	var out entity.TransactionRecord
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/groups/%d/transactions/%d", groupID, txID), nil, &out)
	return out, err
}

func (c *HTTPClient) CreateTransaction(ctx context.Context, rec entity.TransactionRecord) (entity.TransactionRecord, error) {
	var out entity.TransactionRecord
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/groups/%d/transactions", rec.Transaction.GroupID), rec, &out)
	return out, err
}

func (c *HTTPClient) UpdateTransaction(ctx context.Context, rec entity.TransactionRecord) (entity.TransactionRecord, error) {
	var out entity.TransactionRecord
	err := c.do(ctx, http.MethodPut,
		fmt.Sprintf("/groups/%d/transactions/%d", rec.Transaction.GroupID, rec.Transaction.ID), rec, &out)
	return out, err
}

func (c *HTTPClient) DeleteTransaction(ctx context.Context, groupID, txID int64) (entity.TransactionRecord, error) {
	var out entity.TransactionRecord
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/groups/%d/transactions/%d", groupID, txID), nil, &out)
	return out, err
}

func (c *HTTPClient) DiscardTransactionEdit(ctx context.Context, groupID, txID int64) (entity.TransactionRecord, error) {
	var out entity.TransactionRecord
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/groups/%d/transactions/%d/discard", groupID, txID), nil, &out)
	return out, err
}
