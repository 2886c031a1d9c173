// Package datti is a typed client for the Datti REST API, which owns groups,
// lendings, repayments and the debt computation behind credits.
package datti

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/datti/backend/internal/models"
)

// Backend is the subset of the Datti API this service consumes.
type Backend interface {
	Me(ctx context.Context) (*models.User, error)
	ListMembers(ctx context.Context, groupID string) ([]models.Member, error)
	ListLendings(ctx context.Context, groupID string) ([]models.Lending, error)
	GetLending(ctx context.Context, groupID, lendingID string) (*models.Lending, error)
	CreateLending(ctx context.Context, groupID string, in LendingInput) (*models.Lending, error)
	UpdateLending(ctx context.Context, groupID, lendingID string, in LendingInput) (*models.Lending, error)
	DeleteLending(ctx context.Context, groupID, lendingID string) error
	ListRepayments(ctx context.Context, groupID string) ([]models.Repayment, error)
	CreateRepayment(ctx context.Context, groupID string, in RepaymentInput) (*models.Repayment, error)
	ListCredits(ctx context.Context, groupID string) ([]models.Credit, error)
}

// PaymentInput is one debt in a lending payload. PaymentID lets the API match
// an existing debt row on update.
type PaymentInput struct {
	PaymentID string `json:"paymentId,omitempty"`
	PaidTo    string `json:"paidTo"`
	Amount    int64  `json:"amount"`
}

type LendingInput struct {
	Name      string         `json:"name"`
	EventedAt time.Time      `json:"eventedAt"`
	PaidBy    string         `json:"paidBy"`
	Amount    int64          `json:"amount"`
	Payments  []PaymentInput `json:"payments"`
}

type RepaymentInput struct {
	PaidBy string    `json:"paidBy"`
	PaidTo string    `json:"paidTo"`
	Amount int64     `json:"amount"`
	PaidAt time.Time `json:"paidAt"`
}

// PaymentsFromDebts converts allocator debts into a create/update payload.
// Payment ids are only sent when keepIDs is set.
func PaymentsFromDebts(debts []models.Debt, keepIDs bool) []PaymentInput {
	payments := make([]PaymentInput, 0, len(debts))
	for _, d := range debts {
		p := PaymentInput{PaidTo: d.PaidTo, Amount: d.Amount}
		if keepIDs {
			p.PaymentID = d.PaymentID
		}
		payments = append(payments, p)
	}
	return payments
}

// Client talks to the Datti API. The http.Client is expected to attach
// credentials itself (see oauth2.NewClient).
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		userAgent:  "datti-bff/1.0",
	}
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	var members []models.Member
	if err := c.do(ctx, http.MethodGet, groupPath(groupID, "members"), nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) ListLendings(ctx context.Context, groupID string) ([]models.Lending, error) {
	var lendings []models.Lending
	if err := c.do(ctx, http.MethodGet, groupPath(groupID, "lendings"), nil, &lendings); err != nil {
		return nil, err
	}
	return lendings, nil
}

func (c *Client) GetLending(ctx context.Context, groupID, lendingID string) (*models.Lending, error) {
	var lending models.Lending
	if err := c.do(ctx, http.MethodGet, groupPath(groupID, "lendings", lendingID), nil, &lending); err != nil {
		return nil, err
	}
	return &lending, nil
}

func (c *Client) CreateLending(ctx context.Context, groupID string, in LendingInput) (*models.Lending, error) {
	var lending models.Lending
	if err := c.do(ctx, http.MethodPost, groupPath(groupID, "lendings"), in, &lending); err != nil {
		return nil, err
	}
	return &lending, nil
}

func (c *Client) UpdateLending(ctx context.Context, groupID, lendingID string, in LendingInput) (*models.Lending, error) {
	var lending models.Lending
	if err := c.do(ctx, http.MethodPut, groupPath(groupID, "lendings", lendingID), in, &lending); err != nil {
		return nil, err
	}
	return &lending, nil
}

func (c *Client) DeleteLending(ctx context.Context, groupID, lendingID string) error {
	return c.do(ctx, http.MethodDelete, groupPath(groupID, "lendings", lendingID), nil, nil)
}

func (c *Client) ListRepayments(ctx context.Context, groupID string) ([]models.Repayment, error) {
	var repayments []models.Repayment
	if err := c.do(ctx, http.MethodGet, groupPath(groupID, "repayments"), nil, &repayments); err != nil {
		return nil, err
	}
	return repayments, nil
}

func (c *Client) CreateRepayment(ctx context.Context, groupID string, in RepaymentInput) (*models.Repayment, error) {
	var repayment models.Repayment
	if err := c.do(ctx, http.MethodPost, groupPath(groupID, "repayments"), in, &repayment); err != nil {
		return nil, err
	}
	return &repayment, nil
}

func (c *Client) ListCredits(ctx context.Context, groupID string) ([]models.Credit, error) {
	var credits []models.Credit
	if err := c.do(ctx, http.MethodGet, groupPath(groupID, "credits"), nil, &credits); err != nil {
		return nil, err
	}
	return credits, nil
}

func groupPath(groupID string, parts ...string) string {
	segments := []string{"groups", url.PathEscape(groupID)}
	for _, p := range parts {
		segments = append(segments, url.PathEscape(p))
	}
	return "/" + strings.Join(segments, "/")
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
