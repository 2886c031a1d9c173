package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/datti/backend/internal/allocator"
	"github.com/datti/backend/internal/config"
	"github.com/datti/backend/internal/models"
	"github.com/go-redis/redis/v8"
)

var (
	ErrDraftNotFound    = errors.New("draft not found or expired")
	ErrDraftRateLimited = errors.New("draft rate limit exceeded")
)

// LendingDraft is a lending form in progress. PaidBy and Payments are owned
// by the debt allocator; State and Burden are derived on every change.
type LendingDraft struct {
	ID        string          `json:"id" example:"0b6f6c1e-5d0c-4d39-9a51-7f3f2a1f6b10"`
	OwnerID   string          `json:"ownerId" example:"u_01"`
	GroupID   string          `json:"groupId" example:"g_01"`
	LendingID string          `json:"lendingId,omitempty"` // set when editing an existing lending
	Name      string          `json:"name" example:"Dinner"`
	EventedAt string          `json:"eventedAt,omitempty" example:"2026-10-01T19:00:00+09:00"`
	Amount    *int64          `json:"amount,omitempty" example:"300"`
	PaidBy    string          `json:"paidBy"`
	Payments  []models.Debt   `json:"payments"`
	Members   []models.Member `json:"members"`
	State     string          `json:"state" example:"PayerSelected"`
	Burden    int64           `json:"burden" example:"100"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (d *LendingDraft) restoreAllocator() *allocator.Allocator {
	return allocator.Restore(d.Members, d.PaidBy, d.Payments)
}

func (d *LendingDraft) total() int64 {
	if d.Amount == nil {
		return 0
	}
	return *d.Amount
}

// apply copies the allocator state back onto the draft.
func (d *LendingDraft) apply(a *allocator.Allocator) {
	d.PaidBy = a.PayerID()
	d.Payments = a.Debts()
	d.State = a.State().String()
	d.Burden = a.Burden(d.total())
}

func (d *LendingDraft) isMember(userID string) bool {
	for _, m := range d.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// submission turns the draft into the payload the lending validator checks.
func (d *LendingDraft) submission() LendingRequest {
	req := LendingRequest{
		Name:      d.Name,
		EventedAt: d.EventedAt,
		PaidBy:    d.PaidBy,
		Amount:    d.Amount,
		Payments:  make([]PaymentRequest, 0, len(d.Payments)),
	}
	for _, p := range d.Payments {
		amount := p.Amount
		req.Payments = append(req.Payments, PaymentRequest{PaymentID: p.PaymentID, PaidTo: p.PaidTo, Amount: &amount})
	}
	return req
}

type DraftStore interface {
	Create(ctx context.Context, d *LendingDraft) error
	Get(ctx context.Context, id string) (*LendingDraft, error)
	Save(ctx context.Context, d *LendingDraft) error
	Delete(ctx context.Context, id string) error
}

// RedisDraftStore keeps drafts under draft:{id}. Every save pushes the expiry
// forward by the configured TTL.
type RedisDraftStore struct {
	redis  *redis.Client
	config *config.DraftConfig
}

func NewRedisDraftStore(redisClient *redis.Client, cfg *config.DraftConfig) *RedisDraftStore {
	return &RedisDraftStore{redis: redisClient, config: cfg}
}

func draftKey(id string) string {
	return fmt.Sprintf("draft:%s", id)
}

func draftRateKey(userID string) string {
	return fmt.Sprintf("draft:ratelimit:%s", userID)
}

func (s *RedisDraftStore) Create(ctx context.Context, d *LendingDraft) error {
	if err := s.checkRateLimit(ctx, d.OwnerID); err != nil {
		return err
	}
	if err := s.Save(ctx, d); err != nil {
		return err
	}
	s.incrementRateLimit(ctx, d.OwnerID)
	return nil
}

func (s *RedisDraftStore) Get(ctx context.Context, id string) (*LendingDraft, error) {
	data, err := s.redis.Get(ctx, draftKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}

	var d LendingDraft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return &d, nil
}

func (s *RedisDraftStore) Save(ctx context.Context, d *LendingDraft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, draftKey(d.ID), data, s.config.TTL).Err()
}

func (s *RedisDraftStore) Delete(ctx context.Context, id string) error {
	return s.redis.Del(ctx, draftKey(id)).Err()
}

func (s *RedisDraftStore) checkRateLimit(ctx context.Context, userID string) error {
	count, err := s.redis.Get(ctx, draftRateKey(userID)).Int()
	if err != nil && err != redis.Nil {
		return err
	}

	if count >= s.config.MaxDraftsPerUser {
		return ErrDraftRateLimited
	}
	return nil
}

// incrementRateLimit counts in fixed windows: the expiry is only set by the
// first draft of a window.
func (s *RedisDraftStore) incrementRateLimit(ctx context.Context, userID string) {
	key := draftRateKey(userID)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("[DRAFT] Failed to count draft for %s: %v", userID, err)
		return
	}
	if count == 1 {
		s.redis.Expire(ctx, key, s.config.RateLimitWindow)
	}
}
