package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log"
	"time"

	"github.com/datti/backend/internal/config"
	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

var (
	ErrQRExpired  = errors.New("invalid or expired QR code")
	ErrQRSelfScan = errors.New("cannot redeem your own QR code")
)

// RepaymentQR is what a creditor encodes: scan it to repay Amount to UserID.
type RepaymentQR struct {
	UserID    string `json:"userId"`
	GroupID   string `json:"groupId"`
	Amount    int64  `json:"amount"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
}

// QRService issues single-use repayment QR codes kept in Redis.
type QRService struct {
	redis  *redis.Client
	config *config.DraftConfig
	random io.Reader
}

func NewQRService(redis *redis.Client, cfg *config.DraftConfig) *QRService {
	return &QRService{
		redis:  redis,
		config: cfg,
		random: rand.Reader,
	}
}

func (s *QRService) Timeout() time.Duration {
	return s.config.QRTimeout
}

func qrKey(code string) string {
	return fmt.Sprintf("qr:%s", code)
}

// GenerateQRCode returns the code and a base64 PNG of it.
func (s *QRService) GenerateQRCode(ctx context.Context, userID, groupID string, amount int64) (string, string, error) {
	nonce, err := s.generateNonce()
	if err != nil {
		return "", "", err
	}

	qrData := RepaymentQR{
		UserID:    userID,
		GroupID:   groupID,
		Amount:    amount,
		Timestamp: time.Now().Unix(),
		Nonce:     nonce,
	}

	jsonData, err := json.Marshal(qrData)
	if err != nil {
		return "", "", err
	}

	qrCode := base64.URLEncoding.EncodeToString(jsonData)

	if err := s.redis.Set(ctx, qrKey(qrCode), jsonData, s.config.QRTimeout).Err(); err != nil {
		return "", "", err
	}

	qrImage, err := encodeQRImage(qrCode, s.config.QRImageSize)
	if err != nil {
		return "", "", err
	}
	return qrCode, qrImage, nil
}

func encodeQRImage(content string, size int) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(size)); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ProcessQRCode consumes a code on behalf of scannerID. A code can be
// redeemed once, and never by the user who issued it.
func (s *QRService) ProcessQRCode(ctx context.Context, code, scannerID string) (*RepaymentQR, error) {
	key := qrKey(code)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrQRExpired
	}
	if err != nil {
		return nil, err
	}

	var result RepaymentQR
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	if result.UserID == scannerID {
		return nil, ErrQRSelfScan
	}

	deleted, err := s.redis.Del(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if deleted == 0 {
		// someone else redeemed it between GET and DEL
		return nil, ErrQRExpired
	}
	return &result, nil
}

func (s *QRService) generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := io.ReadFull(s.random, b); err != nil {
		log.Printf("[QR] Failed to read random nonce: %v", err)
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
