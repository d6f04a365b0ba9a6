package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/casa/internal/common"
	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/service"
	"github.com/Veraticus/casa/internal/textnorm"
)

// DefaultTTL is how long a validated answer may be served.
const DefaultTTL = 30 * 24 * time.Hour

// Audit event names.
const (
	EventFactUsed  = "knowledge.used"
	EventFactSaved = "knowledge.saved"
)

// QuestionHash returns the SHA-256 hex digest of the normalized question.
func QuestionHash(question string) string {
	sum := sha256.Sum256([]byte(textnorm.Normalize(question)))
	return hex.EncodeToString(sum[:])
}

// Cache serves validated remote answers within their TTL.
type Cache struct {
	store     service.KnowledgeStore
	audit     service.AuditSink
	validator *Validator
	now       func() time.Time
	ttl       time.Duration
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewCache creates a cache over store. audit may be nil.
func NewCache(store service.KnowledgeStore, audit service.AuditSink, validator *Validator, opts ...CacheOption) *Cache {
	c := &Cache{
		store:     store,
		audit:     audit,
		validator: validator,
		now:       time.Now,
		ttl:       DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(question, factKey string) string {
	if factKey != "" {
		return factKey
	}
	return QuestionHash(question)
}

// Get returns a fact for domain whose validity has not passed, or nil on a miss.
// Lookup failures are logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, domain, question, factKey string) *model.KnowledgeFact {
	now := c.now()
	key := cacheKey(question, factKey)

	fact, err := c.store.FindFact(ctx, domain, key, now)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			slog.Warn("Knowledge cache lookup failed", "domain", domain, "error", err)
		}
		return nil
	}
	if fact == nil || fact.Domain != domain || !fact.Valid(now) {
		return nil
	}

	if c.audit != nil {
		common.BestEffort(ctx, "knowledge-audit", func(ctx context.Context) error {
			return c.audit.LogEvent(ctx, EventFactUsed, map[string]any{
				"fact_id": fact.ID,
				"domain":  domain,
				"key":     key,
			})
		})
	}

	return fact
}

// Save validates candidate and stores it for domain. A rejected candidate is not
// stored and the *RejectionError is returned.
func (c *Cache) Save(ctx context.Context, domain, question, factKey, modelName string, candidate Candidate) (*model.KnowledgeFact, error) {
	if err := c.validator.Validate(candidate).Err(); err != nil {
		return nil, err
	}

	now := c.now()
	fact := &model.KnowledgeFact{
		ID:              uuid.NewString(),
		Domain:          domain,
		QuestionText:    question,
		QuestionHash:    QuestionHash(question),
		FactKey:         factKey,
		AnswerText:      candidate.AnswerText,
		AnswerJSON:      candidate.AnswerJSON,
		Sources:         candidate.Sources,
		ConfidenceLevel: candidate.ConfidenceLevel,
		Model:           modelName,
		CreatedAt:       now,
		ValidUntil:      now.Add(c.ttl),
	}
	if err := c.store.SaveFact(ctx, fact); err != nil {
		return nil, fmt.Errorf("failed to save knowledge fact: %w", err)
	}

	if c.audit != nil {
		common.BestEffort(ctx, "knowledge-audit", func(ctx context.Context) error {
			return c.audit.LogEvent(ctx, EventFactSaved, map[string]any{
				"fact_id": fact.ID,
				"domain":  domain,
			})
		})
	}

	return fact, nil
}

// Purge deletes facts whose validity has passed.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	return c.store.PurgeExpiredFacts(ctx, c.now())
}
