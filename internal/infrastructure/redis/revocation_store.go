package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oljc/arcoserve/internal/domain/service"
	"github.com/oljc/arcoserve/pkg/constants"
	"github.com/oljc/arcoserve/pkg/errors"
	"github.com/oljc/arcoserve/pkg/logger"
)

type revocationStore struct {
	rdb       *redis.Client
	tokens    service.TokenService
	publisher service.RevocationPublisher
	log       logger.Logger
	// now is injectable for tests.
	now func() time.Time
}

// NewRevocationStore creates the blacklist/active-token store. publisher may be
// nil; revocation events are then only recorded locally.
func NewRevocationStore(rdb *redis.Client, tokens service.TokenService, publisher service.RevocationPublisher, log logger.Logger) service.RevocationStore {
	return &revocationStore{
		rdb:       rdb,
		tokens:    tokens,
		publisher: publisher,
		log:       log.WithComponent("revocation"),
		now:       time.Now,
	}
}

func blacklistKey(jti string) string { return constants.KeyPrefixBlacklist + jti }

func userTokensKey(userID int64) string {
	return constants.KeyPrefixUserTokens + strconv.FormatInt(userID, 10)
}

// Blacklist marks the token revoked for its remaining lifetime. Already-expired
// or malformed tokens are a deliberate no-op: there is nothing left to revoke.
func (s *revocationStore) Blacklist(ctx context.Context, token string) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return
	}
	remain := claims.RemainingSeconds(s.now())
	if remain <= 0 {
		return
	}

	ttl := time.Duration(remain) * time.Second
	if err := s.rdb.Set(ctx, blacklistKey(claims.ID), "1", ttl).Err(); err != nil {
		s.log.Error(ctx, "failed to blacklist token", err, logger.String("jti", claims.ID))
		return
	}
	s.publishRevoked(ctx, claims.ID, claims.UID, "logout")
}

func (s *revocationStore) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	jti, err := s.tokens.TokenID(token)
	if err != nil {
		return false, err
	}
	n, err := s.rdb.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, errors.Internal(err)
	}
	return n == 1, nil
}

// Track records the token in the user's active sorted set, scored by its expiry
// in unix seconds, so it can be bulk-revoked later and swept once expired.
// Failures are swallowed: tracking only affects bulk-revocation bookkeeping,
// never the current request.
func (s *revocationStore) Track(ctx context.Context, token string) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return
	}
	now := s.now()
	remain := claims.RemainingSeconds(now)
	if remain <= 0 {
		return
	}

	// The set must outlive its longest-lived member.
	setTTL := time.Duration(remain) * time.Second
	if setTTL < constants.RefreshTokenDefaultTTL {
		setTTL = constants.RefreshTokenDefaultTTL
	}

	key := userTokensKey(claims.UID)
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.Unix() + remain), Member: claims.ID})
	pipe.Expire(ctx, key, setTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn(ctx, "failed to track token", logger.String("jti", claims.ID), logger.Error(err))
	}
}

func (s *revocationStore) Untrack(ctx context.Context, token string) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return
	}
	if err := s.rdb.ZRem(ctx, userTokensKey(claims.UID), claims.ID).Err(); err != nil {
		s.log.Warn(ctx, "failed to untrack token", logger.String("jti", claims.ID), logger.Error(err))
	}
}

// RevokeAllForUser blacklists every tracked token id with a conservative TTL,
// then drops the set. The exact remaining lifetime of each token is unknown
// here, so the marker must outlive the longest-lived refresh token.
func (s *revocationStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	key := userTokensKey(userID)
	tokenIDs, err := s.rdb.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return errors.Internal(err)
	}
	if len(tokenIDs) == 0 {
		return nil
	}

	pipe := s.rdb.Pipeline()
	for _, jti := range tokenIDs {
		pipe.Set(ctx, blacklistKey(jti), "1", constants.BulkRevocationTTL)
	}
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Internal(err)
	}

	for _, jti := range tokenIDs {
		s.publishRevoked(ctx, jti, userID, "logout_all")
	}
	s.log.Info(ctx, "revoked all tokens for user",
		logger.Int64("user_id", userID), logger.Int("count", len(tokenIDs)))
	return nil
}

func (s *revocationStore) IsValid(ctx context.Context, token string) bool {
	if _, err := s.tokens.Parse(token); err != nil {
		return false
	}
	revoked, err := s.IsBlacklisted(ctx, token)
	if err != nil {
		// A required check that cannot complete fails closed.
		return false
	}
	return !revoked
}

func (s *revocationStore) ActiveTokenCount(ctx context.Context, userID int64) (int64, error) {
	n, err := s.rdb.ZCard(ctx, userTokensKey(userID)).Result()
	if err != nil {
		return 0, errors.Internal(err)
	}
	return n, nil
}

// CleanupExpired drops tracked ids whose expiry score has passed. The set TTL
// already bounds growth; this only tightens bulk-revocation cost.
func (s *revocationStore) CleanupExpired(ctx context.Context, userID int64) error {
	cutoff := strconv.FormatInt(s.now().Unix(), 10)
	err := s.rdb.ZRemRangeByScore(ctx, userTokensKey(userID), "0", cutoff).Err()
	if err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (s *revocationStore) publishRevoked(ctx context.Context, jti string, userID int64, reason string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRevoked(ctx, jti, userID, reason); err != nil {
		s.log.Warn(ctx, "failed to publish revocation event",
			logger.String("jti", jti), logger.Error(err))
	}
}
