package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/domain"
)

const (
	fieldUserID    = "userId"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
	fieldExpiresAt = "expiresAt"
	fieldItemCount = "itemCount"
	itemFieldPref  = "item:"
)

// RedisStore keeps each cart as one hash record. Metadata lives in fixed
// fields and every item is its own "item:<productID>" field, so a single
// item can be added or removed without rewriting the whole cart. Every
// write re-applies the TTL; an abandoned cart simply expires, there is no
// background sweep.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	cartTTL   time.Duration
}

func NewRedisStore(client *redis.Client, keyPrefix string, cartTTL time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		cartTTL:   cartTTL,
	}
}

func (s *RedisStore) cartKey(userID string) string {
	return s.keyPrefix + "cart:" + hashUserID(userID)
}

func (s *RedisStore) reservationKey(userID string) string {
	return s.keyPrefix + "reservation:" + hashUserID(userID)
}

func (s *RedisStore) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	key := s.cartKey(userID)

	data, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrCartNotFound
	}

	cart := &domain.Cart{UserID: userID}
	cart.CreatedAt = parseTime(data[fieldCreatedAt])
	cart.UpdatedAt = parseTime(data[fieldUpdatedAt])
	cart.ExpiresAt = parseTime(data[fieldExpiresAt])

	for field, raw := range data {
		if !strings.HasPrefix(field, itemFieldPref) {
			continue
		}
		var item domain.CartItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			// A corrupt item field must not take the whole cart down.
			log.Printf("cache: dropping unparsable cart item %s for key %s: %v", field, key, err)
			continue
		}
		cart.Items = append(cart.Items, item)
	}

	return cart, nil
}

func (s *RedisStore) SaveCart(ctx context.Context, cart *domain.Cart) error {
	key := s.cartKey(cart.UserID)

	fields := map[string]interface{}{
		fieldUserID:    cart.UserID,
		fieldCreatedAt: cart.CreatedAt.Format(time.RFC3339Nano),
		fieldUpdatedAt: cart.UpdatedAt.Format(time.RFC3339Nano),
		fieldExpiresAt: cart.ExpiresAt.Format(time.RFC3339Nano),
		fieldItemCount: strconv.Itoa(totalQuantity(cart.Items)),
	}
	for _, item := range cart.Items {
		raw, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal cart item %s failed: %w", item.ProductID, err)
		}
		fields[itemFieldPref+item.ProductID] = string(raw)
	}

	// Full overwrite: deleting first drops items removed since the last
	// save, then the whole record is rewritten with a fresh TTL.
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, s.cartTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save cart failed: %w", err)
	}
	return nil
}

func (s *RedisStore) AddItemToCart(ctx context.Context, userID string, item domain.CartItem) error {
	key := s.cartKey(userID)
	field := itemFieldPref + item.ProductID

	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal cart item %s failed: %w", item.ProductID, err)
	}

	// The item count field tracks the sum of quantities, so an upsert has
	// to account for the quantity already stored under this product.
	delta := int64(item.Quantity)
	if prev, err := s.client.HGet(ctx, key, field).Result(); err == nil {
		var prevItem domain.CartItem
		if err := json.Unmarshal([]byte(prev), &prevItem); err == nil {
			delta -= int64(prevItem.Quantity)
		}
	} else if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis hget failed: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, field, string(raw))
	pipe.HSet(ctx, key, fieldUpdatedAt, time.Now().Format(time.RFC3339Nano))
	pipe.HIncrBy(ctx, key, fieldItemCount, delta)
	pipe.Expire(ctx, key, s.cartTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis add item failed: %w", err)
	}
	return nil
}

func (s *RedisStore) RemoveItemFromCart(ctx context.Context, userID, productID string) error {
	key := s.cartKey(userID)
	field := itemFieldPref + productID

	var delta int64
	if prev, err := s.client.HGet(ctx, key, field).Result(); err == nil {
		var prevItem domain.CartItem
		if err := json.Unmarshal([]byte(prev), &prevItem); err == nil {
			delta = -int64(prevItem.Quantity)
		}
	} else if errors.Is(err, redis.Nil) {
		return nil // already absent, nothing to do
	} else {
		return fmt.Errorf("redis hget failed: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, key, field)
	pipe.HSet(ctx, key, fieldUpdatedAt, time.Now().Format(time.RFC3339Nano))
	if delta != 0 {
		pipe.HIncrBy(ctx, key, fieldItemCount, delta)
	}
	pipe.Expire(ctx, key, s.cartTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis remove item failed: %w", err)
	}
	return nil
}

func (s *RedisStore) ClearCart(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis clear cart failed: %w", err)
	}
	return nil
}

// GetCartItemCount is the cheap read behind the cart badge. It never
// errors: a transient zero beats an error page on every view.
func (s *RedisStore) GetCartItemCount(ctx context.Context, userID string) int {
	raw, err := s.client.HGet(ctx, s.cartKey(userID), fieldItemCount).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache: item count read failed for user %s: %v", userID, err)
		}
		return 0
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count < 0 {
		return 0
	}
	return count
}

func (s *RedisStore) SetReservation(ctx context.Context, userID, reservationID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.reservationKey(userID), reservationID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set reservation failed: %w", err)
	}
	return nil
}

func (s *RedisStore) GetReservation(ctx context.Context, userID string) (string, error) {
	id, err := s.client.Get(ctx, s.reservationKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrReservationNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get reservation failed: %w", err)
	}
	return id, nil
}

func (s *RedisStore) ClearReservation(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.reservationKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis clear reservation failed: %w", err)
	}
	return nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func totalQuantity(items []domain.CartItem) int {
	sum := 0
	for _, item := range items {
		sum += item.Quantity
	}
	return sum
}
