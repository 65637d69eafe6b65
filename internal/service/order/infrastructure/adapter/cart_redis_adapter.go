package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"nexus-delivery/internal/service/order/domain"
	"nexus-delivery/internal/service/order/domain/port"
)

// CartRedisAdapter 读取购物车服务写在 Redis 里的快照 cart:<customerID>
type CartRedisAdapter struct {
	rdb redis.UniversalClient
}

func NewCartRedisAdapter(rdb redis.UniversalClient) *CartRedisAdapter {
	return &CartRedisAdapter{rdb: rdb}
}

func cartKey(customerID string) string {
	return "cart:" + customerID
}

// Snapshot 购物车不存在时返回空购物车
func (a *CartRedisAdapter) Snapshot(ctx context.Context, customerID string) (*port.Cart, error) {
	raw, err := a.rdb.Get(ctx, cartKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &port.Cart{CustomerID: customerID}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read cart")
	}
	var cart port.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		return nil, errors.Wrapf(err, "decode cart of %s", customerID)
	}
	cart.CustomerID = customerID
	return &cart, nil
}

const consumeRetries = 5

// Consume 在 WATCH 事务里扣掉已下单的商品，购物车被并发修改时重试
func (a *CartRedisAdapter) Consume(ctx context.Context, customerID string, ordered []domain.LineItem) error {
	key := cartKey(customerID)
	consume := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var cart port.Cart
		if err := json.Unmarshal(raw, &cart); err != nil {
			return errors.Wrapf(err, "decode cart of %s", customerID)
		}
		cart.Remove(ordered)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(cart.Items) == 0 {
				pipe.Del(ctx, key)
				return nil
			}
			left, err := json.Marshal(&cart)
			if err != nil {
				return err
			}
			pipe.Set(ctx, key, left, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < consumeRetries; i++ {
		err := a.rdb.Watch(ctx, consume, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return errors.Wrap(err, "consume cart")
	}
	return errors.Errorf("consume cart of %s: too much contention", customerID)
}

// Save 写入购物车快照，供本地演示与测试使用
func (a *CartRedisAdapter) Save(ctx context.Context, cart *port.Cart) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}
	return errors.Wrap(a.rdb.Set(ctx, cartKey(cart.CustomerID), raw, 0).Err(), "write cart")
}
