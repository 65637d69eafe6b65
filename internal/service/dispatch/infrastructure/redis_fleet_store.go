package infrastructure

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"nexus-delivery/internal/pkg/logger"
	"nexus-delivery/internal/service/dispatch/domain"
)

const (
	courierKeyPrefix = "courier:"
	scanBatch        = 200

	fieldLatitude   = "latitude"
	fieldLongitude  = "longitude"
	fieldIsOnline   = "is_online"
	fieldLastUpdate = "last_update"
)

// RedisFleetStore 把骑手位置存成 courier:<id> 哈希。
type RedisFleetStore struct {
	rdb redis.UniversalClient
}

func NewRedisFleetStore(rdb redis.UniversalClient) *RedisFleetStore {
	return &RedisFleetStore{rdb: rdb}
}

func courierKey(shipperID string) string {
	return courierKeyPrefix + shipperID
}

// UpdateLocation 写入最新坐标，上报位置即视为在线。
func (s *RedisFleetStore) UpdateLocation(ctx context.Context, shipperID string, p domain.Point, at time.Time) error {
	err := s.rdb.HSet(ctx, courierKey(shipperID),
		fieldLatitude, strconv.FormatFloat(p.Lat, 'f', -1, 64),
		fieldLongitude, strconv.FormatFloat(p.Lng, 'f', -1, 64),
		fieldIsOnline, "1",
		fieldLastUpdate, at.Unix(),
	).Err()
	return errors.Wrapf(err, "update location of courier %s", shipperID)
}

func (s *RedisFleetStore) SetOnline(ctx context.Context, shipperID string, online bool, at time.Time) error {
	flag := "0"
	if online {
		flag = "1"
	}
	err := s.rdb.HSet(ctx, courierKey(shipperID), fieldIsOnline, flag, fieldLastUpdate, at.Unix()).Err()
	return errors.Wrapf(err, "set online state of courier %s", shipperID)
}

// Snapshot 用 SCAN 遍历所有骑手。字段缺失或无法解析的记录会被跳过。
func (s *RedisFleetStore) Snapshot(ctx context.Context) ([]domain.Candidate, error) {
	var (
		cursor     uint64
		candidates []domain.Candidate
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, courierKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return nil, errors.Wrap(err, "scan courier keys")
		}
		if len(keys) > 0 {
			batch, err := s.load(ctx, keys)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, batch...)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return candidates, nil
}

func (s *RedisFleetStore) load(ctx context.Context, keys []string) ([]domain.Candidate, error) {
	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "load courier hashes")
	}

	out := make([]domain.Candidate, 0, len(keys))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		c, err := parseCandidate(strings.TrimPrefix(keys[i], courierKeyPrefix), fields)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("key", keys[i]).Msg("skip malformed courier record")
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func parseCandidate(id string, fields map[string]string) (domain.Candidate, error) {
	lat, err := strconv.ParseFloat(fields[fieldLatitude], 64)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(fields[fieldLongitude], 64)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("longitude: %w", err)
	}
	c := domain.Candidate{ShipperID: id, Lat: lat, Lng: lng}
	switch fields[fieldIsOnline] {
	case "1", "true":
		c.IsOnline = true
	}
	if ts, err := strconv.ParseInt(fields[fieldLastUpdate], 10, 64); err == nil {
		c.LastSeenAt = time.Unix(ts, 0)
	}
	return c, nil
}
