package ephemeral

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authsession/internal"
)

const (
	recordVersionV1 = 1

	defaultRedisPrefix      = "aset"
	defaultExpiredRetention = 24 * time.Hour
	minKeyLifetime          = time.Second
	maxConsumeRetries       = 4
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// Prefix namespaces keys. Defaults to "aset".
	Prefix string
	// ExpiredRetention keeps a record alive in Redis after its logical
	// expiry so that a late presentation reports ErrExpired rather than
	// ErrNotFound. After that window the key is evicted by Redis.
	ExpiredRetention time.Duration
	// Now overrides the clock used for expiry decisions.
	Now func() time.Time
}

// RedisStore is a Store shared across instances through Redis. Keys are the
// hex SHA-256 of the token so a keyspace dump reveals no usable tokens.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewRedisStore returns a RedisStore using client.
func NewRedisStore(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultRedisPrefix
	}
	if cfg.ExpiredRetention <= 0 {
		cfg.ExpiredRetention = defaultExpiredRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RedisStore{
		redis:     client,
		prefix:    cfg.Prefix,
		retention: cfg.ExpiredRetention,
		now:       cfg.Now,
	}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + ":" + internal.HashToken(token)
}

// Create stores a new entry under a fresh token. The key outlives the
// entry by ExpiredRetention so late consumers see ErrExpired.
func (s *RedisStore) Create(ctx context.Context, purpose Purpose, principalID string, ttl time.Duration) (string, error) {
	if err := validateCreate(purpose, principalID); err != nil {
		return "", err
	}
	token, err := internal.NewToken()
	if err != nil {
		return "", err
	}

	encoded, err := encodeEntry(Entry{
		PrincipalID: principalID,
		Purpose:     purpose,
		ExpiresAt:   s.now().Add(ttl),
	})
	if err != nil {
		return "", err
	}

	if err := s.redis.Set(ctx, s.key(token), encoded, s.lifetime(ttl)).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return token, nil
}

func (s *RedisStore) lifetime(ttl time.Duration) time.Duration {
	life := max(ttl, 0) + s.retention
	if life < minKeyLifetime {
		life = minKeyLifetime
	}
	return life
}

// Consume reads and deletes the entry inside a WATCH transaction, so two
// concurrent consumers cannot both succeed.
func (s *RedisStore) Consume(ctx context.Context, token string) (Entry, error) {
	if _, err := internal.DecodeToken(token); err != nil {
		return Entry{}, ErrNotFound
	}
	key := s.key(token)

	for i := 0; i < maxConsumeRetries; i++ {
		var consumed Entry

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			entry, err := decodeEntry(data)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			if entry.expired(s.now()) {
				return ErrExpired
			}
			consumed = entry
			return nil
		}, key)

		switch {
		case err == nil:
			return consumed, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil):
			return Entry{}, ErrNotFound
		case errors.Is(err, ErrExpired):
			return Entry{}, ErrExpired
		default:
			return Entry{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	// Every retry lost to a concurrent writer, which can only be another
	// consumer deleting the key.
	return Entry{}, ErrNotFound
}

func encodeEntry(e Entry) ([]byte, error) {
	if len(e.PrincipalID) > 65535 {
		return nil, errors.New("ephemeral: principal id too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(recordVersionV1)
	buf.WriteByte(byte(len(e.Purpose)))
	buf.WriteString(string(e.Purpose))

	if err := binary.Write(&buf, binary.BigEndian, e.ExpiresAt.UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(e.PrincipalID))); err != nil {
		return nil, err
	}
	buf.WriteString(e.PrincipalID)

	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (Entry, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Entry{}, err
	}
	if version != recordVersionV1 {
		return Entry{}, errors.New("ephemeral: invalid record version")
	}

	purposeLen, err := reader.ReadByte()
	if err != nil {
		return Entry{}, err
	}
	purpose := make([]byte, purposeLen)
	if _, err := io.ReadFull(reader, purpose); err != nil {
		return Entry{}, err
	}

	var expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return Entry{}, err
	}

	var idLen uint16
	if err := binary.Read(reader, binary.BigEndian, &idLen); err != nil {
		return Entry{}, err
	}
	id := make([]byte, idLen)
	if _, err := io.ReadFull(reader, id); err != nil {
		return Entry{}, err
	}

	return Entry{
		PrincipalID: string(id),
		Purpose:     Purpose(purpose),
		ExpiresAt:   time.Unix(0, expiresAt),
	}, nil
}
