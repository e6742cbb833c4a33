// Package redisstore keeps completed audits as JSON documents in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/models"
)

var ErrNotFound = errors.NewSentinel("submission not found")

const (
	keyPrefix = "siteaudit:submission:"
	// indexKey is a sorted set of submission ids scored by completion time.
	indexKey = "siteaudit:submissions"
)

type Store struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// Open connects to the Redis server at url, e.g. redis://localhost:6379/0.
func Open(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis", slog.String("addr", opts.Addr))
	}
	return New(client, logger), nil
}

func New(client redis.UniversalClient, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger.With("source", "RedisStore")}
}

func (s *Store) Close() error {
	return errors.Wrap(s.client.Close(), "close redis")
}

func submissionKey(id string) string {
	return keyPrefix + id
}

func encode(submission models.Submission) ([]byte, error) {
	doc, err := json.Marshal(submission)
	if err != nil {
		return nil, errors.Wrap(err, "marshal submission")
	}
	return doc, nil
}

func decode(doc []byte) (*models.Submission, error) {
	var submission models.Submission
	if err := json.Unmarshal(doc, &submission); err != nil {
		return nil, errors.Wrap(err, "unmarshal submission")
	}
	return &submission, nil
}

// SaveSubmission writes the audit document and indexes it. Saving the same id again replaces the document.
func (s *Store) SaveSubmission(ctx context.Context, submission models.Submission) (string, error) {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	doc, err := encode(submission)
	if err != nil {
		return "", err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, submissionKey(submission.ID), doc, 0)
		pipe.ZAdd(ctx, indexKey, redis.Z{
			Score:  float64(submission.CompletedAt.Unix()),
			Member: submission.ID,
		})
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "store submission", slog.String("submission_id", submission.ID))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "stored submission",
		slog.String("submission_id", submission.ID), slog.Int("entries", len(submission.Entries)))
	return submission.ID, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Submission, error) {
	doc, err := s.client.Get(ctx, submissionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(ErrNotFound, "get submission", slog.String("submission_id", id))
	}
	if err != nil {
		return nil, errors.Wrap(err, "get submission", slog.String("submission_id", id))
	}
	return decode(doc)
}

// List returns the stored submission ids, most recently completed first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list submissions")
	}
	return ids, nil
}
