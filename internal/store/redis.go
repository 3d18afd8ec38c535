package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reelscript/api/internal/model"
)

const (
	keyJobPrefix      = "job:fp:"
	keyScriptPrefix   = "script:fp:"
	keyPublicIDPrefix = "script:id:"
	keySourcePrefix   = "scripts:src:"
	keyAnalysisPrefix = "analysis:"

	// Active jobs expire so a crashed worker cannot wedge a fingerprint
	// forever. Scripts and analyses have no expiry.
	jobTTL = 24 * time.Hour

	sourceListMax = 20
)

// RedisStore implements JobStore, ArtifactStore and AnalysisCache on a
// single Redis client.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// --- JobStore ---

func (s *RedisStore) CreateIfAbsent(ctx context.Context, job *model.Job) (bool, *model.Job, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return false, nil, err
	}

	key := keyJobPrefix + job.Fingerprint
	created, err := s.rdb.SetNX(ctx, key, data, jobTTL).Result()
	if err != nil {
		return false, nil, fmt.Errorf("create job: %w", err)
	}
	if created {
		return true, nil, nil
	}

	existing, err := s.Get(ctx, job.Fingerprint)
	if err != nil {
		return false, nil, err
	}
	if existing == nil || existing.Terminal() {
		// The slot held a finished or vanished job; take it over.
		if err := s.rdb.Set(ctx, key, data, jobTTL).Err(); err != nil {
			return false, nil, fmt.Errorf("replace job: %w", err)
		}
		return true, nil, nil
	}
	return false, existing, nil
}

func (s *RedisStore) Get(ctx context.Context, fingerprint string) (*model.Job, error) {
	data, err := s.rdb.Get(ctx, keyJobPrefix+fingerprint).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *RedisStore) Update(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, keyJobPrefix+job.Fingerprint, data, jobTTL).Err()
}

func (s *RedisStore) Delete(ctx context.Context, fingerprint string) error {
	return s.rdb.Del(ctx, keyJobPrefix+fingerprint).Err()
}

// --- ArtifactStore ---

func (s *RedisStore) GetByFingerprint(ctx context.Context, fingerprint string) (*model.Script, error) {
	return s.getScript(ctx, keyScriptPrefix+fingerprint)
}

func (s *RedisStore) GetByPublicID(ctx context.Context, publicID string) (*model.Script, error) {
	fp, err := s.rdb.Get(ctx, keyPublicIDPrefix+publicID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve public id: %w", err)
	}
	return s.GetByFingerprint(ctx, fp)
}

func (s *RedisStore) PublicIDExists(ctx context.Context, publicID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, keyPublicIDPrefix+publicID).Result()
	if err != nil {
		return false, fmt.Errorf("check public id: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Save(ctx context.Context, script *model.Script) error {
	data, err := json.Marshal(script)
	if err != nil {
		return err
	}

	created, err := s.rdb.SetNX(ctx, keyScriptPrefix+script.Fingerprint, data, 0).Result()
	if err != nil {
		return fmt.Errorf("save script: %w", err)
	}
	if !created {
		// Another worker finished the same fingerprint first; its row and
		// public id stand.
		return nil
	}

	if err := s.rdb.SetNX(ctx, keyPublicIDPrefix+script.PublicID, script.Fingerprint, 0).Err(); err != nil {
		return fmt.Errorf("index public id: %w", err)
	}

	srcKey := keySourcePrefix + script.SourceKey
	pipe := s.rdb.Pipeline()
	pipe.LPush(ctx, srcKey, script.Fingerprint)
	pipe.LTrim(ctx, srcKey, 0, sourceListMax-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index source: %w", err)
	}
	return nil
}

func (s *RedisStore) RecentBySource(ctx context.Context, sourceKey string, n int) ([]*model.Script, error) {
	if n <= 0 {
		return nil, nil
	}
	fps, err := s.rdb.LRange(ctx, keySourcePrefix+sourceKey, 0, int64(n-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("list source scripts: %w", err)
	}

	scripts := make([]*model.Script, 0, len(fps))
	for _, fp := range fps {
		script, err := s.GetByFingerprint(ctx, fp)
		if err != nil {
			return nil, err
		}
		if script != nil {
			scripts = append(scripts, script)
		}
	}
	return scripts, nil
}

func (s *RedisStore) getScript(ctx context.Context, key string) (*model.Script, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get script: %w", err)
	}

	var script model.Script
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, err
	}
	return &script, nil
}

// --- AnalysisCache ---

func (s *RedisStore) GetAnalysis(ctx context.Context, sourceKey string) (*model.ReelAnalysis, error) {
	data, err := s.rdb.Get(ctx, keyAnalysisPrefix+sourceKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get analysis: %w", err)
	}

	var analysis model.ReelAnalysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (s *RedisStore) PutAnalysisIfAbsent(ctx context.Context, sourceKey string, analysis *model.ReelAnalysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return err
	}
	// Losing the SETNX race means another worker cached the same source
	// first, which is the desired outcome either way.
	if err := s.rdb.SetNX(ctx, keyAnalysisPrefix+sourceKey, data, 0).Err(); err != nil {
		return fmt.Errorf("cache analysis: %w", err)
	}
	return nil
}

// analysisCacheAdapter lets RedisStore satisfy AnalysisCache without method
// name clashes against JobStore.Get.
type analysisCacheAdapter struct {
	s *RedisStore
}

func (a analysisCacheAdapter) Get(ctx context.Context, sourceKey string) (*model.ReelAnalysis, error) {
	return a.s.GetAnalysis(ctx, sourceKey)
}

func (a analysisCacheAdapter) PutIfAbsent(ctx context.Context, sourceKey string, analysis *model.ReelAnalysis) error {
	return a.s.PutAnalysisIfAbsent(ctx, sourceKey, analysis)
}

// Analyses exposes the store as an AnalysisCache.
func (s *RedisStore) Analyses() AnalysisCache {
	return analysisCacheAdapter{s: s}
}
