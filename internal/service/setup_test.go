package service

import (
	"fmt"
	"sync/atomic"
	"testing"

	"oral_eval_backend/internal/config"
	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/repository"
	"oral_eval_backend/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	logger.Log = zap.NewNop()
}

// sampleComponents 四项分项分,合成分恰为18
var sampleComponents = model.PhoneticComponents{Accuracy: 92, Fluency: 88, Integrity: 95, Tone: 90}

var dbSeq int64

// newTestDB 每个用例一个独立的内存库
// 单连接串行化,条件更新的并发用例在同一库上仍然成立
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Assignment{},
		&model.AssignmentQuestion{},
		&model.EntryToken{},
		&model.ShareToken{},
		&model.Attempt{},
		&model.ItemScore{},
		&model.QuotaRecord{},
	))
	return db
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Port: "0", Mode: "debug"},
		JWT: config.JWTConfig{
			Secret:                "unit-test-secret-0123456789abcdef",
			ExpireHours:           1,
			ExamineeExpireMinutes: 30,
		},
		Storage: config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		Phonetic: config.PhoneticConfig{
			MaxSessions:       2,
			PositionPushSecs:  1,
			SessionCapMinutes: 1,
			FrameIntervalMs:   1,
			FrameSize:         1280,
			MaxConnectRetries: 2,
			RetrySweepMinutes: 5,
		},
		Semantic: config.SemanticConfig{
			RatePerMinute:      600,
			MaxRetries:         2,
			VisibilitySeconds:  300,
			Workers:            1,
			Stream:             "semantic_jobs",
			Group:              "semantic_scorers",
			DeadLetterStream:   "semantic_jobs_dead",
			RequestTimeoutSecs: 5,
		},
		Assess: config.AssessConfig{
			EntryTokenTTLMinutes:  60,
			ShareCacheSeconds:     5,
			ReportURLTTLMinutes:   15,
			ResetsAllowedPerQuota: 2,
			RatingTiers: []config.RatingTier{
				{Percent: 90, Tier: 5},
				{Percent: 72, Tier: 4},
				{Percent: 54, Tier: 3},
				{Percent: 36, Tier: 2},
				{Percent: 0, Tier: 1},
			},
			HashidsSalt:      "unit-test-salt",
			HashidsMinLength: 8,
		},
		Audit: config.AuditConfig{Enabled: false, BufferSize: 8},
	}
}

type testEnv struct {
	db          *gorm.DB
	cfg         *config.Config
	users       *repository.UserRepository
	assignments *repository.AssignmentRepository
	tokens      *repository.TokenRepository
	attemptRepo *repository.AttemptRepository
	quotaRepo   *repository.QuotaRepository
	audit       *AuditService
	quota       *QuotaService
	attempts    *AttemptService
	storage     *StorageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	cfg := newTestConfig(t)
	env := &testEnv{
		db:          db,
		cfg:         cfg,
		users:       repository.NewUserRepository(db),
		assignments: repository.NewAssignmentRepository(db),
		tokens:      repository.NewTokenRepository(db),
		attemptRepo: repository.NewAttemptRepository(db),
		quotaRepo:   repository.NewQuotaRepository(db),
	}
	env.audit = NewAuditService(cfg)
	t.Cleanup(env.audit.Stop)
	env.quota = NewQuotaService(env.quotaRepo, env.attemptRepo, nil, env.audit, cfg)
	env.attempts = NewAttemptService(env.attemptRepo, env.quota)
	env.storage = NewStorageService(cfg)
	return env
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func seedAssignment(t *testing.T, env *testEnv, level string, unit int) *model.Assignment {
	t.Helper()
	a := &model.Assignment{
		Level:         level,
		Unit:          unit,
		Title:         fmt.Sprintf("%s 第%d单元", level, unit),
		ReferenceText: "The quick brown fox jumps over the lazy dog.",
		Active:        true,
	}
	for i := 1; i <= 12; i++ {
		a.Questions = append(a.Questions, model.AssignmentQuestion{
			No:              i,
			Text:            fmt.Sprintf("问题%d", i),
			ReferenceAnswer: fmt.Sprintf("参考答案%d", i),
		})
	}
	require.NoError(t, env.assignments.Create(a))
	return a
}

func seedExaminee(t *testing.T, env *testEnv, studentNo string) *model.User {
	t.Helper()
	u, err := env.users.FindOrCreateExaminee(studentNo, "考生"+studentNo, "三年二班")
	require.NoError(t, err)
	return u
}

func seedAttempt(t *testing.T, env *testEnv, examinee *model.User, assignment *model.Assignment, status model.AttemptStatus) *model.Attempt {
	t.Helper()
	a := &model.Attempt{
		ExamineeID:   examinee.ID,
		AssignmentID: assignment.ID,
		Level:        assignment.Level,
		Unit:         assignment.Unit,
		Status:       status,
	}
	require.NoError(t, env.attemptRepo.Create(a))
	return a
}

// validItems 结构合法的12道逐题得分,score 取0/1/2
func validItems(score int) []model.ItemScore {
	items := make([]model.ItemScore, 0, 12)
	for i := 1; i <= 12; i++ {
		items = append(items, model.ItemScore{No: i, Score: score, Feedback: fmt.Sprintf("评语%d", i)})
	}
	return items
}
