package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"oral_eval_backend/internal/config"
	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/repository"
	"oral_eval_backend/internal/util"
	"oral_eval_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shareCachePrefix = "share_token:"

// TokenService 入场/分享令牌的签发、兑换、撤销与解析
type TokenService struct {
	TokenRepo      *repository.TokenRepository
	UserRepo       *repository.UserRepository
	AssignmentRepo *repository.AssignmentRepository
	AttemptRepo    *repository.AttemptRepository
	Quota          *QuotaService
	Audit          *AuditService
	RDB            *redis.Client
	Cfg            *config.Config
}

func NewTokenService(tokenRepo *repository.TokenRepository, userRepo *repository.UserRepository,
	assignmentRepo *repository.AssignmentRepository, attemptRepo *repository.AttemptRepository,
	quota *QuotaService, audit *AuditService, rdb *redis.Client, cfg *config.Config) *TokenService {
	return &TokenService{
		TokenRepo:      tokenRepo,
		UserRepo:       userRepo,
		AssignmentRepo: assignmentRepo,
		AttemptRepo:    attemptRepo,
		Quota:          quota,
		Audit:          audit,
		RDB:            rdb,
		Cfg:            cfg,
	}
}

// IssueEntryRequest 入场令牌签发参数
type IssueEntryRequest struct {
	StudentNo   string
	DisplayName string
	ClassName   string
	Level       string
	Unit        int
	TTLMinutes  int
}

// IssueEntryToken 为一名考生签发一次性入场令牌
// 该考生在目标单元已有进行中或已完成的测评时拒绝签发
func (s *TokenService) IssueEntryToken(req IssueEntryRequest, actor *model.User, ip string) (*model.EntryToken, error) {
	outcome := "error"
	subject := fmt.Sprintf("examinee:%s/%s/%d", req.StudentNo, req.Level, req.Unit)
	defer func() {
		s.Audit.Report(AuditEvent{
			Actor:   fmt.Sprintf("user:%d", actor.ID),
			Action:  AuditEntryIssue,
			Subject: subject,
			Outcome: outcome,
			IP:      ip,
		})
	}()

	assignment, err := s.AssignmentRepo.FindActiveByLevelUnit(req.Level, req.Unit)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			outcome = "denied"
			return nil, util.ErrAssignmentNotFound
		}
		return nil, err
	}

	examinee, err := s.UserRepo.FindOrCreateExaminee(req.StudentNo, req.DisplayName, req.ClassName)
	if err != nil {
		return nil, err
	}

	eligible, _, err := s.Quota.Eligible(examinee.ID, req.Level, req.Unit)
	if err != nil {
		return nil, err
	}
	if !eligible {
		outcome = "denied"
		return nil, util.ErrQuotaConflict
	}

	value, err := util.NewOpaqueToken(32)
	if err != nil {
		return nil, err
	}

	ttl := req.TTLMinutes
	if ttl <= 0 {
		ttl = s.Cfg.Assess.EntryTokenTTLMinutes
	}

	t := &model.EntryToken{
		Token:        value,
		ExamineeID:   examinee.ID,
		AssignmentID: assignment.ID,
		Level:        req.Level,
		Unit:         req.Unit,
		IssuedBy:     actor.ID,
		ExpiresAt:    time.Now().Add(time.Duration(ttl) * time.Minute),
	}
	if err := s.TokenRepo.CreateEntryToken(t); err != nil {
		return nil, err
	}

	outcome = "ok"
	subject = fmt.Sprintf("entry_token:%d", t.ID)
	return t, nil
}

// RedeemResult 兑换成功的完整产出
type RedeemResult struct {
	Attempt      *model.Attempt    `json:"attempt"`
	Assignment   *model.Assignment `json:"assignment"`
	Examinee     *model.User       `json:"examinee"`
	SessionToken string            `json:"session_token"`
}

// RedeemEntryToken 兑换入场令牌
// 翻转 used_at 的条件更新保证并发兑换只有一个赢家;成功路径一次性完成
// 名额预占、测评创建和考生会话签发;预占失败时回滚令牌消费
func (s *TokenService) RedeemEntryToken(tokenValue, ip string) (*RedeemResult, error) {
	outcome := "denied"
	subject := "entry_token:?"
	defer func() {
		s.Audit.Report(AuditEvent{
			Actor:   "examinee",
			Action:  AuditEntryRedeem,
			Subject: subject,
			Outcome: outcome,
			IP:      ip,
		})
	}()

	t, err := s.TokenRepo.FindEntryByToken(tokenValue)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTokenNotFound
		}
		outcome = "error"
		return nil, err
	}
	subject = fmt.Sprintf("entry_token:%d", t.ID)

	now := time.Now()
	if t.Revoked {
		return nil, util.ErrTokenRevoked
	}
	if t.UsedAt != nil {
		return nil, util.ErrTokenUsed
	}
	if !now.Before(t.ExpiresAt) {
		return nil, util.ErrTokenExpired
	}

	ok, err := s.TokenRepo.ConsumeEntry(t.ID, now)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	if !ok {
		// 条件更新落空:并发兑换输家按最新状态给出可区分的拒绝
		current, rerr := s.TokenRepo.FindEntryByToken(tokenValue)
		if rerr == nil {
			if current.Revoked {
				return nil, util.ErrTokenRevoked
			}
			if current.UsedAt != nil {
				return nil, util.ErrTokenUsed
			}
		}
		return nil, util.ErrTokenExpired
	}

	quota, err := s.Quota.Reserve(t.ExamineeID, t.Level, t.Unit)
	if err != nil {
		// 名额已被占用,回滚消费让令牌保持可审计的未用状态
		if rerr := s.TokenRepo.ReleaseEntry(t.ID); rerr != nil {
			logger.Log.Error("release entry token failed",
				zap.Uint("token_id", t.ID), zap.Error(rerr))
		}
		return nil, err
	}

	attempt := &model.Attempt{
		ExamineeID:   t.ExamineeID,
		AssignmentID: t.AssignmentID,
		Level:        t.Level,
		Unit:         t.Unit,
		Status:       model.AttemptPending,
	}
	if err := s.AttemptRepo.Create(attempt); err != nil {
		outcome = "error"
		_, _ = s.Quota.QuotaRepo.Transition(quota.ID, model.QuotaInProgress, model.QuotaNotStarted, nil)
		if rerr := s.TokenRepo.ReleaseEntry(t.ID); rerr != nil {
			logger.Log.Error("release entry token failed",
				zap.Uint("token_id", t.ID), zap.Error(rerr))
		}
		return nil, err
	}

	_ = s.Quota.AttachAttempt(quota.ID, attempt.ID)
	_ = s.TokenRepo.AttachAttempt(t.ID, attempt.ID)

	sessionToken, err := util.GenerateExamineeJWT(t.ExamineeID, attempt.ID, s.Cfg)
	if err != nil {
		outcome = "error"
		return nil, err
	}

	assignment, err := s.AssignmentRepo.FindByID(t.AssignmentID)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	examinee, err := s.UserRepo.FindByID(t.ExamineeID)
	if err != nil {
		outcome = "error"
		return nil, err
	}

	outcome = "ok"
	return &RedeemResult{
		Attempt:      attempt,
		Assignment:   assignment,
		Examinee:     examinee,
		SessionToken: sessionToken,
	}, nil
}

// RevokeEntryToken 撤销未使用的入场令牌,重复撤销视为成功
func (s *TokenService) RevokeEntryToken(token string, actor *model.User, ip string) error {
	outcome := "ok"
	defer func() {
		s.Audit.Report(AuditEvent{
			Actor:   fmt.Sprintf("user:%d", actor.ID),
			Action:  AuditEntryRevoke,
			Subject: "entry_token",
			Outcome: outcome,
			IP:      ip,
		})
	}()

	rows, err := s.TokenRepo.RevokeEntryUnused(token)
	if err != nil {
		outcome = "error"
		return err
	}
	if rows == 0 {
		t, ferr := s.TokenRepo.FindEntryByToken(token)
		if ferr != nil {
			outcome = "denied"
			if errors.Is(ferr, gorm.ErrRecordNotFound) {
				return util.ErrTokenNotFound
			}
			outcome = "error"
			return ferr
		}
		if t.UsedAt != nil {
			outcome = "denied"
			return util.ErrTokenUsed
		}
		// 已撤销,幂等成功
	}
	return nil
}

// ListIssued 按签发人分页列出入场令牌
func (s *TokenService) ListIssued(issuerID uint, page, limit int) ([]model.EntryToken, int64, error) {
	offset := (page - 1) * limit
	return s.TokenRepo.ListEntryByIssuer(issuerID, limit, offset)
}

// IssueShareToken 为一次已完成的测评签发分享令牌,ttlMinutes<=0 时长期有效
func (s *TokenService) IssueShareToken(attemptID uint, ttlMinutes int, actor *model.User, ip string) (*model.ShareToken, error) {
	outcome := "denied"
	defer func() {
		s.Audit.Report(AuditEvent{
			Actor:   fmt.Sprintf("user:%d", actor.ID),
			Action:  AuditShareIssue,
			Subject: fmt.Sprintf("attempt:%d", attemptID),
			Outcome: outcome,
			IP:      ip,
		})
	}()

	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		outcome = "error"
		return nil, err
	}
	if attempt.Status != model.AttemptCompleted {
		return nil, util.ErrAttemptNotTerminal
	}

	value, err := util.NewOpaqueToken(32)
	if err != nil {
		outcome = "error"
		return nil, err
	}

	t := &model.ShareToken{
		Token:     value,
		AttemptID: attemptID,
		IssuedBy:  actor.ID,
	}
	if ttlMinutes > 0 {
		exp := time.Now().Add(time.Duration(ttlMinutes) * time.Minute)
		t.ExpiresAt = &exp
	}
	if err := s.TokenRepo.CreateShareToken(t); err != nil {
		outcome = "error"
		return nil, err
	}

	outcome = "ok"
	return t, nil
}

// RevokeShareToken 撤销分享令牌并立刻失效缓存,幂等
func (s *TokenService) RevokeShareToken(ctx context.Context, token string, actor *model.User, ip string) error {
	outcome := "ok"
	defer func() {
		s.Audit.Report(AuditEvent{
			Actor:   fmt.Sprintf("user:%d", actor.ID),
			Action:  AuditShareRevoke,
			Subject: "share_token",
			Outcome: outcome,
			IP:      ip,
		})
	}()

	rows, err := s.TokenRepo.RevokeShare(token)
	if err != nil {
		outcome = "error"
		return err
	}
	if rows == 0 {
		if _, ferr := s.TokenRepo.FindShareByToken(token); ferr != nil {
			outcome = "denied"
			if errors.Is(ferr, gorm.ErrRecordNotFound) {
				return util.ErrTokenNotFound
			}
			outcome = "error"
			return ferr
		}
		// 行已是撤销态,幂等成功
	}

	if err := s.RDB.Del(ctx, shareCachePrefix+token).Err(); err != nil {
		logger.Log.Warn("share token cache invalidation failed", zap.Error(err))
	}
	return nil
}

type shareCacheEntry struct {
	AttemptID uint       `json:"attempt_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ResolveShareToken 解析分享令牌到测评ID
// 过期每次现算;撤销立刻生效(撤销路径删除缓存);正向结果仅做短TTL缓存
func (s *TokenService) ResolveShareToken(ctx context.Context, token string) (uint, error) {
	key := shareCachePrefix + token

	if raw, err := s.RDB.Get(ctx, key).Result(); err == nil {
		var entry shareCacheEntry
		if json.Unmarshal([]byte(raw), &entry) == nil {
			if entry.ExpiresAt != nil && !time.Now().Before(*entry.ExpiresAt) {
				return 0, util.ErrTokenExpired
			}
			return entry.AttemptID, nil
		}
	}

	t, err := s.TokenRepo.FindShareByToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, util.ErrTokenNotFound
		}
		return 0, err
	}
	if t.Revoked {
		return 0, util.ErrTokenRevoked
	}
	if t.ExpiresAt != nil && !time.Now().Before(*t.ExpiresAt) {
		return 0, util.ErrTokenExpired
	}

	entry := shareCacheEntry{AttemptID: t.AttemptID, ExpiresAt: t.ExpiresAt}
	if b, merr := json.Marshal(entry); merr == nil {
		ttl := time.Duration(s.Cfg.Assess.ShareCacheSeconds) * time.Second
		if err := s.RDB.Set(ctx, key, b, ttl).Err(); err != nil {
			logger.Log.Warn("share token cache write failed", zap.Error(err))
		}
	}
	return t.AttemptID, nil
}
