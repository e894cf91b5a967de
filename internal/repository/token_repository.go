package repository

import (
	"time"

	"oral_eval_backend/internal/model"

	"gorm.io/gorm"
)

type TokenRepository struct {
	DB *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{DB: db}
}

func (r *TokenRepository) CreateEntryToken(t *model.EntryToken) error {
	return r.DB.Create(t).Error
}

func (r *TokenRepository) FindEntryByToken(token string) (*model.EntryToken, error) {
	var t model.EntryToken
	err := r.DB.Where("token = ?", token).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ConsumeEntry 翻转 used_at,条件更新保证并发兑换只有一个赢家
func (r *TokenRepository) ConsumeEntry(id uint, now time.Time) (bool, error) {
	res := r.DB.Model(&model.EntryToken{}).
		Where("id = ? AND used_at IS NULL AND revoked = ? AND expires_at > ?", id, false, now).
		Update("used_at", now)
	return res.RowsAffected == 1, res.Error
}

// AttachAttempt 兑换成功后回填创建出的测评ID
func (r *TokenRepository) AttachAttempt(id uint, attemptID uint) error {
	return r.DB.Model(&model.EntryToken{}).
		Where("id = ?", id).
		Update("attempt_id", attemptID).
		Error
}

// ReleaseEntry 兑换后续步骤失败时回滚消费,令牌恢复可用
func (r *TokenRepository) ReleaseEntry(id uint) error {
	return r.DB.Model(&model.EntryToken{}).
		Where("id = ? AND used_at IS NOT NULL", id).
		Update("used_at", nil).
		Error
}

// RevokeEntryUnused 撤销未使用的入场令牌,对已撤销令牌重复执行不报错
func (r *TokenRepository) RevokeEntryUnused(token string) (int64, error) {
	res := r.DB.Model(&model.EntryToken{}).
		Where("token = ? AND used_at IS NULL", token).
		Update("revoked", true)
	return res.RowsAffected, res.Error
}

func (r *TokenRepository) ListEntryByIssuer(issuerID uint, limit, offset int) ([]model.EntryToken, int64, error) {
	var list []model.EntryToken
	var total int64
	q := r.DB.Model(&model.EntryToken{}).Where("issued_by = ?", issuerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

func (r *TokenRepository) CreateShareToken(t *model.ShareToken) error {
	return r.DB.Create(t).Error
}

func (r *TokenRepository) FindShareByToken(token string) (*model.ShareToken, error) {
	var t model.ShareToken
	err := r.DB.Where("token = ?", token).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RevokeShare 撤销分享令牌,幂等
func (r *TokenRepository) RevokeShare(token string) (int64, error) {
	res := r.DB.Model(&model.ShareToken{}).
		Where("token = ?", token).
		Update("revoked", true)
	return res.RowsAffected, res.Error
}
