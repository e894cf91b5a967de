package repository

import (
	"errors"
	"time"

	"oral_eval_backend/internal/model"

	"gorm.io/gorm"
)

type QuotaRepository struct {
	DB *gorm.DB
}

func NewQuotaRepository(db *gorm.DB) *QuotaRepository {
	return &QuotaRepository{DB: db}
}

// FindOrCreate 取出 考生+级别+单元 的名额行,不存在则以 not_started 建行
// 并发建行撞唯一索引时读回已有行
func (r *QuotaRepository) FindOrCreate(examineeID uint, level string, unit int) (*model.QuotaRecord, error) {
	var q model.QuotaRecord
	err := r.DB.Where("examinee_id = ? AND level = ? AND unit = ?", examineeID, level, unit).First(&q).Error
	if err == nil {
		return &q, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	q = model.QuotaRecord{
		ExamineeID: examineeID,
		Level:      level,
		Unit:       unit,
		State:      model.QuotaNotStarted,
	}
	if err := r.DB.Create(&q).Error; err != nil {
		var existing model.QuotaRecord
		if ferr := r.DB.Where("examinee_id = ? AND level = ? AND unit = ?", examineeID, level, unit).First(&existing).Error; ferr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &q, nil
}

func (r *QuotaRepository) FindByID(id uint) (*model.QuotaRecord, error) {
	var q model.QuotaRecord
	err := r.DB.First(&q, id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuotaRepository) FindByScope(examineeID uint, level string, unit int) (*model.QuotaRecord, error) {
	var q model.QuotaRecord
	err := r.DB.Where("examinee_id = ? AND level = ? AND unit = ?", examineeID, level, unit).First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Transition 名额状态的条件更新,返回是否恰好一行被改写
func (r *QuotaRepository) Transition(id uint, from, to model.QuotaState, attemptID *uint) (bool, error) {
	updates := map[string]interface{}{"state": to}
	if attemptID != nil {
		updates["attempt_id"] = *attemptID
	}
	res := r.DB.Model(&model.QuotaRecord{}).
		Where("id = ? AND state = ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// AttachAttempt 预占成功后回填当前测评ID
func (r *QuotaRepository) AttachAttempt(id uint, attemptID uint) error {
	return r.DB.Model(&model.QuotaRecord{}).
		Where("id = ?", id).
		Update("attempt_id", attemptID).
		Error
}

// Reset 将名额放回 not_started 并计数,重置次数达到上限时不生效
func (r *QuotaRepository) Reset(id uint, actorID uint, maxResets int) (bool, error) {
	now := time.Now()
	res := r.DB.Model(&model.QuotaRecord{}).
		Where("id = ? AND state = ? AND reset_count < ?", id, model.QuotaInProgress, maxResets).
		Updates(map[string]interface{}{
			"state":         model.QuotaNotStarted,
			"attempt_id":    nil,
			"reset_count":   gorm.Expr("reset_count + 1"),
			"last_reset_at": now,
			"last_reset_by": actorID,
		})
	return res.RowsAffected == 1, res.Error
}
