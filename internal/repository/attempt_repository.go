package repository

import (
	"time"

	"oral_eval_backend/internal/model"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(a *model.Attempt) error {
	return r.DB.Create(a).Error
}

func (r *AttemptRepository) FindByID(id uint) (*model.Attempt, error) {
	var a model.Attempt
	if err := r.DB.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) FindByIDWithItems(id uint) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.Preload("ItemScores", func(db *gorm.DB) *gorm.DB {
		return db.Order("no ASC")
	}).First(&a, id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) ListByAssignment(assignmentID uint, limit, offset int) ([]model.Attempt, int64, error) {
	var list []model.Attempt
	var total int64
	q := r.DB.Model(&model.Attempt{}).Where("assignment_id = ?", assignmentID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

func (r *AttemptRepository) ListByExaminee(examineeID uint) ([]model.Attempt, error) {
	var list []model.Attempt
	err := r.DB.Where("examinee_id = ?", examineeID).Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *AttemptRepository) SetPhoneticAudioKey(id uint, key string) error {
	return r.DB.Model(&model.Attempt{}).Where("id = ?", id).
		Update("phonetic_audio_key", key).Error
}

// MarkProcessing 第二阶段音频提交,pending/phase1_done 均可进入 processing
// pending 进入时第一阶段得分仍在途,完成与否由之后的合流判断
func (r *AttemptRepository) MarkProcessing(id uint, audioKey string) (bool, error) {
	res := r.DB.Model(&model.Attempt{}).
		Where("id = ? AND status IN ?", id,
			[]model.AttemptStatus{model.AttemptPending, model.AttemptPhase1Done}).
		Updates(map[string]interface{}{
			"status":             model.AttemptProcessing,
			"semantic_audio_key": audioKey,
		})
	return res.RowsAffected == 1, res.Error
}

// ApplyPhoneticScore 写入声学得分并推进状态
// 三条路径按序尝试:pending 正常推进;processing 为后到的声学结果补分;
// 可重试的 failed 由后台补扫复活。返回是否落库与落库后的状态
func (r *AttemptRepository) ApplyPhoneticScore(id uint, score int, comps model.PhoneticComponents, now time.Time) (bool, model.AttemptStatus, error) {
	applied := false
	var final model.AttemptStatus

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		base := map[string]interface{}{
			"phonetic_score": score,
			"pron_accuracy":  comps.Accuracy,
			"pron_fluency":   comps.Fluency,
			"pron_integrity": comps.Integrity,
			"pron_tone":      comps.Tone,
			"phase1_done_at": now,
		}

		// 常规路径:第一阶段先完成
		u := copyUpdates(base)
		u["status"] = model.AttemptPhase1Done
		res := tx.Model(&model.Attempt{}).
			Where("id = ? AND status = ?", id, model.AttemptPending).
			Updates(u)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			applied = true
			final = model.AttemptPhase1Done
			return nil
		}

		// 语义侧已先行,补上声学得分后判断能否收口
		res = tx.Model(&model.Attempt{}).
			Where("id = ? AND status = ? AND phonetic_score IS NULL", id, model.AttemptProcessing).
			Updates(base)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			applied = true
			final = model.AttemptProcessing
			return r.tryComplete(tx, id, now, &final)
		}

		// 可重试失败的复活路径,同时清除失败标记
		u = copyUpdates(base)
		u["failure_reason"] = ""
		u["failure_class"] = ""
		u["retryable"] = false
		res = tx.Model(&model.Attempt{}).
			Where("id = ? AND status = ? AND retryable = ? AND phonetic_score IS NULL",
				id, model.AttemptFailed, true).
			Updates(u)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			applied = true
			var a model.Attempt
			if err := tx.First(&a, id).Error; err != nil {
				return err
			}
			next := model.AttemptPhase1Done
			if a.SemanticScore != nil {
				next = model.AttemptCompleted
			} else if a.SemanticAudioKey != "" {
				next = model.AttemptProcessing
			}
			u2 := map[string]interface{}{"status": next}
			if next == model.AttemptCompleted {
				u2["completed_at"] = now
			}
			if err := tx.Model(&model.Attempt{}).Where("id = ?", id).Updates(u2).Error; err != nil {
				return err
			}
			final = next
		}
		return nil
	})

	return applied, final, err
}

// ApplySemanticResult 以先删后插的方式整体覆盖语义结果并推进状态
// processing 为常规路径;可重试的 failed 也接受结果,等待声学侧复活后合流
func (r *AttemptRepository) ApplySemanticResult(id uint, items []model.ItemScore, transcript, feedback string, score int, now time.Time) (bool, model.AttemptStatus, error) {
	applied := false
	var final model.AttemptStatus

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		fields := map[string]interface{}{
			"semantic_score": score,
			"transcript":     transcript,
			"feedback":       feedback,
		}

		res := tx.Model(&model.Attempt{}).
			Where("id = ? AND status = ?", id, model.AttemptProcessing).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			res = tx.Model(&model.Attempt{}).
				Where("id = ? AND status = ? AND retryable = ?", id, model.AttemptFailed, true).
				Updates(fields)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return nil
			}
			applied = true
			final = model.AttemptFailed
		} else {
			applied = true
			final = model.AttemptProcessing
		}

		// 逐题得分整体覆盖,唯一索引要求物理删除
		if err := tx.Unscoped().Where("attempt_id = ?", id).Delete(&model.ItemScore{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].ID = 0
			items[i].AttemptID = id
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}

		if final == model.AttemptProcessing {
			return r.tryComplete(tx, id, now, &final)
		}
		return nil
	})

	return applied, final, err
}

// tryComplete 两侧得分齐备时把 processing 收口为 completed
func (r *AttemptRepository) tryComplete(tx *gorm.DB, id uint, now time.Time, final *model.AttemptStatus) error {
	var a model.Attempt
	if err := tx.First(&a, id).Error; err != nil {
		return err
	}
	if a.PhoneticScore == nil || a.SemanticScore == nil {
		return nil
	}
	res := tx.Model(&model.Attempt{}).
		Where("id = ? AND status = ?", id, model.AttemptProcessing).
		Updates(map[string]interface{}{
			"status":       model.AttemptCompleted,
			"completed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		*final = model.AttemptCompleted
	}
	return nil
}

// MarkFailed 从任意非终态进入 failed
func (r *AttemptRepository) MarkFailed(id uint, reason string, class model.FailureClass, retryable bool) (bool, error) {
	res := r.DB.Model(&model.Attempt{}).
		Where("id = ? AND status NOT IN ?", id,
			[]model.AttemptStatus{model.AttemptCompleted, model.AttemptFailed}).
		Updates(map[string]interface{}{
			"status":         model.AttemptFailed,
			"failure_reason": reason,
			"failure_class":  class,
			"retryable":      retryable,
		})
	return res.RowsAffected == 1, res.Error
}

// IncrementRetryCount 语义评分重试计数
func (r *AttemptRepository) IncrementRetryCount(id uint) error {
	return r.DB.Model(&model.Attempt{}).Where("id = ?", id).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error
}

// IncrementStreamAttempts 声学连接失败计数
func (r *AttemptRepository) IncrementStreamAttempts(id uint) error {
	return r.DB.Model(&model.Attempt{}).Where("id = ?", id).
		Update("stream_attempts", gorm.Expr("stream_attempts + 1")).Error
}

// ListRetryablePhonetic 后台补扫的候选:系统原因可重试失败、声学缺分且音频在库
func (r *AttemptRepository) ListRetryablePhonetic(limit int) ([]model.Attempt, error) {
	var list []model.Attempt
	err := r.DB.Where(
		"status = ? AND retryable = ? AND failure_class = ? AND phonetic_score IS NULL AND phonetic_audio_key <> ''",
		model.AttemptFailed, true, model.FailureClassSystem,
	).Order("updated_at ASC").Limit(limit).Find(&list).Error
	return list, err
}

// ListStalledPhonetic 实例重启后遗留的孤儿会话:音频已落库但评分从未返回
// 非终态且最近无写入的记录视为停摆,交给补扫重新拉起
func (r *AttemptRepository) ListStalledPhonetic(staleBefore time.Time, limit int) ([]model.Attempt, error) {
	var list []model.Attempt
	err := r.DB.Where(
		"status IN ? AND phonetic_score IS NULL AND phonetic_audio_key <> '' AND updated_at < ?",
		[]model.AttemptStatus{model.AttemptPending, model.AttemptProcessing}, staleBefore,
	).Order("updated_at ASC").Limit(limit).Find(&list).Error
	return list, err
}

// SetReportSerial 报告序列号只写一次
func (r *AttemptRepository) SetReportSerial(id uint, serial string) error {
	return r.DB.Model(&model.Attempt{}).
		Where("id = ? AND (report_serial IS NULL OR report_serial = '')", id).
		Update("report_serial", serial).Error
}

func copyUpdates(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src)+4)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
