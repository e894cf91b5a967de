package service

import (
	"context"
	"sort"
	"time"

	"oral_eval_backend/internal/config"
	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/repository"
	"oral_eval_backend/internal/util"
	"oral_eval_backend/pkg/logger"

	"github.com/speps/go-hashids"
	"go.uber.org/zap"
)

// 两阶段满分:声学0-20 + 语义0-24
const (
	PhoneticMax = 20
	SemanticMax = 24
	TotalMax    = PhoneticMax + SemanticMax
)

// MediaAvailable / MediaExpired 报告中音频素材的可用状态
const (
	MediaAvailable = "available"
	MediaExpired   = "expired"
)

// ReportMedia 报告中一段音频素材
// 对象被保留期清理后标记为 expired,其余字段照常返回
type ReportMedia struct {
	Stage     string     `json:"stage"` // part1 朗读 / part2 问答
	Status    string     `json:"status"`
	URL       string     `json:"url,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ReportItem 语义逐题得分明细
type ReportItem struct {
	No       int    `json:"no"`
	Question string `json:"question"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback,omitempty"`
}

// ReportExaminee 报告中的考生信息
type ReportExaminee struct {
	ID          uint   `json:"id"`
	DisplayName string `json:"display_name"`
	StudentNo   string `json:"student_no,omitempty"`
	ClassName   string `json:"class_name,omitempty"`
}

// Report 成绩报告,仅对 completed 的测评可装配
type Report struct {
	Serial   string         `json:"serial"`
	Attempt  uint           `json:"attempt_id"`
	Examinee ReportExaminee `json:"examinee"`
	Level    string         `json:"level"`
	Unit     int            `json:"unit"`
	Title    string         `json:"title"`

	PhoneticScore  int                       `json:"phonetic_score"`
	PhoneticDetail *model.PhoneticComponents `json:"phonetic_detail,omitempty"`
	SemanticScore  int                       `json:"semantic_score"`
	TotalScore     int                       `json:"total_score"`
	TotalMax       int                       `json:"total_max"`
	Percent        float64                   `json:"percent"`
	Tier           int                       `json:"tier"`

	Transcript string        `json:"transcript,omitempty"`
	Feedback   string        `json:"feedback,omitempty"`
	Items      []ReportItem  `json:"items"`
	Media      []ReportMedia `json:"media"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// ReportService 成绩报告装配
type ReportService struct {
	AttemptRepo    *repository.AttemptRepository
	AssignmentRepo *repository.AssignmentRepository
	UserRepo       *repository.UserRepository
	Storage        *StorageService
	Cfg            *config.Config

	hasher *hashids.HashID
}

func NewReportService(
	attemptRepo *repository.AttemptRepository,
	assignmentRepo *repository.AssignmentRepository,
	userRepo *repository.UserRepository,
	storage *StorageService,
	cfg *config.Config,
) (*ReportService, error) {
	hd := hashids.NewData()
	hd.Salt = cfg.Assess.HashidsSalt
	hd.MinLength = cfg.Assess.HashidsMinLength
	hasher, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, err
	}
	return &ReportService{
		AttemptRepo:    attemptRepo,
		AssignmentRepo: assignmentRepo,
		UserRepo:       userRepo,
		Storage:        storage,
		Cfg:            cfg,
		hasher:         hasher,
	}, nil
}

// Assemble 装配指定测评的成绩报告
// 仅 completed 可装配;素材缺失标记为 expired,存储暂时性故障按错误返回
func (s *ReportService) Assemble(ctx context.Context, attemptID uint) (*Report, error) {
	attempt, err := s.AttemptRepo.FindByIDWithItems(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptCompleted {
		return nil, util.ErrAttemptNotTerminal
	}

	serial, err := s.ensureSerial(attempt)
	if err != nil {
		return nil, err
	}

	assignment, err := s.AssignmentRepo.FindByID(attempt.AssignmentID)
	if err != nil {
		return nil, err
	}
	examinee, err := s.UserRepo.FindByID(attempt.ExamineeID)
	if err != nil {
		return nil, err
	}

	phonetic := 0
	if attempt.PhoneticScore != nil {
		phonetic = *attempt.PhoneticScore
	}
	semantic := 0
	if attempt.SemanticScore != nil {
		semantic = *attempt.SemanticScore
	}
	total := phonetic + semantic
	percent := float64(total) / float64(TotalMax) * 100

	report := &Report{
		Serial:  serial,
		Attempt: attempt.ID,
		Examinee: ReportExaminee{
			ID:          examinee.ID,
			DisplayName: examinee.DisplayName,
			StudentNo:   examinee.StudentNo,
			ClassName:   examinee.ClassName,
		},
		Level:         attempt.Level,
		Unit:          attempt.Unit,
		Title:         assignment.Title,
		PhoneticScore: phonetic,
		SemanticScore: semantic,
		TotalScore:    total,
		TotalMax:      TotalMax,
		Percent:       percent,
		Tier:          s.TierFor(percent),
		Transcript:    attempt.Transcript,
		Feedback:      attempt.Feedback,
		CompletedAt:   attempt.CompletedAt,
		GeneratedAt:   time.Now(),
	}

	if attempt.PronAccuracy != nil {
		report.PhoneticDetail = &model.PhoneticComponents{
			Accuracy:  *attempt.PronAccuracy,
			Fluency:   deref(attempt.PronFluency),
			Integrity: deref(attempt.PronIntegrity),
			Tone:      deref(attempt.PronTone),
		}
	}

	questionText := make(map[int]string, len(assignment.Questions))
	for _, q := range assignment.Questions {
		questionText[q.No] = q.Text
	}
	items := make([]ReportItem, 0, len(attempt.ItemScores))
	for _, it := range attempt.ItemScores {
		items = append(items, ReportItem{
			No:       it.No,
			Question: questionText[it.No],
			Score:    it.Score,
			Feedback: it.Feedback,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].No < items[j].No })
	report.Items = items

	media, err := s.assembleMedia(ctx, attempt)
	if err != nil {
		return nil, err
	}
	report.Media = media

	return report, nil
}

// TierFor 按配置的百分比阶梯折算评级,阈值降序匹配第一条
func (s *ReportService) TierFor(percent float64) int {
	tiers := append([]config.RatingTier(nil), s.Cfg.Assess.RatingTiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Percent > tiers[j].Percent })
	for _, t := range tiers {
		if percent >= t.Percent {
			return t.Tier
		}
	}
	if len(tiers) > 0 {
		return tiers[len(tiers)-1].Tier
	}
	return 1
}

// ensureSerial 报告序号只生成一次,并发装配收敛到同一个值
func (s *ReportService) ensureSerial(attempt *model.Attempt) (string, error) {
	if attempt.ReportSerial != "" {
		return attempt.ReportSerial, nil
	}
	serial, err := s.hasher.Encode([]int{int(attempt.ID)})
	if err != nil {
		return "", err
	}
	if err := s.AttemptRepo.SetReportSerial(attempt.ID, serial); err != nil {
		return "", err
	}
	fresh, err := s.AttemptRepo.FindByID(attempt.ID)
	if err != nil {
		return "", err
	}
	return fresh.ReportSerial, nil
}

func (s *ReportService) assembleMedia(ctx context.Context, attempt *model.Attempt) ([]ReportMedia, error) {
	ttl := time.Duration(s.Cfg.Assess.ReportURLTTLMinutes) * time.Minute
	media := make([]ReportMedia, 0, 2)

	keys := []struct {
		stage string
		key   string
	}{
		{util.StagePhonetic, attempt.PhoneticAudioKey},
		{util.StageSemantic, attempt.SemanticAudioKey},
	}
	for _, k := range keys {
		if k.key == "" {
			continue
		}
		exists, err := s.Storage.Stat(ctx, k.key)
		if err != nil {
			// 存储暂时性故障与对象缺失是两回事,前者必须报错
			return nil, err
		}
		if !exists {
			logger.Log.Info("报告素材已被保留期清理",
				zap.Uint("attempt_id", attempt.ID), zap.String("key", k.key))
			media = append(media, ReportMedia{Stage: k.stage, Status: MediaExpired})
			continue
		}
		u, err := s.Storage.Presign(ctx, k.key, ttl)
		if err != nil {
			return nil, err
		}
		expires := time.Now().Add(ttl)
		media = append(media, ReportMedia{
			Stage:     k.stage,
			Status:    MediaAvailable,
			URL:       u,
			ExpiresAt: &expires,
		})
	}
	return media, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
