package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"oral_eval_backend/internal/config"
	"oral_eval_backend/pkg/logger"

	"go.uber.org/zap"
)

// 审计动作
const (
	AuditEntryIssue  = "entry_token.issue"
	AuditEntryRedeem = "entry_token.redeem"
	AuditEntryRevoke = "entry_token.revoke"
	AuditShareIssue  = "share_token.issue"
	AuditShareRevoke = "share_token.revoke"
	AuditQuotaReset  = "quota.reset"
)

// AuditEvent 上报给外部审计方的一条事件
type AuditEvent struct {
	Actor   string    `json:"actor"`
	Action  string    `json:"action"`
	Subject string    `json:"subject"`
	Outcome string    `json:"outcome"`
	IP      string    `json:"ip,omitempty"`
	At      time.Time `json:"at"`
}

// AuditService 异步审计上报
// 缓冲满时丢弃事件并计数,任何情况下不阻塞、不失败业务操作
type AuditService struct {
	cfg     config.AuditConfig
	events  chan AuditEvent
	client  *http.Client
	wg      sync.WaitGroup
	stopped int32
	dropped int64
	quit    chan struct{}
}

func NewAuditService(cfg *config.Config) *AuditService {
	s := &AuditService{
		cfg:    cfg.Audit,
		events: make(chan AuditEvent, cfg.Audit.BufferSize),
		client: &http.Client{Timeout: 5 * time.Second},
		quit:   make(chan struct{}),
	}
	if s.cfg.Enabled {
		s.wg.Add(1)
		go s.run()
	}
	return s
}

// Report 投递一条审计事件,从不阻塞调用方
func (s *AuditService) Report(evt AuditEvent) {
	if !s.cfg.Enabled || atomic.LoadInt32(&s.stopped) == 1 {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	select {
	case s.events <- evt:
	default:
		atomic.AddInt64(&s.dropped, 1)
	}
}

// Dropped 因缓冲满而丢弃的事件数
func (s *AuditService) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

func (s *AuditService) run() {
	defer s.wg.Done()
	for {
		select {
		case evt := <-s.events:
			s.post(evt)
		case <-s.quit:
			// 退出前尽量清空缓冲
			for {
				select {
				case evt := <-s.events:
					s.post(evt)
				default:
					return
				}
			}
		}
	}
}

func (s *AuditService) post(evt AuditEvent) {
	body, err := json.Marshal(evt)
	if err != nil {
		return
	}
	resp, err := s.client.Post(s.cfg.Endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Log.Warn("audit report failed", zap.String("action", evt.Action), zap.Error(err))
		return
	}
	resp.Body.Close()
}

// Stop 停止上报并等待缓冲清空
func (s *AuditService) Stop() {
	if !atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		return
	}
	if s.cfg.Enabled {
		close(s.quit)
		s.wg.Wait()
	}
}
