package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"oral_eval_backend/internal/config"
	"oral_eval_backend/internal/model"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// ErrProviderRejected 评分服务明确拒绝本次请求,不属于暂时性故障
var ErrProviderRejected = errors.New("评分服务拒绝请求")

// StreamOutcome 流式评分的终评事件
type StreamOutcome struct {
	Components model.PhoneticComponents
	Score      int
}

// CompositeScore 四项分项分(各0-100)折算为0-20:取均值后按5:1压缩取整
func CompositeScore(c model.PhoneticComponents) int {
	mean := (c.Accuracy + c.Fluency + c.Integrity + c.Tone) / 4
	score := int(mean / 5)
	if score < 0 {
		score = 0
	}
	if score > 20 {
		score = 20
	}
	return score
}

// PhoneticClient 流式声学评分服务的websocket客户端
type PhoneticClient struct {
	cfg    *config.PhoneticConfig
	dialer *websocket.Dialer
	now    func() time.Time
}

func NewPhoneticClient(cfg *config.PhoneticConfig) *PhoneticClient {
	return &PhoneticClient{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		now:    time.Now,
	}
}

// signedURL 计算带鉴权参数的接入地址
// 签名串为 host/date/request-line 三行,HMAC-SHA256 后整体 base64
func (c *PhoneticClient) signedURL() (string, error) {
	u, err := url.Parse(c.cfg.HostURL)
	if err != nil {
		return "", fmt.Errorf("解析评分服务地址失败: %w", err)
	}

	date := c.now().UTC().Format(http.TimeFormat)
	signatureOrigin := fmt.Sprintf("host: %s\ndate: %s\nGET %s HTTP/1.1", u.Host, date, u.Path)

	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(signatureOrigin))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	authOrigin := fmt.Sprintf(
		`api_key="%s", algorithm="hmac-sha256", headers="host date request-line", signature="%s"`,
		c.cfg.APIKey, signature)
	authorization := base64.StdEncoding.EncodeToString([]byte(authOrigin))

	q := url.Values{}
	q.Set("authorization", authorization)
	q.Set("date", date)
	q.Set("host", u.Host)
	return c.cfg.HostURL + "?" + q.Encode(), nil
}

// EvaluateStream 将整段音频按帧推送给评分服务并等待终评
// 帧节奏由限速器控制以贴近实时语速;ctx 到期立即断开
func (c *PhoneticClient) EvaluateStream(ctx context.Context, audio io.Reader, referenceText string) (*StreamOutcome, error) {
	wsURL, err := c.signedURL()
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("连接评分服务失败: %w", err)
	}
	defer conn.Close()
	if resp != nil {
		resp.Body.Close()
	}

	type readResult struct {
		outcome *StreamOutcome
		err     error
	}
	resultCh := make(chan readResult, 1)

	go func() {
		for {
			_, msg, rerr := conn.ReadMessage()
			if rerr != nil {
				resultCh <- readResult{nil, rerr}
				return
			}
			code := gjson.GetBytes(msg, "code")
			if code.Exists() && code.Int() != 0 {
				resultCh <- readResult{nil, fmt.Errorf("%w: code=%d message=%s",
					ErrProviderRejected, code.Int(), gjson.GetBytes(msg, "message").String())}
				return
			}
			if gjson.GetBytes(msg, "data.status").Int() != 2 {
				continue // 过程事件
			}
			result := gjson.GetBytes(msg, "data.result")
			comps := model.PhoneticComponents{
				Accuracy:  result.Get("accuracy_score").Float(),
				Fluency:   result.Get("fluency_score").Float(),
				Integrity: result.Get("integrity_score").Float(),
				Tone:      result.Get("tone_score").Float(),
			}
			resultCh <- readResult{&StreamOutcome{
				Components: comps,
				Score:      CompositeScore(comps),
			}, nil}
			return
		}
	}()

	if err := c.sendAudio(ctx, conn, audio, referenceText); err != nil {
		return nil, err
	}

	select {
	case r := <-resultCh:
		if r.err != nil {
			return nil, fmt.Errorf("等待终评失败: %w", r.err)
		}
		return r.outcome, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sendAudio 按 首帧(0)/中间帧(1)/末帧(2) 的标记推送音频
func (c *PhoneticClient) sendAudio(ctx context.Context, conn *websocket.Conn, audio io.Reader, referenceText string) error {
	limiter := rate.NewLimiter(rate.Every(time.Duration(c.cfg.FrameIntervalMs)*time.Millisecond), 1)
	buf := make([]byte, c.cfg.FrameSize)
	status := 0

	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		n, rerr := io.ReadFull(audio, buf)
		if n > 0 {
			if err := c.sendFrame(conn, status, buf[:n], referenceText, status == 0); err != nil {
				return fmt.Errorf("发送音频帧失败: %w", err)
			}
			status = 1
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			// 空音频收尾帧,首帧标记兜底空流场景
			if err := c.sendFrame(conn, 2, nil, referenceText, status == 0); err != nil {
				return fmt.Errorf("发送末帧失败: %w", err)
			}
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("读取音频失败: %w", rerr)
		}
	}
}

func (c *PhoneticClient) sendFrame(conn *websocket.Conn, status int, chunk []byte, referenceText string, includeHeader bool) error {
	frame := map[string]interface{}{
		"data": map[string]interface{}{
			"status": status,
			"audio":  base64.StdEncoding.EncodeToString(chunk),
		},
	}
	if includeHeader {
		frame["common"] = map[string]interface{}{
			"app_id": c.cfg.AppID,
		}
		frame["business"] = map[string]interface{}{
			"category":    "read_chapter",
			"text":        base64.StdEncoding.EncodeToString([]byte(referenceText)),
			"sample_rate": 16000,
			"format":      "audio/L16;rate=16000",
		}
	}
	return conn.WriteJSON(frame)
}
