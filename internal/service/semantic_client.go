package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"oral_eval_backend/internal/config"
	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/util"

	"github.com/tidwall/gjson"
)

// SemanticOutcome 一次批式语义评分的解析结果
type SemanticOutcome struct {
	Transcript string
	Feedback   string
	Items      []model.ItemScore
}

// SemanticClient 批式语义评分服务的HTTP客户端,对话补全兼容接口
type SemanticClient struct {
	cfg    *config.SemanticConfig
	client *http.Client
}

func NewSemanticClient(cfg *config.SemanticConfig) *SemanticClient {
	timeout := time.Duration(cfg.RequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &SemanticClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

const semanticSystemPrompt = `你是英语口语测评助手。你会收到一段考生回答音频的下载地址和12道口头问答题。
请先转写音频,再逐题评分:每题0/1/2分,0=未作答或完全不相关,1=部分正确,2=回答完整且切题。
严格输出JSON对象,不要输出其他内容,格式:
{"transcript":"...","feedback":"总体评语","items":[{"no":1,"score":2,"feedback":"..."},...共12项,按题号升序]}`

// Score 调用评分服务并解析回复
// 结构非法的回复统一包装为 util.ErrMalformedResult,由消费者按重试上限处理
func (c *SemanticClient) Score(ctx context.Context, audioURL string, questions []model.AssignmentQuestion) (*SemanticOutcome, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "音频地址: %s\n题目:\n", audioURL)
	for _, q := range questions {
		fmt.Fprintf(&sb, "%d. %s", q.No, q.Text)
		if q.ReferenceAnswer != "" {
			fmt.Fprintf(&sb, " (参考答案: %s)", q.ReferenceAnswer)
		}
		sb.WriteString("\n")
	}

	reqBody := map[string]interface{}{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": semanticSystemPrompt},
			{"role": "user", "content": sb.String()},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0.2,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求语义评分服务失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("读取评分回复失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("语义评分服务返回 %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	content := gjson.GetBytes(body, "choices.0.message.content").String()
	if content == "" {
		return nil, fmt.Errorf("%w: 回复缺少评分内容", util.ErrMalformedResult)
	}
	return parseSemanticContent(content)
}

// parseSemanticContent 解析模型输出的评分JSON
func parseSemanticContent(content string) (*SemanticOutcome, error) {
	// 容忍模型把JSON包在代码块里
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	if !gjson.Valid(content) {
		return nil, fmt.Errorf("%w: 非法JSON", util.ErrMalformedResult)
	}

	root := gjson.Parse(content)
	itemsNode := root.Get("items")
	if !itemsNode.IsArray() {
		return nil, fmt.Errorf("%w: 缺少items数组", util.ErrMalformedResult)
	}

	out := &SemanticOutcome{
		Transcript: root.Get("transcript").String(),
		Feedback:   root.Get("feedback").String(),
	}
	for _, it := range itemsNode.Array() {
		out.Items = append(out.Items, model.ItemScore{
			No:       int(it.Get("no").Int()),
			Score:    int(it.Get("score").Int()),
			Feedback: it.Get("feedback").String(),
		})
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
