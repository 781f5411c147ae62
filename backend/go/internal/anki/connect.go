package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mutusfa/Neurodeck/backend/go/internal/config"
	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
)

// connectVersion 是 AnkiConnect 协议的版本号，随每个请求发送。
const connectVersion = 6

// 端点与笔记模板的默认值，对应 Anki 自带的 Basic 笔记类型。
const (
	defaultEndpoint      = "http://127.0.0.1:8765"
	defaultModelName     = "Basic"
	defaultQuestionField = "Front"
	defaultAnswerField   = "Back"
	defaultTimeout       = 30 * time.Second
)

// ConnectClient 通过 AnkiConnect 的 HTTP 接口实现 DeckClient。
// 每次调用对应一个发往固定端点的 POST 请求，请求体为 {action, version, params}，
// 响应体为 {result, error}。可达的服务端总是返回 200，失败只通过 error 字段传递。
type ConnectClient struct {
	endpoint      string
	modelName     string
	questionField string
	answerField   string
	httpClient    *http.Client
}

// NewConnectClient 根据配置创建一个 ConnectClient。
// 端点 URL 无法解析时立即失败，这是唯一在构造期发现的整体性错误；
// 其余字段为空时使用默认值。
func NewConnectClient(cfg *config.AnkiConfig) (*ConnectClient, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("无效的 AnkiConnect 地址 '%s': %w", endpoint, err)
	}

	timeout := defaultTimeout
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("无效的 Anki 超时配置 '%s': %w", cfg.Timeout, err)
		}
		timeout = d
	}

	c := &ConnectClient{
		endpoint:      endpoint,
		modelName:     cfg.ModelName,
		questionField: cfg.QuestionField,
		answerField:   cfg.AnswerField,
		httpClient:    &http.Client{Timeout: timeout},
	}
	if c.modelName == "" {
		c.modelName = defaultModelName
	}
	if c.questionField == "" {
		c.questionField = defaultQuestionField
	}
	if c.answerField == "" {
		c.answerField = defaultAnswerField
	}
	return c, nil
}

// connectRequest 是发往端点的请求包络。
type connectRequest struct {
	Action  string      `json:"action"`
	Version int         `json:"version"`
	Params  interface{} `json:"params,omitempty"`
}

// connectResponse 是端点返回的响应包络，result 与 error 均可为 null。
type connectResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// post 执行一次 AnkiConnect 调用，并把 result 解码到 out（out 为 nil 时丢弃）。
// 传输失败与超时映射为 ErrUnavailable；非 200 状态码与无法解码的响应体
// 映射为 ErrProtocol；非空的 error 字段再按已知消息模式细分。
func (c *ConnectClient) post(ctx context.Context, action string, params, out interface{}) error {
	body, err := json.Marshal(connectRequest{Action: action, Version: connectVersion, Params: params})
	if err != nil {
		return fmt.Errorf("序列化 %s 请求失败: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("构造 %s 请求失败: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// 连接失败与超时都视为端点不可用，由上层决定是否继续本轮同步。
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s 返回状态码 %d", ErrProtocol, action, resp.StatusCode)
	}

	var envelope connectResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: 解码 %s 响应失败: %v", ErrProtocol, action, err)
	}
	if envelope.Error != nil {
		return classifyError(action, *envelope.Error)
	}
	if out != nil && len(envelope.Result) > 0 && string(envelope.Result) != "null" {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("%w: 解析 %s 结果失败: %v", ErrProtocol, action, err)
		}
	}
	return nil
}

// classifyError 按已知的消息模式对远端报告的错误进一步分类。
// 无法识别的消息保持为 ErrProtocol，原文附带在错误信息里。
func classifyError(action, message string) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "duplicate"):
		return fmt.Errorf("%w: %s", ErrDuplicateNote, message)
	case strings.Contains(lower, "not found"):
		return fmt.Errorf("%w: %s", ErrNoteNotFound, message)
	default:
		return fmt.Errorf("%w: %s: %s", ErrProtocol, action, message)
	}
}

// ListDecks 实现 DeckClient，对应 deckNames 动作。
func (c *ConnectClient) ListDecks(ctx context.Context) ([]string, error) {
	var decks []string
	if err := c.post(ctx, "deckNames", nil, &decks); err != nil {
		return nil, err
	}
	return decks, nil
}

// FindNotes 实现 DeckClient，对应 findNotes 动作。
func (c *ConnectClient) FindNotes(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	params := map[string]string{"query": query}
	if err := c.post(ctx, "findNotes", params, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// noteInfoRow 对应 notesInfo 结果中的一行。远端对不存在的 ID 返回空对象 {}，
// 该行的所有字段都是零值，以 NoteID == 0 识别缺失。
type noteInfoRow struct {
	NoteID     int64 `json:"noteId"`
	Interval   int   `json:"interval"`
	Reps       int   `json:"reps"`
	Lapses     int   `json:"lapses"`
	Factor     int   `json:"factor"`
	LastReview int64 `json:"lastReview"` // 最近一次复习的 Unix 毫秒时间戳，0 表示从未复习
}

// GetNoteInfo 实现 DeckClient。所有 ID 合并为一次 notesInfo 请求，
// 缺失的 ID 记入 missing 而不是让整批失败。
func (c *ConnectClient) GetNoteInfo(ctx context.Context, ids []int64) (map[int64]NoteInfo, []int64, error) {
	if len(ids) == 0 {
		return map[int64]NoteInfo{}, nil, nil
	}

	var rows []noteInfoRow
	params := map[string][]int64{"notes": ids}
	if err := c.post(ctx, "notesInfo", params, &rows); err != nil {
		return nil, nil, err
	}

	found := make(map[int64]NoteInfo, len(rows))
	for _, row := range rows {
		if row.NoteID == 0 {
			continue
		}
		info := NoteInfo{
			NoteID: row.NoteID,
			Stats: models.ReviewStats{
				EaseFactor:   row.Factor,
				IntervalDays: row.Interval,
				Repetitions:  row.Reps,
				Lapses:       row.Lapses,
			},
		}
		if row.LastReview > 0 {
			t := time.UnixMilli(row.LastReview)
			info.Stats.LastReviewedAt = &t
		}
		found[row.NoteID] = info
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return found, missing, nil
}

// noteSpec 是 addNote 动作的笔记描述。
type noteSpec struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Tags      []string          `json:"tags"`
}

// AddNote 实现 DeckClient，对应 addNote 动作，返回远端分配的笔记 ID。
func (c *ConnectClient) AddNote(ctx context.Context, deck, question, answer string, tags []string) (int64, error) {
	if tags == nil {
		tags = []string{}
	}
	params := map[string]noteSpec{
		"note": {
			DeckName:  deck,
			ModelName: c.modelName,
			Fields: map[string]string{
				c.questionField: question,
				c.answerField:   answer,
			},
			Tags: tags,
		},
	}
	var id int64
	if err := c.post(ctx, "addNote", params, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateNoteFields 实现 DeckClient，对应 updateNoteFields 动作。
func (c *ConnectClient) UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error {
	params := map[string]interface{}{
		"note": map[string]interface{}{
			"id":     id,
			"fields": fields,
		},
	}
	return c.post(ctx, "updateNoteFields", params, nil)
}

// DeleteNote 实现 DeckClient，对应 deleteNotes 动作。
// 远端对不存在的 ID 静默成功；个别版本会报 not found，这里同样视为成功以保证幂等。
func (c *ConnectClient) DeleteNote(ctx context.Context, id int64) error {
	params := map[string][]int64{"notes": {id}}
	err := c.post(ctx, "deleteNotes", params, nil)
	if errors.Is(err, ErrNoteNotFound) {
		return nil
	}
	return err
}

// 编译时检查，确保 ConnectClient 实现了 DeckClient 接口。
var _ DeckClient = (*ConnectClient)(nil)
