package llm

import (
	"context"
	"fmt"

	"github.com/mutusfa/Neurodeck/backend/go/internal/config"
)

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
// 卡片生成只需要单轮的"提示词进、文本出"，因此接口刻意保持最小。
type LLM interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// NewClient 是一个工厂函数，根据提供的配置创建并返回一个实现了 LLM 接口的客户端。
//
// 参数:
//
//	cfg: LLM 配置，Provider 决定使用哪个后端。
//
// 返回值:
//
//	LLM: 实现了 LLM 接口的客户端实例。
//	error: 如果 Provider 不受支持或客户端创建失败，则返回错误。
func NewClient(cfg config.LLMConfig) (LLM, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("no api key configured for openai provider")
		}
		return NewOpenAI(cfg.OpenAI.Model, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	case "ollama":
		if cfg.Ollama.Model == "" {
			return nil, fmt.Errorf("no model configured for ollama provider")
		}
		return NewOllama(cfg.Ollama.Model, cfg.Ollama.BaseURL)
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("no api key configured for gemini provider")
		}
		return NewGemini(context.Background(), cfg.Gemini.Model, cfg.Gemini.APIKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
