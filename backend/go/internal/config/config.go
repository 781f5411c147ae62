package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// ServerConfig 定义了 HTTP 服务的监听配置。
type ServerConfig struct {
	Address string `yaml:"address"` // 监听地址 (默认: "127.0.0.1:8080"，仅限本机访问)
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// SQLiteConfig 定义了单机模式下 SQLite 数据库的配置。
type SQLiteConfig struct {
	Path string `yaml:"path"` // 数据库文件路径 (例如: "neurodeck.db")
}

// RedisConfig 定义了 Redis 缓存的连接配置。
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`  // 是否启用生成结果缓存
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"` // 是否发布卡片生命周期事件
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topics  []string `yaml:"topics"`  // 启动时确保存在的主题列表
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置。
type MinIOConfig struct {
	Enabled   bool   `yaml:"enabled"`   // 是否使用 MinIO 归档原始文档（关闭时使用本地目录）
	Endpoint  string `yaml:"endpoint"`  // MinIO 服务端点
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 默认存储桶名称
	Secure    bool   `yaml:"secure"`    // 是否使用 HTTPS
}

// FieldConfig 定义了 Milvus 集合中字段的配置。
type FieldConfig struct {
	Name         string `yaml:"name"`                // 字段名称
	DataType     string `yaml:"dataType"`            // 字段数据类型 (例如: "Int64", "VarChar", "FloatVector")
	IsPrimaryKey bool   `yaml:"isPrimaryKey"`        // 是否为主键
	IsAutoID     bool   `yaml:"isAutoID"`            // 是否自动生成ID
	Dim          int    `yaml:"dim,omitempty"`       // 向量维度 (仅适用于向量类型)
	MaxLength    int    `yaml:"maxLength,omitempty"` // 最大长度 (仅适用于VarChar类型)
}

// IndexConfig 定义了 Milvus 集合中索引的配置。
type IndexConfig struct {
	FieldName  string                 `yaml:"fieldName"`  // 要创建索引的字段名称
	IndexType  string                 `yaml:"indexType"`  // 索引类型 (例如: "IVF_FLAT", "HNSW")
	MetricType string                 `yaml:"metricType"` // 相似度度量类型 (例如: "L2", "COSINE")
	Params     map[string]interface{} `yaml:"params"`     // 索引参数 (例如: {"nlist": 128})
}

// SchemaConfig 定义了 Milvus 集合的 Schema 配置。
type SchemaConfig struct {
	CollectionName string        `yaml:"collectionName"` // 集合名称
	Description    string        `yaml:"description"`    // 集合描述
	VectorField    string        `yaml:"vectorField"`    // 向量字段名称
	Fields         []FieldConfig `yaml:"fields"`         // 字段配置列表
	Index          IndexConfig   `yaml:"index"`          // 索引配置
}

// MilvusConfig 定义了 Milvus 向量数据库的连接和 Schema 配置。
type MilvusConfig struct {
	Enabled bool         `yaml:"enabled"` // 是否启用相似卡片索引
	Address string       `yaml:"address"` // Milvus 服务地址
	Schema  SchemaConfig `yaml:"schema"`  // Milvus 集合 Schema 配置
}

// DatabaseConfigs 包含所有数据库与外部存储的配置。
// Redis、Kafka、MinIO 与 Milvus 都是可选依赖，未启用时对应能力自动降级。
type DatabaseConfigs struct {
	Driver string       `yaml:"driver"` // 关系型存储驱动: "sqlite" (默认) 或 "mysql"
	MySQL  MySQLConfig  `yaml:"mysql"`  // MySQL 数据库配置
	SQLite SQLiteConfig `yaml:"sqlite"` // SQLite 数据库配置
	Redis  RedisConfig  `yaml:"redis"`  // Redis 缓存配置
	Kafka  KafkaConfig  `yaml:"kafka"`  // Kafka 消息队列配置
	MinIO  MinIOConfig  `yaml:"minio"`  // MinIO 对象存储配置
	Milvus MilvusConfig `yaml:"milvus"` // Milvus 向量数据库配置
}

// AnkiConfig 定义了 AnkiConnect 端点与笔记模板的配置。
type AnkiConfig struct {
	Endpoint      string   `yaml:"endpoint"`      // AnkiConnect 地址 (默认: "http://127.0.0.1:8765")
	DeckName      string   `yaml:"deckName"`      // 推送的目标牌组名称 (默认: "Neurodeck")
	ModelName     string   `yaml:"modelName"`     // 笔记类型 (默认: "Basic")
	QuestionField string   `yaml:"questionField"` // 问题写入的字段名 (默认: "Front")
	AnswerField   string   `yaml:"answerField"`   // 答案写入的字段名 (默认: "Back")
	Tags          []string `yaml:"tags"`          // 附加到每条笔记的标签
	Timeout       string   `yaml:"timeout"`       // 单次调用超时 (例如: "30s")
}

// LLMConfig 包含了不同 LLM 提供商的配置。
type LLMConfig struct {
	Provider string       `yaml:"provider"` // LLM 提供商: "openai", "ollama" 或 "gemini"
	OpenAI   OpenAIConfig `yaml:"openai"`   // OpenAI 模型配置
	Ollama   OllamaConfig `yaml:"ollama"`   // Ollama 模型配置
	Gemini   GeminiConfig `yaml:"gemini"`   // Gemini 模型配置
}

// ActiveModel 返回当前提供商所选模型的名称，用于日志与生成缓存键。
func (c LLMConfig) ActiveModel() string {
	switch c.Provider {
	case "openai":
		return c.OpenAI.Model
	case "ollama":
		return c.Ollama.Model
	case "gemini":
		return c.Gemini.Model
	}
	return ""
}

// OpenAIConfig 包含了 OpenAI（或兼容网关）的配置。
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`  // OpenAI API 密钥
	Model   string `yaml:"model"`   // 模型名称 (例如: "gpt-4o-mini")
	BaseURL string `yaml:"baseURL"` // 兼容 OpenAI 协议的自建端点，留空使用官方端点
}

// OllamaConfig 包含了本地 Ollama 服务的配置。
type OllamaConfig struct {
	Model   string `yaml:"model"`   // 模型名称 (例如: "qwen3:8b")
	BaseURL string `yaml:"baseURL"` // 服务地址 (默认: "http://localhost:11434")
}

// GeminiConfig 包含了 Gemini 模型的配置。
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"` // Gemini API 密钥
	Model  string `yaml:"model"`  // Gemini 模型名称
}

// EmbeddingConfig 包含了 Embedding 提供商的配置（相似卡片索引使用）。
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // Embedding 提供商: "gemini", "openai", "huggingface" 或 "ollama"
	Model    string `yaml:"model"`    // 模型名称
	APIKey   string `yaml:"apiKey"`   // API 密钥
	BaseURL  string `yaml:"baseURL"`  // 服务地址（本地提供商使用）
}

// IngestionConfig 定义了文档摄取的配置。
type IngestionConfig struct {
	MediaDir     string `yaml:"mediaDir"`     // 本地媒体归档目录 (默认: "media")
	FetchTimeout string `yaml:"fetchTimeout"` // URL 抓取超时 (例如: "30s")
}

// GenerationConfig 定义了卡片生成的配置。
type GenerationConfig struct {
	MaxCards      int    `yaml:"maxCards"`      // 单个文档生成卡片的上限 (默认: 10)
	MaxInputChars int    `yaml:"maxInputChars"` // 送入模型的正文字符预算 (默认: 24000)
	CacheTTL      string `yaml:"cacheTTL"`      // 生成缓存的存活时间 (例如: "720h")
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了限流器的配置。
type RateLimiterConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	Algorithm      string               `yaml:"algorithm"` // 支持: "fixedWindow", "slidingLog", "slidingCounter", "leakyBucket", "tokenBucket"
	FixedWindow    FixedWindowConfig    `yaml:"fixedWindow"`
	SlidingLog     SlidingLogConfig     `yaml:"slidingLog"`
	SlidingCounter SlidingCounterConfig `yaml:"slidingCounter"`
	LeakyBucket    LeakyBucketConfig    `yaml:"leakyBucket"`
	TokenBucket    TokenBucketConfig    `yaml:"tokenBucket"`
}

// FixedWindowConfig 定义了固定窗口计数器算法的配置。
type FixedWindowConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"` // 例如: "1m", "30s"
}

// SlidingLogConfig 定义了滑动窗口日志算法的配置。
type SlidingLogConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
}

// SlidingCounterConfig 定义了滑动窗口计数器算法的配置。
type SlidingCounterConfig struct {
	Limit      int    `yaml:"limit"`
	Window     string `yaml:"window"`
	NumBuckets int    `yaml:"numBuckets"`
}

// LeakyBucketConfig 定义了漏桶算法的配置。
type LeakyBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// TokenBucketConfig 定义了令牌桶算法的配置。
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo          `yaml:"app"`        // 应用程序信息
	Server     ServerConfig     `yaml:"server"`     // HTTP 服务配置
	Logger     LoggerConfig     `yaml:"logger"`     // 日志记录器配置
	Databases  DatabaseConfigs  `yaml:"databases"`  // 数据库配置
	Anki       AnkiConfig       `yaml:"anki"`       // AnkiConnect 配置
	LLM        LLMConfig        `yaml:"llm"`        // LLM 配置部分
	Embedding  EmbeddingConfig  `yaml:"embedding"`  // Embedding 配置部分
	Ingestion  IngestionConfig  `yaml:"ingestion"`  // 文档摄取配置
	Generation GenerationConfig `yaml:"generation"` // 卡片生成配置
	Middleware MiddlewareConfig `yaml:"middleware"` // 中间件配置
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
//
// 参数:
//
//	path: YAML 配置文件的路径。
//
// 返回值:
//
//	*AppConfig: 解析后的应用程序配置结构体。
//	error: 如果文件读取或解析失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	// 读取 YAML 文件内容。
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	var cfg AppConfig // 声明一个AppConfig变量用于存储解析后的配置。
	// 将 YAML 内容解析到 cfg 结构体中。
	err = yaml.Unmarshal(yamlFile, &cfg)
	if err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	return &cfg, nil // 返回解析后的配置和nil错误。
}
