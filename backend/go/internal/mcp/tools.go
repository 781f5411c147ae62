package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mutusfa/Neurodeck/backend/go/internal/card_service/service"
	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
)

// NewServer 构建 Neurodeck 的 MCP 服务器，把卡片生成、管理与 Anki 同步
// 暴露为工具供 LLM Agent 调用。业务失败以工具错误结果返回，
// 不作为协议错误中断会话。
func NewServer(svc *service.Service) *server.MCPServer {
	s := server.NewMCPServer(
		"Neurodeck",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	h := &toolHandler{svc: svc}

	s.AddTool(mcp.NewTool("generate_cards",
		mcp.WithDescription("Extract text from a local document (PDF, TXT, Markdown, DOCX, XLSX) and generate flashcards for it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path to the document file.")),
	), h.generateCards)

	s.AddTool(mcp.NewTool("list_contexts",
		mcp.WithDescription("List every ingested document context with its card count."),
	), h.listContexts)

	s.AddTool(mcp.NewTool("list_cards",
		mcp.WithDescription("List the flashcards of one context."),
		mcp.WithString("context", mcp.Required(), mcp.Description("Context key: the stored media URI or the source URL.")),
	), h.listCards)

	s.AddTool(mcp.NewTool("evaluate_card",
		mcp.WithDescription("Record an evaluation for one card. Evaluated cards become eligible for Anki sync."),
		mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Numeric card identifier.")),
		mcp.WithString("evaluation", mcp.Required(), mcp.Description("One of: not_evaluated, liked, disliked, seen.")),
	), h.evaluateCard)

	s.AddTool(mcp.NewTool("sync_anki",
		mcp.WithDescription("Run one Anki sync pass over the evaluated cards of a context and report per-card outcomes."),
		mcp.WithString("context", mcp.Required(), mcp.Description("Context key whose cards should be synced.")),
	), h.syncAnki)

	s.AddTool(mcp.NewTool("list_decks",
		mcp.WithDescription("List the deck names available in the running Anki instance."),
	), h.listDecks)

	return s
}

// toolHandler 把工具调用转发给业务层并渲染纯文本结果。
type toolHandler struct {
	svc *service.Service
}

func (h *toolHandler) generateCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := h.svc.GenerateFromFile(ctx, path, filepath.Base(path))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate cards: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generated %d cards for context %s (topic: %s)\n", len(res.Cards), res.Context, res.Topic)
	if res.FromCache {
		b.WriteString("The document was already ingested; these are the existing cards.\n")
	}
	writeCards(&b, res.Cards)
	return mcp.NewToolResultText(b.String()), nil
}

func (h *toolHandler) listContexts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos, err := h.svc.ListContexts(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list contexts: %v", err)), nil
	}
	if len(infos) == 0 {
		return mcp.NewToolResultText("No contexts ingested yet."), nil
	}

	var b strings.Builder
	for _, info := range infos {
		fmt.Fprintf(&b, "%s (%d cards)\n", info.Context, info.CardCount)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (h *toolHandler) listCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contextKey, err := req.RequireString("context")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cards, err := h.svc.LoadCards(ctx, contextKey)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load cards: %v", err)), nil
	}
	if len(cards) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No cards found for context %s.", contextKey)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d cards for context %s:\n", len(cards), contextKey)
	writeCards(&b, cards)
	return mcp.NewToolResultText(b.String()), nil
}

func (h *toolHandler) evaluateCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cardID, err := req.RequireFloat("card_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	evaluation, err := req.RequireString("evaluation")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := h.svc.UpdateEvaluation(ctx, uint(cardID), models.CardEvaluation(evaluation)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to evaluate card: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Card %d marked %s.", uint(cardID), evaluation)), nil
}

func (h *toolHandler) syncAnki(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contextKey, err := req.RequireString("context")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcomes, err := h.svc.SyncContext(ctx, contextKey)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sync failed: %v", err)), nil
	}
	if len(outcomes) == 0 {
		return mcp.NewToolResultText("No evaluated cards to sync. Evaluate cards first with evaluate_card."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sync pass over %d cards:\n", len(outcomes))
	for _, o := range outcomes {
		switch {
		case o.Reason != "":
			fmt.Fprintf(&b, "card %d: %s (%s)\n", o.CardID, o.Status, o.Reason)
		case o.NoteID != 0:
			fmt.Fprintf(&b, "card %d: %s (note %d)\n", o.CardID, o.Status, o.NoteID)
		default:
			fmt.Fprintf(&b, "card %d: %s\n", o.CardID, o.Status)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (h *toolHandler) listDecks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	decks, err := h.svc.ListDecks(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list decks: %v", err)), nil
	}
	if len(decks) == 0 {
		return mcp.NewToolResultText("No decks found."), nil
	}
	return mcp.NewToolResultText(strings.Join(decks, "\n")), nil
}

// writeCards 以纯文本逐行渲染卡片列表。
func writeCards(b *strings.Builder, cards []models.Card) {
	for _, card := range cards {
		fmt.Fprintf(b, "[%d] (%s) Q: %s\n    A: %s\n", card.ID, card.Evaluation, card.Question, card.Answer)
	}
}
