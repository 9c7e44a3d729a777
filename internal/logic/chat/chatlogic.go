package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lifeos/lifeosd/internal/logging"
	"github.com/lifeos/lifeosd/internal/session"
	"github.com/lifeos/lifeosd/internal/svc"
	"github.com/lifeos/lifeosd/internal/types"
)

// persistTimeout bounds the background write of a finished turn.
const persistTimeout = 10 * time.Second

// ErrInvalidRequest marks request validation failures. The handler maps it
// to 400; every other error is the service's fault.
var ErrInvalidRequest = errors.New("invalid request")

type ChatLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewChatLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ChatLogic {
	return &ChatLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Chat runs one conversation turn: classify the request into a tier, drive
// the tool loop, persist the grown transcript, and return the normalized
// response. Persistence runs in the background and never fails the turn; a
// turn that produced no response persists nothing.
func (l *ChatLogic) Chat(req *types.ChatRequest) (*types.ChatResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	sessionID := req.SessionId
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	conv, err := l.assemble(sessionID, req.Messages)
	if err != nil {
		return nil, err
	}

	decision := l.svcCtx.Routing.Classifier().Classify(conv.Messages)
	conv.Tier = string(decision.Tier)
	logging.Infof("[Chat] session=%s tier=%s reason=%s", sessionID, decision.Tier, decision.Reason)

	var system string
	if agent := l.svcCtx.Agents.Resolve(req.Agent); agent != nil {
		system = agent.SystemPrompt
	}

	resp, err := l.svcCtx.Runner.Run(l.ctx, conv, decision.Tier, system)
	if err != nil {
		// Nothing to persist: the turn produced no assistant response.
		return nil, err
	}

	l.persist(conv)

	blocks := make([]types.ContentBlock, 0, len(resp.ContentBlocks))
	for _, b := range resp.ContentBlocks {
		blocks = append(blocks, types.ContentBlock{Type: b.Type, Text: b.Text})
	}

	return &types.ChatResponse{
		SessionId:     sessionID,
		ContentBlocks: blocks,
		ProviderUsed:  resp.Provider,
		Tier:          string(decision.Tier),
	}, nil
}

func validate(req *types.ChatRequest) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages must not be empty", ErrInvalidRequest)
	}
	for i, msg := range req.Messages {
		switch msg.Role {
		case "user", "assistant", "tool":
		default:
			return fmt.Errorf("%w: message %d has invalid role %q", ErrInvalidRequest, i, msg.Role)
		}
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" {
		return fmt.Errorf("%w: last message must be from the user", ErrInvalidRequest)
	}
	return nil
}

// assemble builds the working transcript. The request carries the full
// transcript for stateless clients; as a convenience, a request with a known
// session and a single user message continues the stored transcript instead.
func (l *ChatLogic) assemble(sessionID string, incoming []types.ChatMessage) (*session.Conversation, error) {
	conv := &session.Conversation{SessionID: sessionID}

	messages := make([]session.Message, 0, len(incoming))
	for _, msg := range incoming {
		messages = append(messages, session.Message{
			Role:        msg.Role,
			Content:     msg.Content,
			ToolCalls:   msg.ToolCalls,
			ToolResults: msg.ToolResults,
		})
	}

	if len(messages) == 1 && messages[0].Role == "user" {
		stored, err := l.svcCtx.Conversations.Messages(l.ctx, sessionID, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
		if len(stored) > 0 {
			messages = append(stored, messages[0])
		}
	}

	conv.Messages = session.Sanitize(messages)
	for i := range conv.Messages {
		conv.Messages[i].SessionID = sessionID
	}
	return conv, nil
}

// persist writes the transcript on a background context so a client
// disconnect cannot abort the write. Failures are logged, never surfaced.
func (l *ChatLogic) persist(conv *session.Conversation) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := l.svcCtx.Conversations.Upsert(ctx, conv); err != nil {
			logging.Errorf("[Chat] session=%s failed to persist conversation: %v", conv.SessionID, err)
		}
	}()
}
