package conversations

import (
	"context"

	"github.com/lifeos/lifeosd/internal/svc"
	"github.com/lifeos/lifeosd/internal/types"
)

type GetMessagesLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetMessagesLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetMessagesLogic {
	return &GetMessagesLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetMessagesLogic) GetMessages(req *types.ConversationMessagesRequest) (*types.ConversationMessagesResponse, error) {
	messages, err := l.svcCtx.Conversations.Messages(l.ctx, req.SessionId, req.Limit)
	if err != nil {
		return nil, err
	}

	resp := &types.ConversationMessagesResponse{
		SessionId: req.SessionId,
		Messages:  make([]types.ChatMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, types.ChatMessage{
			Role:        msg.Role,
			Content:     msg.Content,
			ToolCalls:   msg.ToolCalls,
			ToolResults: msg.ToolResults,
		})
	}
	return resp, nil
}
