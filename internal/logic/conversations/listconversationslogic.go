package conversations

import (
	"context"
	"time"

	"github.com/lifeos/lifeosd/internal/svc"
	"github.com/lifeos/lifeosd/internal/types"
)

type ListConversationsLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewListConversationsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ListConversationsLogic {
	return &ListConversationsLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *ListConversationsLogic) ListConversations(limit int) (*types.ConversationListResponse, error) {
	records, err := l.svcCtx.Conversations.List(l.ctx, limit)
	if err != nil {
		return nil, err
	}

	resp := &types.ConversationListResponse{
		Conversations: make([]types.Conversation, 0, len(records)),
	}
	for _, rec := range records {
		resp.Conversations = append(resp.Conversations, types.Conversation{
			SessionId:    rec.SessionID,
			Title:        rec.Title,
			Tier:         rec.Tier,
			MessageCount: rec.MessageCount,
			CreatedAt:    rec.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:    rec.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return resp, nil
}
