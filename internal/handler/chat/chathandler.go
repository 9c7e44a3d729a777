package chat

import (
	"errors"
	"net/http"

	"github.com/lifeos/lifeosd/internal/httputil"
	"github.com/lifeos/lifeosd/internal/logic/chat"
	"github.com/lifeos/lifeosd/internal/svc"
	"github.com/lifeos/lifeosd/internal/types"
)

// Run one conversation turn
func ChatHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ChatRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		l := chat.NewChatLogic(r.Context(), svcCtx)
		resp, err := l.Chat(&req)
		if err != nil {
			// Validation is the caller's fault; everything else, including
			// an exhausted fallback chain, is ours.
			if errors.Is(err, chat.ErrInvalidRequest) {
				httputil.Error(w, err)
			} else {
				httputil.InternalError(w, err.Error())
			}
			return
		}
		httputil.OkJSON(w, resp)
	}
}
