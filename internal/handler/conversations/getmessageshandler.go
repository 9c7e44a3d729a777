package conversations

import (
	"net/http"

	"github.com/lifeos/lifeosd/internal/httputil"
	"github.com/lifeos/lifeosd/internal/logic/conversations"
	"github.com/lifeos/lifeosd/internal/svc"
	"github.com/lifeos/lifeosd/internal/types"
)

// Fetch the stored transcript for a session
func GetMessagesHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ConversationMessagesRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if req.SessionId == "" {
			httputil.NotFound(w, "")
			return
		}

		l := conversations.NewGetMessagesLogic(r.Context(), svcCtx)
		resp, err := l.GetMessages(&req)
		if err != nil {
			httputil.InternalError(w, err.Error())
			return
		}
		httputil.OkJSON(w, resp)
	}
}
