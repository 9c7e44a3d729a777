package conversations

import (
	"net/http"

	"github.com/lifeos/lifeosd/internal/httputil"
	"github.com/lifeos/lifeosd/internal/logic/conversations"
	"github.com/lifeos/lifeosd/internal/svc"
)

// List stored conversations, most recent first
func ListConversationsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := httputil.QueryInt(r, "limit", 50)

		l := conversations.NewListConversationsLogic(r.Context(), svcCtx)
		resp, err := l.ListConversations(limit)
		if err != nil {
			httputil.InternalError(w, err.Error())
			return
		}
		httputil.OkJSON(w, resp)
	}
}
