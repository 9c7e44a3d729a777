package agents

import (
	"net/http"

	"github.com/lifeos/lifeosd/internal/httputil"
	"github.com/lifeos/lifeosd/internal/svc"
	"github.com/lifeos/lifeosd/internal/types"
)

// List the loaded agent definitions
func ListAgentsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loaded := svcCtx.Agents.List()

		resp := &types.AgentListResponse{
			Agents: make([]types.AgentDefinition, 0, len(loaded)),
		}
		for _, agent := range loaded {
			resp.Agents = append(resp.Agents, types.AgentDefinition{
				Name:        agent.Name,
				Description: agent.Description,
				Tier:        agent.Tier,
			})
		}
		httputil.OkJSON(w, resp)
	}
}
