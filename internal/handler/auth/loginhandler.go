package auth

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/lifeos/lifeosd/internal/httputil"
	"github.com/lifeos/lifeosd/internal/middleware"
	"github.com/lifeos/lifeosd/internal/svc"
	"github.com/lifeos/lifeosd/internal/types"
)

// Exchange the shared password for a bearer token
func LoginHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.LoginRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		password := svcCtx.Config.Auth.Password
		if password == "" || subtle.ConstantTimeCompare([]byte(req.Password), []byte(password)) != 1 {
			httputil.Unauthorized(w, "invalid password")
			return
		}

		expire := time.Duration(svcCtx.Config.Auth.AccessExpire) * time.Second
		token, err := middleware.CreateToken(svcCtx.Config.Auth.AccessSecret, expire)
		if err != nil {
			httputil.InternalError(w, "failed to create token")
			return
		}

		httputil.OkJSON(w, &types.LoginResponse{
			AccessToken: token,
			ExpiresIn:   svcCtx.Config.Auth.AccessExpire,
		})
	}
}
