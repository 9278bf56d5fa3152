// Package auth guards the portfolio behind a single password.
package auth

import (
	"net/http"
	"strings"

	"github.com/dense-analysis/coinfolio/internal/route/util"
	"github.com/dense-analysis/coinfolio/internal/session"
	"github.com/dense-analysis/coinfolio/internal/template"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type LoginPageData struct {
	Invalid bool
}

// Handler serves the login routes. A Handler without a password hash lets
// every request through.
type Handler struct {
	sessions     *session.Store
	passwordHash []byte
	logger       *zap.Logger
}

func NewHandler(sessions *session.Store, passwordHash string, logger *zap.Logger) *Handler {
	return &Handler{
		sessions:     sessions,
		passwordHash: []byte(passwordHash),
		logger:       logger,
	}
}

// Enabled reports whether a password is required.
func (handler *Handler) Enabled() bool {
	return len(handler.passwordHash) > 0
}

func (handler *Handler) authenticated(request *http.Request) bool {
	return !handler.Enabled() || handler.sessions.Authenticated(request)
}

func (handler *Handler) renderLogin(writer http.ResponseWriter, request *http.Request, invalid bool) {
	if invalid {
		writer.WriteHeader(http.StatusUnauthorized)
	}

	if err := template.Render(template.Login, writer, LoginPageData{Invalid: invalid}); err != nil {
		handler.logger.Error("rendering login page failed", zap.Error(err))
	}
}

func (handler *Handler) HandleViewLoginForm(writer http.ResponseWriter, request *http.Request) {
	if handler.authenticated(request) {
		http.Redirect(writer, request, "/portfolio", http.StatusFound)

		return
	}

	handler.renderLogin(writer, request, false)
}

func (handler *Handler) HandleLogin(writer http.ResponseWriter, request *http.Request) {
	if !handler.Enabled() {
		http.Redirect(writer, request, "/portfolio", http.StatusFound)

		return
	}

	request.ParseForm()
	password := request.Form.Get("password")

	if len(password) == 0 || bcrypt.CompareHashAndPassword(handler.passwordHash, []byte(password)) != nil {
		handler.logger.Warn("failed login", zap.String("remote", request.RemoteAddr))
		handler.renderLogin(writer, request, true)

		return
	}

	if err := handler.sessions.Save(writer, request); err != nil {
		util.RespondInternalServerError(handler.logger, writer, request, err)

		return
	}

	http.Redirect(writer, request, "/portfolio", http.StatusFound)
}

func (handler *Handler) HandleLogout(writer http.ResponseWriter, request *http.Request) {
	if handler.Enabled() {
		if err := handler.sessions.Clear(writer, request); err != nil {
			handler.logger.Warn("clearing session failed", zap.Error(err))
		}
	}

	http.Redirect(writer, request, "/login", http.StatusFound)
}

// RequireLogin wraps routes which need an unlocked session. API requests
// are refused with 403 and page requests are sent to the login form.
func (handler *Handler) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if handler.authenticated(request) {
			next.ServeHTTP(writer, request)

			return
		}

		if strings.HasPrefix(request.URL.Path, "/api/") {
			util.RespondForbidden(writer)

			return
		}

		http.Redirect(writer, request, "/login", http.StatusFound)
	})
}
