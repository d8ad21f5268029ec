package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/velvetfeed/velvetfeed-backend/api/middleware"
	"github.com/velvetfeed/velvetfeed-backend/internal/magiclink"
	"github.com/velvetfeed/velvetfeed-backend/pkg/db/models"
	pkgerrors "github.com/velvetfeed/velvetfeed-backend/pkg/errors"
)

type stubRedeemer struct {
	signIn *magiclink.SignIn
	err    error
	tokens []string
}

func (s *stubRedeemer) Redeem(ctx context.Context, token string) (*magiclink.SignIn, error) {
	s.tokens = append(s.tokens, token)
	if s.err != nil {
		return nil, s.err
	}
	return s.signIn, nil
}

type stubSignOuter struct {
	accessIDs []string
	emails    []string
	err       error
}

func (s *stubSignOuter) SignOut(ctx context.Context, accessID, email string) error {
	if s.err != nil {
		return s.err
	}
	s.accessIDs = append(s.accessIDs, accessID)
	s.emails = append(s.emails, email)
	return nil
}

func TestAuthCallback_ReturnsTokenPair(t *testing.T) {
	userID := uuid.New()
	svc := &stubRedeemer{signIn: &magiclink.SignIn{
		User:         &models.User{ID: userID, Email: "sub@x.com"},
		AccessToken:  "jwt-token",
		RefreshToken: "refresh-token",
		AccessID:     "sess-1",
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/callback?token=tok-1", nil)
	rec := httptest.NewRecorder()
	AuthCallback(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if len(svc.tokens) != 1 || svc.tokens[0] != "tok-1" {
		t.Fatalf("redeemed tokens = %v", svc.tokens)
	}
	var body struct {
		Data struct {
			Token        string `json:"token"`
			RefreshToken string `json:"refreshToken"`
			User         struct {
				ID    string `json:"id"`
				Email string `json:"email"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Token != "jwt-token" || body.Data.User.Email != "sub@x.com" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestAuthCallback_InvalidToken(t *testing.T) {
	svc := &stubRedeemer{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired sign-in link")}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/callback?token=bad", nil)
	rec := httptest.NewRecorder()
	AuthCallback(svc, nil)(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthLogout_RevokesContextSession(t *testing.T) {
	svc := &stubSignOuter{}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), uuid.NewString(), "sub@x.com", "sess-9"))
	rec := httptest.NewRecorder()
	AuthLogout(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if len(svc.accessIDs) != 1 || svc.accessIDs[0] != "sess-9" {
		t.Fatalf("revoked = %v", svc.accessIDs)
	}
	if svc.emails[0] != "sub@x.com" {
		t.Fatalf("emails = %v", svc.emails)
	}
}

func TestAuthLogout_MissingSession(t *testing.T) {
	svc := &stubSignOuter{err: errors.New("should not be called")}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	AuthLogout(svc, nil)(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

type stubLinkSender struct {
	emails []string
	err    error
}

func (s *stubLinkSender) SendLink(ctx context.Context, email string) error {
	if s.err != nil {
		return s.err
	}
	s.emails = append(s.emails, email)
	return nil
}

func TestSendLink_GenericSuccessMessage(t *testing.T) {
	svc := &stubLinkSender{}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/access/send-link", strings.NewReader(`{"email":"sub@x.com"}`))
	rec := httptest.NewRecorder()
	SendLink(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if len(svc.emails) != 1 {
		t.Fatalf("send calls = %v", svc.emails)
	}
}

func TestSendLink_IneligibleIs403(t *testing.T) {
	svc := &stubLinkSender{err: pkgerrors.New(pkgerrors.CodeForbidden, "sign-in failed")}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/access/send-link", strings.NewReader(`{"email":"x@x.com"}`))
	rec := httptest.NewRecorder()
	SendLink(svc, nil)(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestSendLink_MalformedBody(t *testing.T) {
	svc := &stubLinkSender{}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/access/send-link", strings.NewReader(`{"email":"not-an-email"}`))
	rec := httptest.NewRecorder()
	SendLink(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(svc.emails) != 0 {
		t.Fatal("invalid body must not reach the service")
	}
}
