package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/middleware"
)

const maxLoginBody = 64 << 10

var errTokensRequired = errors.New("server: token manager required")

type loginRequest struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	Identity  string `json:"identity"`
	ExpiresIn int64  `json:"expires_in"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)
	identity, secret, err := readCredentials(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_input", "malformed login request", nil)
		return
	}

	res, err := s.engine.Login(r.Context(), identity, secret)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "login_failed", "error", err)
		status := middleware.StatusFor(err)
		if status == http.StatusServiceUnavailable {
			middleware.WriteError(w, status, "unavailable", "login is temporarily unavailable", nil)
			return
		}
		middleware.WriteError(w, status, "internal_error", "internal error", nil)
		return
	}
	if res.Degraded {
		w.Header().Set("X-GoGuard-Degraded", "true")
	}

	switch res.Outcome {
	case goGuard.LoginAuthenticated:
		principalID := ""
		if res.Principal != nil {
			principalID = res.Principal.ID
		}
		token, err := s.tokens.Issue(res.Identity, principalID)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "token_issue_failed", "error", err)
			middleware.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, loginResponse{
			Token:     token,
			Identity:  res.Identity,
			ExpiresIn: int64(s.tokens.TTL().Seconds()),
		})

	case goGuard.LoginRejected:
		middleware.WriteError(w, http.StatusUnauthorized, "invalid_credentials",
			fmt.Sprintf("Invalid credentials. %d attempts remaining.", res.AttemptsRemaining),
			map[string]any{"attempts_remaining": res.AttemptsRemaining})

	case goGuard.LoginLockedOut:
		secs := res.SecondsRemaining()
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		middleware.WriteError(w, http.StatusTooManyRequests, "locked_out",
			fmt.Sprintf("Too many failed attempts. Try again in %d seconds.", secs),
			map[string]any{"seconds_remaining": secs})

	default:
		middleware.WriteError(w, http.StatusBadRequest, "invalid_input", "identity and secret are required", nil)
	}
}

// readCredentials accepts a JSON body or a form post. username and password
// are accepted as aliases.
func readCredentials(r *http.Request) (string, string, error) {
	var req loginRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", "", err
		}
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return "", "", err
		}
		req = loginRequest{
			Identity: r.PostForm.Get("identity"),
			Secret:   r.PostForm.Get("secret"),
			Username: r.PostForm.Get("username"),
			Password: r.PostForm.Get("password"),
		}
	default:
		return "", "", fmt.Errorf("unsupported content type %q", mediaType)
	}

	if req.Identity == "" {
		req.Identity = req.Username
	}
	if req.Secret == "" {
		req.Secret = req.Password
	}
	return req.Identity, req.Secret, nil
}
