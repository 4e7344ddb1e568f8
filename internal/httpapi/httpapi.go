// Package httpapi is the client-facing surface: the binary game client
// speaks a tiny HTTP protocol over POST / (login, then frame batches) and
// GET / (a landing page), matching the transport the teacher's own
// listeners expose for their respective wire clients.
package httpapi

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bnchfan/bancho-core/internal/account"
	"github.com/bnchfan/bancho-core/internal/bancho"
	"github.com/bnchfan/bancho-core/internal/chat"
	"github.com/bnchfan/bancho-core/internal/dispatch"
	"github.com/bnchfan/bancho-core/internal/protocol"
)

const protocolVersion = 19

// Server is the HTTP handler set. It owns no state of its own — every
// operation runs through Sessions/Chat/Dispatch, the same services the
// peer RPC surface exposes.
type Server struct {
	Sessions         bancho.SessionService
	Chat             chat.Service
	Dispatch         *dispatch.Handler
	Accounts         *account.Store
	AutoCreate       bool

	// AutoJoinChannels are joined on the caller's behalf right after login,
	// matching the config's public_channels auto_join flag.
	AutoJoinChannels []string
}

// Mux builds the http.ServeMux for this server.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/web/osu-error.php", s.handleOsuError)
	mux.HandleFunc("/web/osu-error", s.handleOsuError)
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleLanding(w, r)
	case http.MethodPost:
		s.handlePost(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "<html><head><title>bancho-core</title></head><body>"+
		"<p>this is a bancho server</p></body></html>")
}

// handleOsuError absorbs client-side error reports as a no-op 200, the way
// an unimplemented-but-expected route should behave rather than 404ing and
// prompting the client to retry.
func (s *Server) handleOsuError(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("osu-token")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("reading request body failed", "err", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if token == "" {
		s.handleLogin(w, r, body)
		return
	}
	s.handleFrames(w, token, body)
}

// handleFrames decodes a batch of client frames, dispatches each one (a
// per-frame error is logged and does not abort the batch, per the
// propagation rule in the error handling section), then responds with the
// caller's drained queue plus any new chat.
func (s *Server) handleFrames(w http.ResponseWriter, token string, body []byte) {
	userID, err := s.Sessions.CheckUserSessionExists(bancho.ByID(token))
	if err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	frames, err := protocol.DecodeFrames(body)
	if err != nil {
		slog.Warn("decoding inbound frame batch failed", "session_id", token, "err", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, f := range frames {
		ctx := dispatch.Context{
			SessionID: token,
			UserID:    userID,
			Opcode:    dispatch.ClientOpcode(f.Opcode),
			Payload:   f.Payload,
		}
		_ = s.Dispatch.Dispatch(ctx)
	}

	out, err := s.Sessions.DequeueBanchoPackets(bancho.TargetSessionID(token))
	if err != nil && err != bancho.ErrSessionNotExists {
		slog.Warn("dequeue failed", "session_id", token, "err", err)
	}
	chatOut, err := s.Chat.PullChatPackets(bancho.ByID(token))
	if err != nil && err != bancho.ErrSessionNotExists {
		slog.Warn("chat pull failed", "session_id", token, "err", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
	_, _ = w.Write(chatOut)
}

// loginRequest is the decoded newline-delimited login body.
type loginRequest struct {
	Username        string
	PasswordMD5     string
	ClientVersion   string
	UTCOffset       int8
	DisplayCity     bool
	OnlyFriendPM    bool
}

func parseLoginBody(body []byte) (loginRequest, error) {
	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	if len(lines) < 3 {
		return loginRequest{}, fmt.Errorf("expected 3 lines, got %d", len(lines))
	}

	fields := strings.Split(lines[2], "|")
	if len(fields) < 5 {
		return loginRequest{}, fmt.Errorf("expected 5 client-info fields, got %d", len(fields))
	}

	utcOffset, err := strconv.Atoi(fields[1])
	if err != nil {
		return loginRequest{}, fmt.Errorf("parsing utc offset: %w", err)
	}

	return loginRequest{
		Username:      lines[0],
		PasswordMD5:   lines[1],
		ClientVersion: fields[0],
		UTCOffset:     int8(utcOffset),
		DisplayCity:   fields[2] == "1",
		OnlyFriendPM:  fields[4] == "1",
	}, nil
}

// handleLogin authenticates, mints a session, and writes the exact frame
// sequence compatible clients expect: login reply, protocol version,
// privileges, own presence+stats, friends list, public channel list, then
// the channel-info-end sentinel (DESIGN.md Open Question 3).
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, body []byte) {
	req, err := parseLoginBody(body)
	if err != nil {
		slog.Warn("malformed login body", "err", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	acc, err := s.Accounts.Authenticate(r.Context(), req.Username, req.PasswordMD5)
	if err != nil {
		if s.AutoCreate {
			acc, err = s.Accounts.CreateAccount(r.Context(), req.Username, req.PasswordMD5)
		}
		if err != nil {
			slog.Info("login failed", "username", req.Username, "err", err)
			w.Header().Set("cho-token", "")
			w.Header().Set("cho-protocol", strconv.Itoa(protocolVersion))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(bancho.BuildNotificationFrame("login failed"))
			return
		}
	}

	sess, err := s.Sessions.CreateUserSession(bancho.CreateSessionDto{
		UserID:          acc.UserID,
		Username:        acc.Username,
		UsernameUnicode: acc.UsernameUnicode,
		Privileges:      acc.Privileges,
		ClientVersion:   req.ClientVersion,
		UTCOffset:       req.UTCOffset,
		DisplayCity:     req.DisplayCity,
	})
	if err != nil {
		slog.Warn("session creation failed", "username", req.Username, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	sess.SetBlockNonFriendDMs(req.OnlyFriendPM)

	if err := s.Chat.CreateQueue(acc.UserID); err != nil {
		slog.Warn("chat queue creation failed", "user_id", acc.UserID, "err", err)
	}

	for _, name := range s.AutoJoinChannels {
		if err := s.Chat.AddUserIntoChannel(chat.ByChannelName(name), acc.UserID, []chat.Platform{chat.PlatformBancho}); err != nil {
			slog.Warn("auto-join channel failed", "channel", name, "user_id", acc.UserID, "err", err)
		}
	}

	var out []byte
	out = append(out, bancho.BuildLoginReplyFrame(acc.UserID)...)
	out = append(out, bancho.BuildProtocolVersionFrame(protocolVersion)...)
	out = append(out, bancho.BuildPrivilegesFrame(acc.Privileges)...)
	out = append(out, bancho.BuildUserStatsFrame(sess)...)
	out = append(out, bancho.BuildUserPresenceFrame(sess)...)
	out = append(out, bancho.BuildFriendsListFrame(nil)...)

	channels, err := s.Chat.GetPublicChannels()
	if err != nil {
		slog.Warn("listing public channels failed", "err", err)
	}
	for _, ch := range channels {
		out = append(out, bancho.BuildChannelInfoFrame(ch.Name, ch.Description, ch.MemberCount)...)
	}
	out = append(out, bancho.BuildChannelInfoEndFrame()...)

	w.Header().Set("cho-token", sess.SessionID)
	w.Header().Set("cho-protocol", strconv.Itoa(protocolVersion))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
