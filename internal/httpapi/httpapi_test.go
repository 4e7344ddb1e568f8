package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bnchfan/bancho-core/internal/bancho"
	"github.com/bnchfan/bancho-core/internal/chat"
	"github.com/bnchfan/bancho-core/internal/dispatch"
	"github.com/bnchfan/bancho-core/internal/protocol"
)

// newTestServer wires the same Session/Chat/Dispatch stack cmd/bancho/main.go
// assembles in production. Accounts is left nil: login needs a real
// Postgres-backed account.Store, so it is exercised separately (see
// DESIGN.md) and every test here drives handleFrames/handleLanding/
// handleOsuError instead of handlePost's login branch.
func newTestServer() *Server {
	sessReg := bancho.NewRegistry()
	chanReg := chat.NewRegistry()
	sessions := bancho.NewSessionServiceLocal(sessReg, chanReg)
	chatSvc := chat.NewServiceLocal(chanReg, sessions)
	return &Server{
		Sessions: sessions,
		Chat:     chatSvc,
		Dispatch: dispatch.NewHandler(sessions, chatSvc),
	}
}

func TestHandleLandingServesHTML(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Fatalf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), "bancho-core") {
		t.Fatalf("landing page body missing expected content: %q", rec.Body.String())
	}
}

func TestHandleOsuErrorAbsorbsReports(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/web/osu-error.php", strings.NewReader("some=report"))

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /web/osu-error.php status = %d, want 200", rec.Code)
	}
}

func TestHandleRootRejectsOtherMethods(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/", nil)

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT / status = %d, want 405", rec.Code)
	}
}

func TestHandleFramesUnknownTokenReturns200WithEmptyBody(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("irrelevant"))
	req.Header.Set("osu-token", "not-a-real-session")

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("an unknown token should drop the batch silently, got body %v", rec.Body.Bytes())
	}
}

func TestHandleFramesMalformedBodyReturns200WithEmptyBody(t *testing.T) {
	s := newTestServer()
	sess, err := s.Sessions.CreateUserSession(bancho.CreateSessionDto{UserID: 1, Username: "alice"})
	if err != nil {
		t.Fatalf("CreateUserSession: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("\x01\x00\x02"))
	req.Header.Set("osu-token", sess.SessionID)

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleFramesDispatchesAndDrainsQueue(t *testing.T) {
	s := newTestServer()
	a, err := s.Sessions.CreateUserSession(bancho.CreateSessionDto{UserID: 1, Username: "alice"})
	if err != nil {
		t.Fatalf("CreateUserSession: %v", err)
	}
	b, err := s.Sessions.CreateUserSession(bancho.CreateSessionDto{UserID: 2, Username: "bob"})
	if err != nil {
		t.Fatalf("CreateUserSession: %v", err)
	}

	w := protocol.NewWriter(16)
	w.WriteByte(byte(bancho.StatusPlaying))
	w.WriteString("map")
	w.WriteString("abcd")
	w.WriteUint32(0)
	w.WriteByte(byte(bancho.ModeStandard))
	w.WriteInt32(0)
	body := protocol.BuildFrame(uint16(dispatch.OpChangeAction), w.Bytes())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(body)))
	req.Header.Set("osu-token", a.SessionID)

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	aFrames, err := protocol.DecodeFrames(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("DecodeFrames on the response body: %v", err)
	}
	aHasStats := false
	for _, f := range aFrames {
		if f.Opcode == uint16(bancho.ServerUpdateStats) {
			aHasStats = true
		}
	}
	if !aHasStats {
		t.Fatalf("a status change broadcasts to every live session including the caller, got %+v", aFrames)
	}

	bFrames, err := protocol.DecodeFrames(b.Queue.DrainAll())
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	found := false
	for _, f := range bFrames {
		if f.Opcode == uint16(bancho.ServerUpdateStats) {
			found = true
		}
	}
	if !found {
		t.Fatalf("bob should have received a stats broadcast from alice's action change, got %+v", bFrames)
	}
}

func TestHandleFramesUnknownOpcodeIsIgnoredNotFatal(t *testing.T) {
	s := newTestServer()
	sess, err := s.Sessions.CreateUserSession(bancho.CreateSessionDto{UserID: 1, Username: "alice"})
	if err != nil {
		t.Fatalf("CreateUserSession: %v", err)
	}
	body := protocol.BuildFrame(0xFFFF, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(body)))
	req.Header.Set("osu-token", sess.SessionID)

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("an unrecognized opcode should not fail the batch, status = %d", rec.Code)
	}
}

func TestParseLoginBody(t *testing.T) {
	body := "cookiezi\nmd5hash\nb20231031.1|6|1|0|abcdef|1\n"
	req, err := parseLoginBody([]byte(body))
	if err != nil {
		t.Fatalf("parseLoginBody: %v", err)
	}
	if req.Username != "cookiezi" || req.PasswordMD5 != "md5hash" {
		t.Fatalf("parseLoginBody = %+v, want username/password parsed from the first two lines", req)
	}
	if req.ClientVersion != "b20231031.1" {
		t.Fatalf("ClientVersion = %q, want b20231031.1", req.ClientVersion)
	}
	if req.UTCOffset != 6 {
		t.Fatalf("UTCOffset = %d, want 6", req.UTCOffset)
	}
	if !req.DisplayCity {
		t.Fatal("DisplayCity should be true when the third client-info field is 1")
	}
	if !req.OnlyFriendPM {
		t.Fatal("OnlyFriendPM should be true when the fifth client-info field is 1")
	}
}

func TestParseLoginBodyTooFewLines(t *testing.T) {
	if _, err := parseLoginBody([]byte("onlyoneline")); err == nil {
		t.Fatal("parseLoginBody with fewer than 3 lines should error")
	}
}

func TestParseLoginBodyTooFewClientFields(t *testing.T) {
	body := "user\npass\nonly|two\n"
	if _, err := parseLoginBody([]byte(body)); err == nil {
		t.Fatal("parseLoginBody with fewer than 5 client-info fields should error")
	}
}

func TestParseLoginBodyBadUTCOffset(t *testing.T) {
	body := "user\npass\nver|notanumber|0|x|0\n"
	if _, err := parseLoginBody([]byte(body)); err == nil {
		t.Fatal("parseLoginBody with a non-numeric utc offset should error")
	}
}
