package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAPIClient_GetUpdatesAdvancesOffset(t *testing.T) {
	var offsets []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /bottest-token/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("offset"))
		if len(offsets) == 1 {
			respondJSON(w, `{"ok":true,"result":[{"update_id":7},{"update_id":9}]}`)
			return
		}
		respondJSON(w, `{"ok":true,"result":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api := newAPIClient(srv.Client(), srv.URL, "test-token")

	updates, next, err := api.getUpdates(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("first poll failed: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if next != 10 {
		t.Fatalf("expected next offset 10, got %d", next)
	}
	if offsets[0] != "" {
		t.Fatalf("expected no offset on the first poll, got %q", offsets[0])
	}

	updates, next, err = api.getUpdates(context.Background(), next, time.Second)
	if err != nil {
		t.Fatalf("second poll failed: %v", err)
	}
	if len(updates) != 0 {
		t.Fatalf("expected an empty batch, got %d updates", len(updates))
	}
	if next != 10 {
		t.Fatalf("expected the offset to stay at 10, got %d", next)
	}
	if offsets[1] != "10" {
		t.Fatalf("expected offset 10 on the second poll, got %q", offsets[1])
	}
}

func TestAPIClient_PollTimeoutErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("get updates: %w", context.DeadlineExceeded), true},
		{"message match", errors.New(`Get "https://api.telegram.org": context deadline exceeded`), true},
		{"client timeout", errors.New("Client.Timeout exceeded while awaiting headers"), true},
		{"other", errors.New("connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isPollTimeoutError(tc.err); got != tc.want {
				t.Fatalf("expected %v for %v, got %v", tc.want, tc.err, got)
			}
		})
	}
}

func TestAPIClient_DownloadFileEnforcesLimit(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 64)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /file/bottest-token/photos/file_1.bin", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api := newAPIClient(srv.Client(), srv.URL, "test-token")

	data, err := api.downloadFile(context.Background(), "/photos/file_1.bin", 64)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("expected %d payload bytes, got %d", len(payload), len(data))
	}

	if _, err := api.downloadFile(context.Background(), "photos/file_1.bin", 16); err == nil || !strings.Contains(err.Error(), "file too large") {
		t.Fatalf("expected a size limit error, got %v", err)
	}
}

func TestAPIClient_GetFileRequiresPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /bottest-token/getFile", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("file_id") {
		case "good":
			respondJSON(w, `{"ok":true,"result":{"file_id":"good","file_path":"photos/file_1.png","file_size":3}}`)
		case "no-path":
			respondJSON(w, `{"ok":true,"result":{"file_id":"no-path"}}`)
		default:
			respondJSON(w, `{"ok":false,"error_code":400,"description":"file not found"}`)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api := newAPIClient(srv.Client(), srv.URL, "test-token")

	meta, err := api.getFile(context.Background(), "good")
	if err != nil {
		t.Fatalf("getFile failed: %v", err)
	}
	if meta.FilePath != "photos/file_1.png" {
		t.Fatalf("expected a file path, got %q", meta.FilePath)
	}

	if _, err := api.getFile(context.Background(), "no-path"); err == nil || !strings.Contains(err.Error(), "missing file_path") {
		t.Fatalf("expected a missing file_path error, got %v", err)
	}
	if _, err := api.getFile(context.Background(), "unknown"); err == nil || !strings.Contains(err.Error(), "ok=false") {
		t.Fatalf("expected an ok=false error, got %v", err)
	}
	if _, err := api.getFile(context.Background(), "  "); err == nil {
		t.Fatal("expected an error for a blank file id")
	}
}

func TestAPIClient_SendDocumentBuildsMultipart(t *testing.T) {
	type captured struct {
		chatID   string
		replyTo  string
		caption  string
		filename string
		data     []byte
	}
	var got captured

	mux := http.NewServeMux()
	mux.HandleFunc("POST /bottest-token/sendDocument", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			respondJSON(w, `{"ok":false}`)
			return
		}
		got.chatID = r.FormValue("chat_id")
		got.replyTo = r.FormValue("reply_to_message_id")
		got.caption = r.FormValue("caption")

		part, header, err := r.FormFile("document")
		if err != nil {
			t.Errorf("form file: %v", err)
			respondJSON(w, `{"ok":false}`)
			return
		}
		defer part.Close()
		got.filename = header.Filename
		got.data, _ = io.ReadAll(part)
		respondJSON(w, `{"ok":true,"result":{}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api := newAPIClient(srv.Client(), srv.URL, "test-token")

	payload := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A}
	if err := api.sendDocument(context.Background(), 42, 7, "img.png", payload, "applied options:\nnegate"); err != nil {
		t.Fatalf("sendDocument failed: %v", err)
	}
	if got.chatID != "42" || got.replyTo != "7" {
		t.Fatalf("expected chat 42 reply 7, got chat %q reply %q", got.chatID, got.replyTo)
	}
	if got.caption != "applied options:\nnegate" {
		t.Fatalf("unexpected caption %q", got.caption)
	}
	if got.filename != "img.png" {
		t.Fatalf("expected filename img.png, got %q", got.filename)
	}
	if !bytes.Equal(got.data, payload) {
		t.Fatalf("expected %d document bytes, got %d", len(payload), len(got.data))
	}
}

func TestAPIClient_ReportsHTTPAndAPIErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /botbad-token/getMe", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	})
	mux.HandleFunc("POST /botbad-token/sendMessage", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, `{"ok":false,"error_code":400,"description":"Bad Request"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api := newAPIClient(srv.Client(), srv.URL, "bad-token")

	if _, err := api.getMe(context.Background()); err == nil || !strings.Contains(err.Error(), "telegram http 401") {
		t.Fatalf("expected an http 401 error, got %v", err)
	}
	if err := api.sendMessage(context.Background(), 1, 0, "hi"); err == nil || !strings.Contains(err.Error(), "sendMessage: ok=false") {
		t.Fatalf("expected an ok=false error, got %v", err)
	}
}

func respondJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}
