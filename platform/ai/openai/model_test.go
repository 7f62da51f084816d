package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func TestChatModel_SendsSystemInstructionAndJSONMode(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}],"usage":{"total_tokens":12}}`)
	}))
	defer srv.Close()

	m := NewModel(Config{APIKey: "sk-test", BaseURL: srv.URL})
	temp := float32(0.3)
	req := &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText("summarise", genai.RoleUser)},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("you are terse", genai.RoleUser),
			Temperature:       &temp,
			ResponseMIMEType:  "application/json",
		},
	}

	var text string
	for resp, err := range m.GenerateContent(context.Background(), req, false) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		text = resp.Content.Parts[0].Text
	}

	if text != `{"ok":true}` {
		t.Fatalf("expected JSON content, got %q", text)
	}
	if got.Model != "gpt-4o" {
		t.Fatalf("expected default model gpt-4o, got %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "summarise" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
	if got.Temperature == nil || *got.Temperature < 0.29 || *got.Temperature > 0.31 {
		t.Fatalf("expected temperature 0.3, got %v", got.Temperature)
	}
	if got.ResponseFormat["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", got.ResponseFormat)
	}
}

func TestChatModel_SurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	m := NewModel(Config{APIKey: "k", BaseURL: srv.URL})
	for _, err := range m.GenerateContent(context.Background(), &model.LLMRequest{}, false) {
		if err == nil || !strings.Contains(err.Error(), "slow down") {
			t.Fatalf("expected rate limit error, got %v", err)
		}
	}
}

func TestTranscriber_UploadsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("model") != "whisper-1" {
			t.Errorf("expected whisper-1, got %q", r.FormValue("model"))
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file: %v", err)
		} else {
			defer file.Close()
			if header.Filename != "call.mp3" {
				t.Errorf("unexpected file name %q", header.Filename)
			}
		}
		_, _ = io.WriteString(w, `{"text":"hello there"}`)
	}))
	defer srv.Close()

	tr := NewTranscriber(Config{APIKey: "k", BaseURL: srv.URL})
	text, err := tr.Transcribe(context.Background(), "call.mp3", strings.NewReader("ID3"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello there" {
		t.Fatalf("expected transcript, got %q", text)
	}
}
