// Package copywriter produces proposal copy, meeting analyses and report
// insights with an LLM agent that answers in JSON.
package copywriter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

// Completer answers one prompt with text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Agent runs a single tool-less ADK agent, one throwaway session per call.
type Agent struct {
	runner         *runner.Runner
	sessionService session.Service
	appName        string
	runMu          sync.Mutex
}

// NewAgent creates an agent named name that follows instruction.
func NewAgent(llm model.LLM, name, description, instruction string) (*Agent, error) {
	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        name,
		Model:       llm,
		Description: description,
		Instruction: instruction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s agent: %w", name, err)
	}

	appName := strings.ToLower(name)
	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s runner: %w", name, err)
	}

	return &Agent{runner: r, sessionService: sessionService, appName: appName}, nil
}

func (a *Agent) Complete(ctx context.Context, prompt string) (string, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	userID := a.appName
	sessionID := uuid.NewString()
	if _, err := a.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   a.appName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return "", fmt.Errorf("%s: create session: %w", a.appName, err)
	}
	defer func() {
		_ = a.sessionService.Delete(ctx, &session.DeleteRequest{
			AppName:   a.appName,
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	msg := &genai.Content{Role: "user", Parts: []*genai.Part{{Text: prompt}}}

	var out strings.Builder
	for event, err := range a.runner.Run(ctx, userID, sessionID, msg, agent.RunConfig{StreamingMode: agent.StreamingModeNone}) {
		if err != nil {
			return "", fmt.Errorf("%s: run failed: %w", a.appName, err)
		}
		if event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			out.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(out.String()), nil
}
