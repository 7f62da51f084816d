package copywriter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
)

// ErrNoJSON is returned when a reply holds no JSON object.
var ErrNoJSON = errors.New("model reply contains no JSON object")

// Copywriter groups the three writing tasks.
type Copywriter struct {
	proposals Completer
	analyst   Completer
	insights  Completer
}

// New builds the three agents on one model.
func New(llm model.LLM, agencyName string) (*Copywriter, error) {
	proposals, err := NewAgent(llm, "ProposalWriter", "Writes client proposals.", proposalInstruction(agencyName))
	if err != nil {
		return nil, err
	}
	analyst, err := NewAgent(llm, "MeetingAnalyst", "Analyzes meeting transcripts.", analysisInstruction)
	if err != nil {
		return nil, err
	}
	insights, err := NewAgent(llm, "ReportAnalyst", "Writes monthly report insights.", insightsInstruction)
	if err != nil {
		return nil, err
	}
	return NewWithCompleters(proposals, analyst, insights), nil
}

// NewWithCompleters wires arbitrary completers, e.g. fakes in tests.
func NewWithCompleters(proposals, analyst, insights Completer) *Copywriter {
	return &Copywriter{proposals: proposals, analyst: analyst, insights: insights}
}

// WriteProposal drafts the proposal sections.
func (c *Copywriter) WriteProposal(ctx context.Context, brief ProposalBrief) (ProposalContent, error) {
	var content ProposalContent
	if err := c.ask(ctx, c.proposals, brief.prompt(), &content); err != nil {
		return ProposalContent{}, fmt.Errorf("write proposal: %w", err)
	}
	return content, nil
}

// AnalyzeTranscript extracts the structured analysis of a call.
func (c *Copywriter) AnalyzeTranscript(ctx context.Context, transcript string) (MeetingAnalysis, error) {
	var analysis MeetingAnalysis
	prompt := "Please analyze this meeting transcript and provide a summary:\n\n" + transcript
	if err := c.ask(ctx, c.analyst, prompt, &analysis); err != nil {
		return MeetingAnalysis{}, fmt.Errorf("analyze transcript: %w", err)
	}
	return analysis, nil
}

// ReportInsights summarizes a client's month.
func (c *Copywriter) ReportInsights(ctx context.Context, facts ReportFacts) (ReportInsights, error) {
	var insights ReportInsights
	if err := c.ask(ctx, c.insights, facts.prompt(), &insights); err != nil {
		return ReportInsights{}, fmt.Errorf("report insights: %w", err)
	}
	return insights, nil
}

func (c *Copywriter) ask(ctx context.Context, completer Completer, prompt string, out any) error {
	reply, err := completer.Complete(ctx, prompt)
	if err != nil {
		return err
	}
	return DecodeJSON(reply, out)
}

// DecodeJSON reads the outermost JSON object in reply, ignoring markdown
// fences or prose around it.
func DecodeJSON(reply string, out any) error {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), out); err != nil {
		return fmt.Errorf("decode model reply: %w", err)
	}
	return nil
}
