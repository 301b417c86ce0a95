package models

import (
	"strings"
	"testing"

	"github.com/comptaline/as400-ai-backend/pkg/agent"
)

func TestSystemPromptInterpolatesContext(t *testing.T) {
	got := systemPrompt(ModeAnthropic, agent.PromptContext{UserID: "u-42", CompanyID: "co-7"})
	if !strings.Contains(got, "User ID: u-42") || !strings.Contains(got, "Company ID: co-7") {
		t.Fatalf("context not interpolated:\n%s", got)
	}
	if strings.Contains(got, "%USER%") || strings.Contains(got, "%COMPANY%") {
		t.Fatal("placeholder left in prompt")
	}
}

func TestSystemPromptDefaultsMissingContext(t *testing.T) {
	got := systemPrompt(ModeThesys, agent.PromptContext{})
	if strings.Count(got, "non fourni") != 2 {
		t.Fatalf("missing context not defaulted:\n%s", got)
	}
}

func TestSystemPromptVariants(t *testing.T) {
	thesys := systemPrompt(ModeThesys, agent.PromptContext{})
	if !strings.Contains(thesys, "Thesys C1 activé") {
		t.Fatal("thesys prompt lacks generative-UI instructions")
	}
	claude := systemPrompt(ModeAnthropic, agent.PromptContext{})
	if strings.Contains(claude, "Thesys C1 activé") {
		t.Fatal("anthropic prompt carries thesys instructions")
	}
	if !strings.Contains(claude, "émojis") {
		t.Fatal("anthropic prompt lacks emoji instruction")
	}

	for _, prompt := range []string{thesys, claude} {
		for _, tool := range []string{"query_database", "analyze_account_balance", "detect_anomalies"} {
			if !strings.Contains(prompt, tool) {
				t.Errorf("prompt does not name tool %s", tool)
			}
		}
		if !strings.Contains(prompt, "Réponds toujours en français") {
			t.Error("prompt lacks the French-language instruction")
		}
	}
}
