package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"strategy-advisor/internal/domain"
)

func TestBuildPrompt_SubstitutesOnlyOwnDescriptor(t *testing.T) {
	for _, stage := range domain.LifeStages() {
		t.Run(string(stage), func(t *testing.T) {
			prompt := BuildPrompt(stage)
			require.Contains(t, prompt, "investment strategies for a "+stage.Descriptor()+".")
			require.Contains(t, prompt, "general educational information only")
			for _, other := range domain.LifeStages() {
				if other != stage {
					require.NotContains(t, prompt, other.Descriptor())
				}
			}
		})
	}
}

func TestBuildPayload(t *testing.T) {
	p := BuildPayload(domain.LifeStageOlder)
	require.Equal(t, BuildPrompt(domain.LifeStageOlder), p.Prompt)
}
