package usecase

import (
	"fmt"

	"strategy-advisor/internal/domain"
)

const strategyPromptTemplate = "Provide clear, practical investment strategies for a %s. \n" +
	"Include key actions, recommended account types, asset allocation ideas, " +
	"and end with a disclaimer that this is general educational information only."

// BuildPrompt substitutes the stage descriptor into the strategy template.
func BuildPrompt(stage domain.LifeStage) string {
	return fmt.Sprintf(strategyPromptTemplate, stage.Descriptor())
}

func BuildPayload(stage domain.LifeStage) domain.Payload {
	return domain.Payload{Prompt: BuildPrompt(stage)}
}
