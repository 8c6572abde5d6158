package domain

import (
	"errors"
	"fmt"
	"strings"
)

// LifeStage selects the prompt variant sent to the advisor agent.
type LifeStage string

const (
	LifeStageYoung      LifeStage = "young"
	LifeStageOlder      LifeStage = "older"
	LifeStageRetirement LifeStage = "retirement"
)

// ErrUnknownLifeStage is returned by ParseLifeStage for values outside the
// three supported stages.
var ErrUnknownLifeStage = errors.New("domain: unknown life stage")

var lifeStageDescriptors = map[LifeStage]string{
	LifeStageYoung:      "young worker (20s-30s)",
	LifeStageOlder:      "older worker (40s-60s, nearing retirement)",
	LifeStageRetirement: "retiree (60s+)",
}

var lifeStageLabels = map[LifeStage]string{
	LifeStageYoung:      "Young Worker (20s–30s)",
	LifeStageOlder:      "Older Worker (40s–60s)",
	LifeStageRetirement: "Retirement (60s+)",
}

// LifeStages lists the supported stages in display order.
func LifeStages() []LifeStage {
	return []LifeStage{LifeStageYoung, LifeStageOlder, LifeStageRetirement}
}

// ParseLifeStage validates untrusted input.
func ParseLifeStage(s string) (LifeStage, error) {
	stage := LifeStage(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := lifeStageDescriptors[stage]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLifeStage, s)
	}
	return stage, nil
}

// Descriptor returns the human-readable phrase substituted into the prompt.
// It panics for values that did not come from the declared constants.
func (s LifeStage) Descriptor() string {
	d, ok := lifeStageDescriptors[s]
	if !ok {
		panic(fmt.Sprintf("domain: life stage %q has no descriptor", string(s)))
	}
	return d
}

// Label is the selector text shown to the user.
func (s LifeStage) Label() string {
	l, ok := lifeStageLabels[s]
	if !ok {
		panic(fmt.Sprintf("domain: life stage %q has no label", string(s)))
	}
	return l
}
