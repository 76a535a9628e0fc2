package domain

import "strings"

// StageID names one generation stage. The IDs double as CLI subcommands.
type StageID string

const (
	StagePersonas      StageID = "personas"
	StageBiographies   StageID = "biographies"
	StageCompetencies  StageID = "competencies"
	StageTechSpecs     StageID = "tech_specs"
	StageTasksGoals    StageID = "tasks_goals"
	StageKnowledge     StageID = "knowledge"
	StageWorkflows     StageID = "workflows"
	StageAvatarPrompts StageID = "avatar_prompts"
	StageAvatarImages  StageID = "avatar_images"
	StageAvatarFiles   StageID = "avatar_files"
	StageAudit         StageID = "audit"
)

// StageOrder is the fixed execution order of a full cascade.
var StageOrder = []StageID{
	StagePersonas,
	StageBiographies,
	StageCompetencies,
	StageTechSpecs,
	StageTasksGoals,
	StageKnowledge,
	StageWorkflows,
	StageAvatarPrompts,
	StageAvatarImages,
	StageAvatarFiles,
	StageAudit,
}

func ParseStageID(raw string) (StageID, error) {
	id := StageID(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range StageOrder {
		if s == id {
			return id, nil
		}
	}
	return "", &UnknownStageError{Stage: raw}
}
