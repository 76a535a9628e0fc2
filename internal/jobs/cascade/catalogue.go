package cascade

import "github.com/yungbote/personaforge-backend/internal/domain"

// StageInfo describes a stage for discovery endpoints and the CLI.
type StageInfo struct {
	ID          domain.StageID `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Order       int            `json:"order"`
}

var stageInfo = map[domain.StageID]StageInfo{
	domain.StagePersonas:      {Name: "Personas", Description: "Synthesize the company roster: executives, specialists and assistants."},
	domain.StageBiographies:   {Name: "Biographies", Description: "Write a professional biography per persona (LLM with template fallback)."},
	domain.StageCompetencies:  {Name: "Competencies", Description: "Technical, soft and tool competencies from the role bucket."},
	domain.StageTechSpecs:     {Name: "Tech specs", Description: "Technology stack, tools, platforms and access level per persona."},
	domain.StageTasksGoals:    {Name: "Tasks and goals", Description: "Recurring tasks and measurable goals per persona."},
	domain.StageKnowledge:     {Name: "Knowledge", Description: "RAG knowledge snippets contextualised for the company."},
	domain.StageWorkflows:     {Name: "Workflows", Description: "N8N workflow descriptions with node lists."},
	domain.StageAvatarPrompts: {Name: "Avatar prompts", Description: "Image prompts built from persona attributes."},
	domain.StageAvatarImages:  {Name: "Avatar images", Description: "Generate avatar images and upload them to object storage."},
	domain.StageAvatarFiles:   {Name: "Avatar files", Description: "Download avatar images into the local media directory."},
	domain.StageAudit:         {Name: "Audit", Description: "Presence checks over every generated record kind."},
}

// Catalogue lists every stage in execution order.
func Catalogue() []StageInfo {
	out := make([]StageInfo, 0, len(domain.StageOrder))
	for i, id := range domain.StageOrder {
		info := stageInfo[id]
		info.ID = id
		info.Order = i + 1
		out = append(out, info)
	}
	return out
}
