package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// PromptRecord holds the schema definition for the PromptRecord entity:
// a DB-backed, versioned prompt template body consulted by ConfigStore.GetPrompt.
type PromptRecord struct {
	ent.Schema
}

// Fields of the PromptRecord.
func (PromptRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("prompt_id").
			Unique().
			Immutable(),
		field.String("project_code").
			Comment("Owning project code, or \"\" for the global default"),
		field.String("name").
			Comment("Prompt key, e.g. parameter_extraction, planning, analyze_entry"),
		field.Int("version").
			Default(1),
		field.Text("body").
			Comment("Named-placeholder template body, rendered by pkg/prompttpl"),
		field.Bool("active").
			Default(true),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the PromptRecord.
func (PromptRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("project_code", "name", "active"),
		index.Fields("project_code", "name", "version").Unique(),
	}
}
