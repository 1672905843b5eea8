package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ContextRule holds the schema definition for the ContextRule entity: a
// project-scoped directive the VerifyAgent consults when checking whether
// collected log context is sufficient to answer the question asked of it.
type ContextRule struct {
	ent.Schema
}

// Fields of the ContextRule.
func (ContextRule) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("rule_id").
			Unique().
			Immutable(),
		field.String("name"),
		field.Text("description").
			Optional(),
		field.Enum("kind").
			Values("require_trace_match", "require_time_window", "require_field_present").
			Comment("What the rule checks for during VERIFY"),
		field.JSON("params", map[string]interface{}{}).
			Optional().
			Comment("Kind-specific parameters, e.g. {\"field\": \"account_id\"}"),
		field.Int("priority").
			Default(0),
		field.Bool("enabled").
			Default(true),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the ContextRule.
func (ContextRule) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("project", Project.Type).
			Ref("context_rules").
			Unique().
			Required(),
	}
}

// Indexes of the ContextRule.
func (ContextRule) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("kind"),
		index.Fields("enabled", "priority"),
	}
}
