package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ProjectEnvironment holds the schema definition for the ProjectEnvironment
// entity: one deployment target (e.g. "prod", "staging") within a Project,
// carrying the backend routing info the orchestrator needs for COLLECT_TRACES.
type ProjectEnvironment struct {
	ent.Schema
}

// Fields of the ProjectEnvironment.
func (ProjectEnvironment) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("environment_id").
			Unique().
			Immutable(),
		field.String("name").
			Comment("e.g. prod, staging, dev"),
		field.Enum("backend_kind").
			Values("file", "remote").
			Default("file"),
		field.String("backend_root").
			Optional().
			Comment("Filesystem root for the file backend"),
		field.String("backend_url").
			Optional().
			Comment("Base URL for the remote backend"),
		field.Int64("max_log_bytes").
			Optional().
			Comment("Per-environment override of the global byte cap"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the ProjectEnvironment.
func (ProjectEnvironment) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("project", Project.Type).
			Ref("environments").
			Unique().
			Required(),
	}
}

// Indexes of the ProjectEnvironment.
func (ProjectEnvironment) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("name"),
	}
}
