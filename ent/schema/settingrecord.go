package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// SettingRecord holds the schema definition for the SettingRecord entity:
// a DB-backed key/value setting grouped by category, consulted by
// ConfigStore.GetSetting. Siblings within one category are populated
// together on a cache miss (see pkg/dynconfig).
type SettingRecord struct {
	ent.Schema
}

// Fields of the SettingRecord.
func (SettingRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("setting_id").
			Unique().
			Immutable(),
		field.String("project_code").
			Comment("Owning project code, or \"\" for the global default"),
		field.String("category").
			Comment("Setting category, e.g. analysis, masking, concurrency"),
		field.String("key"),
		field.Text("value").
			Comment("Raw string value; callers parse to the expected type"),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the SettingRecord.
func (SettingRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("project_code", "category"),
		index.Fields("project_code", "category", "key").Unique(),
	}
}
