package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
)

// AppConfig holds the schema definition for the AppConfig entity.
// A flat key/value store for runtime-tunable settings (§6): API credentials,
// prompts, criterion guides, pipeline/dashboard/retention/privacy config.
// Keyed on the config key itself so writes are a plain upsert.
type AppConfig struct {
	ent.Schema
}

// Fields of the AppConfig.
func (AppConfig) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("config_key").
			Unique().
			Immutable().
			Comment("e.g. openai_api_key, pipeline_config, criterion_guide_it_security"),
		field.JSON("value", json.RawMessage(nil)).
			Comment("JSON-encoded config value, shape depends on key"),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Annotations pins the table name to the spec's singular "app_config" (§6),
// overriding ent's default pluralization.
func (AppConfig) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "app_config"},
	}
}
