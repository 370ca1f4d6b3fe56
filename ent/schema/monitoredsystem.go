package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// MonitoredSystem holds the schema definition for the MonitoredSystem entity.
// A logical tenant: one system being watched by the ingest and scoring pipeline.
type MonitoredSystem struct {
	ent.Schema
}

// Fields of the MonitoredSystem.
func (MonitoredSystem) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("system_id").
			Unique().
			Immutable(),
		field.String("name").
			NotEmpty(),
		field.Text("description").
			Optional(),
		field.Int("retention_days").
			Optional().
			Nillable().
			Comment("nil falls back to default_retention_days in app_config"),
		field.Enum("event_source_kind").
			Values("relational", "external_search").
			Default("relational"),
		field.String("timezone_name").
			Optional().
			Comment("IANA name, e.g. America/New_York; empty if unset"),
		field.Int("tz_offset_minutes").
			Optional().
			Nillable().
			Comment("fixed UTC offset, used when timezone_name is empty"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the MonitoredSystem.
func (MonitoredSystem) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("log_sources", LogSource.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("windows", Window.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("findings", Finding.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the MonitoredSystem.
func (MonitoredSystem) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("name"),
	}
}
