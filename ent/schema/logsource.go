package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// LogSource holds the schema definition for the LogSource entity.
// One stream feeding a MonitoredSystem, used to match incoming events by
// host/program/source-ip/connector hints (§4.C discovery, §4.D ingest).
type LogSource struct {
	ent.Schema
}

// Fields of the LogSource.
func (LogSource) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("source_id").
			Unique().
			Immutable(),
		field.String("system_id").
			Immutable(),
		field.String("label").
			NotEmpty(),
		field.String("host_hint").
			Optional(),
		field.String("program_hint").
			Optional(),
		field.String("source_ip_hint").
			Optional(),
		field.String("connector_hint").
			Optional(),
	}
}

// Edges of the LogSource.
func (LogSource) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("system", MonitoredSystem.Type).
			Ref("log_sources").
			Field("system_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the LogSource.
func (LogSource) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("system_id"),
		index.Fields("system_id", "host_hint"),
		index.Fields("system_id", "program_hint"),
	}
}
