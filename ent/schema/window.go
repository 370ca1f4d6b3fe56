package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Window holds the schema definition for the Window entity.
// A closed time interval for one system, created by the scheduler
// (trigger=scheduled) or a manual re-evaluate call (trigger=manual), §4.G.
type Window struct {
	ent.Schema
}

// Fields of the Window.
func (Window) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("window_id").
			Unique().
			Immutable(),
		field.String("system_id").
			Immutable(),
		field.Time("from_ts").
			Immutable(),
		field.Time("to_ts").
			Immutable(),
		field.Enum("trigger").
			Values("scheduled", "manual").
			Immutable(),
	}
}

// Edges of the Window.
func (Window) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("system", MonitoredSystem.Type).
			Ref("windows").
			Field("system_id").
			Unique().
			Required().
			Immutable(),
		edge.To("meta_result", MetaResult.Type).
			Unique(),
		edge.To("effective_scores", EffectiveScore.Type),
	}
}

// Indexes of the Window.
func (Window) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("system_id", "to_ts"),
		index.Fields("system_id", "from_ts", "to_ts"),
	}
}
