package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// EffectiveScore holds the schema definition for the EffectiveScore entity.
// The dashboard-facing per-criterion value for one window (§3, §4.H step 23,
// §4.K). One row per (window_id, system_id, criterion_id); upserted both by
// meta-analysis and by the recalculation engine.
type EffectiveScore struct {
	ent.Schema
}

// Fields of the EffectiveScore.
func (EffectiveScore) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("effective_score_id").
			Unique().
			Immutable(),
		field.String("window_id").
			Immutable(),
		field.String("system_id").
			Immutable(),
		field.Int("criterion_id").
			Immutable(),
		field.Float("meta_score").
			Comment("raw meta-analysis score, or 0 when max_event_score is 0 (§3 zeroing blend)"),
		field.Float("max_event_score"),
		field.Float("effective_value").
			Comment("0.7*meta_score + 0.3*max_event_score"),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the EffectiveScore.
func (EffectiveScore) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("window", Window.Type).
			Ref("effective_scores").
			Field("window_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the EffectiveScore.
func (EffectiveScore) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("window_id", "system_id", "criterion_id").
			Unique(),
		index.Fields("system_id", "criterion_id"),
	}
}
