package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"

	"github.com/logpulse/logpulse/pkg/model"
)

// MetaResult holds the schema definition for the MetaResult entity.
// The per-window LLM output, persisted at most once per window (§4.H step 1).
type MetaResult struct {
	ent.Schema
}

// Fields of the MetaResult.
func (MetaResult) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("meta_result_id").
			Unique().
			Immutable(),
		field.String("window_id").
			Unique().
			Immutable(),
		field.JSON("meta_scores", map[string]float64{}).
			Comment("criterion slug -> score"),
		field.Text("summary"),
		field.JSON("findings", []model.LegacyFinding{}).
			Optional().
			Comment("legacy flat-findings array, kept for API back-compat"),
		field.String("recommended_action").
			Optional(),
		field.JSON("key_event_ids", []string{}).
			Optional(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the MetaResult.
func (MetaResult) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("window", Window.Type).
			Ref("meta_result").
			Field("window_id").
			Unique().
			Required().
			Immutable(),
		edge.To("resolved_findings", Finding.Type).
			Comment("findings this meta_result resolved, via findings.resolved_by_meta_id"),
	}
}
