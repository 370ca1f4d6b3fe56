package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/logpulse/logpulse/pkg/model"
)

// Finding holds the schema definition for the Finding entity.
// A persistent tracked issue with an explicit lifecycle: open -> acknowledged
// -> resolved, or open -> resolved directly (§3, §4.I).
type Finding struct {
	ent.Schema
}

// Fields of the Finding.
func (Finding) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("finding_id").
			Unique().
			Immutable(),
		field.String("system_id").
			Immutable(),
		field.String("meta_result_id").
			Optional().
			Nillable().
			Comment("meta_result that most recently resolved this finding"),
		field.String("criterion_slug").
			Optional().
			Comment("empty = no specific criterion, matches anything"),
		field.Text("text"),
		field.Enum("severity").
			Values("info", "low", "medium", "high", "critical"),
		field.Enum("status").
			Values("open", "acknowledged", "resolved").
			Default("open"),
		field.String("fingerprint").
			Comment("sha256(sorted normalized tokens)[:32], order-independent"),
		field.Int("occurrence_count").
			Default(1),
		field.Int("consecutive_misses").
			Default(0),
		field.Int("reopen_count").
			Default(0).
			Comment("legacy, never incremented by new code"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("last_seen_at").
			Default(time.Now),
		field.Time("resolved_at").
			Optional().
			Nillable(),
		field.JSON("resolution_evidence", &model.ResolutionEvidence{}).
			Optional(),
		field.JSON("key_event_ids", []string{}).
			Optional().
			Comment("capped at 20, linked by word-overlap >= 30%"),
	}
}

// Edges of the Finding.
func (Finding) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("system", MonitoredSystem.Type).
			Ref("findings").
			Field("system_id").
			Unique().
			Required().
			Immutable(),
		edge.From("resolved_by", MetaResult.Type).
			Ref("resolved_findings").
			Field("meta_result_id").
			Unique(),
	}
}

// Indexes of the Finding.
func (Finding) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("system_id", "status"),
		index.Fields("fingerprint"),
		index.Fields("system_id", "criterion_slug", "status"),
		// Open/acknowledged findings are the ones dedup, eviction, and context
		// building repeatedly scan; resolved rows never need this lookup.
		index.Fields("system_id", "last_seen_at").
			Annotations(entsql.IndexWhere("status IN ('open', 'acknowledged')")),
	}
}
