package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// LLMUsage holds the schema definition for the LLMUsage entity.
// Records one LLM call for cost/throughput accounting (§4.F, §4.H step 24).
type LLMUsage struct {
	ent.Schema
}

// Fields of the LLMUsage.
func (LLMUsage) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("usage_id").
			Unique().
			Immutable(),
		field.Enum("task").
			Values("scoring", "meta_analysis").
			Immutable(),
		field.String("system_id").
			Optional().
			Immutable(),
		field.String("model").
			Immutable(),
		field.Int("input_tokens").
			Default(0),
		field.Int("output_tokens").
			Default(0),
		field.Int("request_count").
			Default(1),
		field.Float("estimated_cost_usd").
			Default(0),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the LLMUsage.
func (LLMUsage) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("system_id", "created_at"),
		index.Fields("task", "created_at"),
	}
}

// Annotations pins the table name to the spec's singular "llm_usage" (§6).
func (LLMUsage) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "llm_usage"},
	}
}
