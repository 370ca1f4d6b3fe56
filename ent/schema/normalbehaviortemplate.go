package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// NormalBehaviorTemplate holds the schema definition for the
// NormalBehaviorTemplate entity. A user-authored pattern marking matching
// events as routine (§3, §4.E). system_id empty means the template is
// global; it is a plain field rather than an edge because a template's
// scope is intentionally allowed to point at nothing.
type NormalBehaviorTemplate struct {
	ent.Schema
}

// Fields of the NormalBehaviorTemplate.
func (NormalBehaviorTemplate) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("template_id").
			Unique().
			Immutable(),
		field.String("system_id").
			Optional().
			Comment("empty = global template"),
		field.Text("pattern").
			Comment("anchored ^...$ regex, case-insensitive"),
		field.String("host_pattern").
			Optional(),
		field.String("program_pattern").
			Optional(),
		field.Text("example_message").
			Optional(),
		field.Bool("enabled").
			Default(true),
		field.Text("notes").
			Optional(),
	}
}

// Indexes of the NormalBehaviorTemplate.
func (NormalBehaviorTemplate) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("system_id", "enabled"),
	}
}
