package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// DiscoveryBufferEntry holds the schema definition for the
// DiscoveryBufferEntry entity. An unmatched ingest record parked for later
// source-creation suggestions (§3, §4.C/§4.D).
type DiscoveryBufferEntry struct {
	ent.Schema
}

// Fields of the DiscoveryBufferEntry.
func (DiscoveryBufferEntry) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("entry_id").
			Unique().
			Immutable(),
		field.String("host").
			Optional(),
		field.String("source_ip").
			Optional(),
		field.String("program").
			Optional(),
		field.Int("facility").
			Optional().
			Nillable(),
		field.String("severity").
			Optional(),
		field.Text("message_sample"),
		field.Time("received_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the DiscoveryBufferEntry.
func (DiscoveryBufferEntry) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("host", "program", "source_ip"),
		index.Fields("received_at"),
	}
}

// Annotations pins the table name to the spec's "discovery_buffer" (§6).
func (DiscoveryBufferEntry) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "discovery_buffer"},
	}
}
