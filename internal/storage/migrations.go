package storage

// migrations is applied in order. The four groups — extensions, short_term,
// mid_term, long_term — match spec.md §6's migration ordering exactly.
// Grounded on the teacher's internal/database/db.go `var migrations
// []string` pattern: a flat, ordered slice of idempotent DDL statements
// executed one at a time rather than a migration-framework's versioned
// files, since the teacher itself has no migration framework dependency.
var migrations = []string{
	// ---------- extensions ----------
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE EXTENSION IF NOT EXISTS pg_trgm`,

	// ---------- short_term ----------
	`CREATE TABLE IF NOT EXISTS banks (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		mission TEXT NOT NULL DEFAULT '',
		background TEXT NOT NULL DEFAULT '',
		disposition JSONB NOT NULL DEFAULT '{"skepticism":3,"literalism":3,"empathy":3}'::jsonb,
		directives JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		bank_id UUID NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
		title TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS memory_units (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		bank_id UUID NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
		document_id UUID REFERENCES documents(id) ON DELETE SET NULL,

		text TEXT NOT NULL,
		context TEXT,
		embedding vector(1024),

		fact_type TEXT NOT NULL CHECK (fact_type IN ('world', 'experience', 'observation')),
		fact_kind TEXT CHECK (fact_kind IN ('event', 'conversation')),

		what TEXT,
		who TEXT[],
		when_description TEXT,
		where_description TEXT,
		why_description TEXT,

		event_date TIMESTAMPTZ,
		occurred_start TIMESTAMPTZ,
		occurred_end TIMESTAMPTZ,
		mentioned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

		proof_count INTEGER NOT NULL DEFAULT 0 CHECK (proof_count >= 0),
		source_memory_ids UUID[] NOT NULL DEFAULT '{}',
		history JSONB NOT NULL DEFAULT '[]'::jsonb,
		confidence_score DOUBLE PRECISION CHECK (confidence_score IS NULL OR (confidence_score >= 0 AND confidence_score <= 1)),

		consolidated_at TIMESTAMPTZ,

		tags TEXT[] NOT NULL DEFAULT '{}',
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,

		search_vector tsvector GENERATED ALWAYS AS (
			setweight(to_tsvector('simple', coalesce(text, '')), 'A') ||
			setweight(to_tsvector('simple', coalesce(context, '')), 'B')
		) STORED,

		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS entities (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		bank_id UUID NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
		canonical_name TEXT NOT NULL,
		entity_type TEXT NOT NULL DEFAULT 'person',
		mention_count INTEGER NOT NULL DEFAULT 1,
		first_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (bank_id, canonical_name)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_bank_lower_name
		ON entities (bank_id, LOWER(canonical_name))`,

	`CREATE TABLE IF NOT EXISTS unit_entities (
		unit_id UUID NOT NULL REFERENCES memory_units(id) ON DELETE CASCADE,
		entity_id UUID NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		PRIMARY KEY (unit_id, entity_id)
	)`,

	// ---------- mid_term ----------
	`CREATE TABLE IF NOT EXISTS memory_links (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		bank_id UUID NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
		from_unit UUID NOT NULL REFERENCES memory_units(id) ON DELETE CASCADE,
		to_unit UUID NOT NULL REFERENCES memory_units(id) ON DELETE CASCADE,
		link_type TEXT NOT NULL CHECK (link_type IN ('temporal', 'semantic', 'entity', 'causes', 'caused_by')),
		entity_id UUID REFERENCES entities(id) ON DELETE SET NULL,
		weight DOUBLE PRECISION NOT NULL DEFAULT 1.0 CHECK (weight >= 0 AND weight <= 1),
		UNIQUE (from_unit, to_unit, link_type, entity_id)
	)`,

	`CREATE TABLE IF NOT EXISTS entity_cooccurrences (
		bank_id UUID NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
		entity_id_1 UUID NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		entity_id_2 UUID NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		count INTEGER NOT NULL DEFAULT 1,
		last_cooccurred TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (entity_id_1, entity_id_2),
		CHECK (entity_id_1 < entity_id_2)
	)`,

	`CREATE TABLE IF NOT EXISTS async_operations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		bank_id UUID NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
		operation_type TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
		worker_id TEXT,
		payload JSONB NOT NULL DEFAULT '{}'::jsonb,
		result JSONB,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ
	)`,

	// additional indexes (mid_term group per spec.md §6)
	`CREATE INDEX IF NOT EXISTS idx_memory_units_embedding_hnsw
		ON memory_units USING hnsw (embedding vector_cosine_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_units_embedding_hnsw_world
		ON memory_units USING hnsw (embedding vector_cosine_ops) WHERE fact_type = 'world'`,
	`CREATE INDEX IF NOT EXISTS idx_memory_units_embedding_hnsw_experience
		ON memory_units USING hnsw (embedding vector_cosine_ops) WHERE fact_type = 'experience'`,
	`CREATE INDEX IF NOT EXISTS idx_memory_units_embedding_hnsw_observation
		ON memory_units USING hnsw (embedding vector_cosine_ops) WHERE fact_type = 'observation'`,
	`CREATE INDEX IF NOT EXISTS idx_memory_units_search_vector
		ON memory_units USING gin (search_vector)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_units_tags
		ON memory_units USING gin (tags)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_units_bank_type_event
		ON memory_units (bank_id, fact_type, event_date DESC NULLS LAST)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_units_unconsolidated
		ON memory_units (bank_id, created_at ASC) WHERE consolidated_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_entities_trgm_name
		ON entities USING gin (canonical_name gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_links_from
		ON memory_links (from_unit, link_type)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_links_to
		ON memory_links (to_unit, link_type)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_links_weight
		ON memory_links (bank_id, weight DESC)`,
	// The table-level UNIQUE(from_unit, to_unit, link_type, entity_id) never
	// fires for entity_id IS NULL rows (Postgres treats NULLs as distinct),
	// which is exactly the case consolidation's non-entity semantic links
	// use. This partial index gives those rows a real uniqueness guarantee.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_memory_links_no_entity
		ON memory_links (from_unit, to_unit, link_type) WHERE entity_id IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_async_operations_pending
		ON async_operations (bank_id, created_at ASC) WHERE status = 'pending'`,

	// ---------- long_term ----------
	`CREATE TABLE IF NOT EXISTS mental_models (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		bank_id UUID NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT,
		content TEXT NOT NULL,
		source_query TEXT,
		embedding vector(1024),
		entity_id UUID REFERENCES entities(id) ON DELETE SET NULL,
		source_observation_ids UUID[] NOT NULL DEFAULT '{}',
		tags TEXT[] NOT NULL DEFAULT '{}',
		max_tokens INTEGER NOT NULL DEFAULT 2048,
		trigger JSONB NOT NULL DEFAULT '{"refresh_after_consolidation": false}'::jsonb,
		last_refreshed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_mental_models_bank_entity
		ON mental_models (bank_id, entity_id) WHERE entity_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_mental_models_embedding_hnsw
		ON mental_models USING hnsw (embedding vector_cosine_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_mental_models_trgm_name
		ON mental_models USING gin (name gin_trgm_ops)`,

	`CREATE TABLE IF NOT EXISTS chunks (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		unit_id UUID NOT NULL REFERENCES memory_units(id) ON DELETE CASCADE,
		ordinal INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding vector(1024),
		UNIQUE (unit_id, ordinal)
	)`,

	// on-update triggers (mutable tables only; async_operations uses
	// started_at/completed_at instead, per spec.md §4.1)
	`CREATE OR REPLACE FUNCTION bump_updated_at() RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,

	`DO $$ BEGIN
		CREATE TRIGGER trg_banks_updated_at BEFORE UPDATE ON banks
			FOR EACH ROW EXECUTE FUNCTION bump_updated_at();
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`,
	`DO $$ BEGIN
		CREATE TRIGGER trg_memory_units_updated_at BEFORE UPDATE ON memory_units
			FOR EACH ROW EXECUTE FUNCTION bump_updated_at();
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`,
	`DO $$ BEGIN
		CREATE TRIGGER trg_mental_models_updated_at BEFORE UPDATE ON mental_models
			FOR EACH ROW EXECUTE FUNCTION bump_updated_at();
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`,
}
