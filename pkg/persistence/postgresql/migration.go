package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Flow graphs, authored by the flow designer module
			CREATE TABLE flows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE flow_nodes (
				flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				node_type VARCHAR(50) NOT NULL,
				label VARCHAR(255) NOT NULL DEFAULT '',
				step_code VARCHAR(255) NOT NULL DEFAULT '',
				comment_required BOOLEAN NOT NULL DEFAULT false,
				attachment_required BOOLEAN NOT NULL DEFAULT false,
				position INT NOT NULL DEFAULT 0,
				PRIMARY KEY (flow_id, id)
			);

			CREATE TABLE flow_edges (
				flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				source_node_id VARCHAR(255) NOT NULL,
				target_node_id VARCHAR(255) NOT NULL,
				condition_type VARCHAR(50) NOT NULL DEFAULT 'default',
				position INT NOT NULL DEFAULT 0,
				PRIMARY KEY (flow_id, id)
			);

			-- Forms and their step mapping, authored by the form module
			CREATE TABLE forms (
				id UUID PRIMARY KEY,
				flow_id UUID NOT NULL REFERENCES flows(id),
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'inactive')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE form_fields (
				form_id UUID NOT NULL REFERENCES forms(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				label VARCHAR(255) NOT NULL DEFAULT '',
				field_type VARCHAR(50) NOT NULL DEFAULT 'text',
				is_required BOOLEAN NOT NULL DEFAULT false,
				sort_order INT NOT NULL DEFAULT 0,
				PRIMARY KEY (form_id, id)
			);

			CREATE TABLE step_assignments (
				id UUID PRIMARY KEY,
				form_id UUID NOT NULL REFERENCES forms(id) ON DELETE CASCADE,
				node_id VARCHAR(255) NOT NULL,
				doer_id VARCHAR(255) NOT NULL,
				duration_minutes INT NOT NULL DEFAULT 0,
				sort_order INT NOT NULL DEFAULT 0,
				UNIQUE (form_id, node_id)
			);

			-- Run execution state, owned by the engine
			CREATE TABLE runs (
				id UUID PRIMARY KEY,
				flow_id UUID NOT NULL,
				form_id UUID NOT NULL,
				title VARCHAR(255) NOT NULL DEFAULT '',
				form_data JSONB,
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'paused', 'completed', 'cancelled')),
				initiated_by VARCHAR(255) NOT NULL,
				current_node_id VARCHAR(255) NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_runs_status ON runs(status);
			CREATE INDEX idx_runs_flow_id ON runs(flow_id);
			CREATE INDEX idx_runs_started_at ON runs(started_at);

			CREATE TABLE run_steps (
				id UUID PRIMARY KEY,
				run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				node_id VARCHAR(255) NOT NULL,
				step_name VARCHAR(255) NOT NULL DEFAULT '',
				step_code VARCHAR(255) NOT NULL DEFAULT '',
				doer_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('waiting', 'pending', 'in_progress', 'completed', 'skipped')),
				duration_minutes INT NOT NULL DEFAULT 0,
				planned_at TIMESTAMP WITH TIME ZONE,
				started_at TIMESTAMP WITH TIME ZONE,
				actual_at TIMESTAMP WITH TIME ZONE,
				sort_order INT NOT NULL DEFAULT 0,
				comment TEXT NOT NULL DEFAULT '',
				attachment_path TEXT NOT NULL DEFAULT '',
				UNIQUE (run_id, node_id)
			);

			CREATE INDEX idx_run_steps_run_id ON run_steps(run_id);
			CREATE INDEX idx_run_steps_doer_status ON run_steps(doer_id, status);
			CREATE INDEX idx_run_steps_planned_at ON run_steps(planned_at);
		`,
	}
}
