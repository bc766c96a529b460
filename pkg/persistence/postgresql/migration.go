package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE flows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				flow_type VARCHAR(50) NOT NULL CHECK (flow_type IN ('automation', 'override')),
				priority INT NOT NULL DEFAULT 0,
				is_active BOOLEAN NOT NULL DEFAULT false,
				version INT NOT NULL DEFAULT 0,
				definition JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_flows_active ON flows(is_active, priority DESC, created_at DESC);
		`,
		2: `
			CREATE TABLE conversation_states (
				conversation_id VARCHAR(512) PRIMARY KEY,
				flow_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				state JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_conversation_states_status ON conversation_states(status);
		`,
		3: `
			CREATE TABLE delayed_resumptions (
				id VARCHAR(255) PRIMARY KEY,
				conversation_id VARCHAR(512) NOT NULL,
				flow_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				action_index INT NOT NULL,
				resume_at TIMESTAMP WITH TIME ZONE NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('scheduled', 'claimed', 'cancelled', 'fired')),
				claimed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_delayed_resumptions_due ON delayed_resumptions(status, resume_at);
			CREATE INDEX idx_delayed_resumptions_conversation ON delayed_resumptions(conversation_id);
		`,
	}
}
