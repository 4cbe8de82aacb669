package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create actions table
			CREATE TABLE actions (
				id UUID PRIMARY KEY,
				name VARCHAR(100) NOT NULL UNIQUE,
				display_name VARCHAR(255) NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				tags JSONB NOT NULL DEFAULT '[]',
				enabled BOOLEAN NOT NULL DEFAULT true,
				action_type VARCHAR(50) NOT NULL,
				parameters JSONB NOT NULL DEFAULT '[]',
				config JSONB,
				auth_credential VARCHAR(100),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_actions_enabled ON actions(enabled);
			CREATE INDEX idx_actions_action_type ON actions(action_type);

			-- Create auth_credentials table
			CREATE TABLE auth_credentials (
				id UUID PRIMARY KEY,
				name VARCHAR(100) NOT NULL UNIQUE,
				display_name VARCHAR(255) NOT NULL DEFAULT '',
				auth_type VARCHAR(50) NOT NULL CHECK (auth_type IN ('bearer', 'custom_headers')),
				bearer_token TEXT,
				custom_headers JSONB,
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			-- Create action_logs table
			CREATE TABLE action_logs (
				id UUID PRIMARY KEY,
				action_name VARCHAR(100) NOT NULL,
				action_type VARCHAR(50) NOT NULL,
				params JSONB,
				response JSONB,
				success BOOLEAN NOT NULL,
				error_message TEXT NOT NULL DEFAULT '',
				duration_ms BIGINT NOT NULL,
				status_code INTEGER,
				source VARCHAR(50) NOT NULL,
				resolved_request JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_action_logs_action_name ON action_logs(action_name);
			CREATE INDEX idx_action_logs_created_at ON action_logs(created_at);
		`,
	}
}
