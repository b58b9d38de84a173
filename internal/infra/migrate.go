package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`create table if not exists render_jobs (
		id text primary key,
		user_id text not null,
		status text not null default 'queued',
		progress text not null default '',
		template_id text not null default '',
		psd_url text not null default '',
		user_image_url text not null default '',
		make text not null default '',
		model text not null default '',
		year text not null default '',
		description text not null default '',
		instagram_handle text not null default '',
		fonts_used text[] not null default '{}',
		supported_texts text[] not null default '{}',
		hex_colour text not null default '',
		hex_elements jsonb not null default '{}'::jsonb,
		result_url text not null default '',
		error text not null default '',
		created_at timestamptz not null default now(),
		updated_at timestamptz not null default now()
	)`,
	`create index if not exists render_jobs_claim_idx on render_jobs (status, created_at)`,
	`create table if not exists credit_balances (
		user_id text not null,
		counter text not null,
		balance int not null default 0 check (balance >= 0),
		updated_at timestamptz not null default now(),
		primary key (user_id, counter)
	)`,
	`create table if not exists credit_grants (
		event_id text primary key,
		user_id text not null,
		counter text not null,
		amount int not null,
		created_at timestamptz not null default now()
	)`,
	`create table if not exists posters (
		id uuid primary key,
		user_id text not null,
		job_id text not null,
		result_url text not null,
		user_image_url text not null default '',
		template_id text not null default '',
		description text not null default '',
		make text not null default '',
		model text not null default '',
		year text not null default '',
		created_at timestamptz not null default now()
	)`,
	`create index if not exists posters_user_idx on posters (user_id, created_at desc)`,
}

// RunMigrations applies the schema idempotently. Statements use
// "if not exists" guards so the runner is safe to re-execute on deploy.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i+1, err)
		}
	}
	return nil
}
