// Package schema declares and applies the database schema.
package schema

import (
	"context"

	kpool "github.com/opst/stevedore/pkg/conn/postgres/pool"
)

var ddl = []string{
	`
	create table if not exists "app" (
		"name" varchar(64) primary key,
		"repo" varchar(255) not null,
		"owner_id" int not null default 0
	);`,
	`
	create table if not exists "release" (
		"release_id" serial primary key,
		"app_name" varchar(64) not null references "app" ("name"),
		"commit" varchar(40) not null,
		"image" varchar(255) not null default '',
		"manifest" text not null,
		"created_at" timestamp with time zone not null default now(),
		unique ("app_name", "commit")
	);`,
	`
	create table if not exists "container" (
		"container_id" varchar(64) primary key,
		"app_name" varchar(64) not null,
		"commit" varchar(40) not null,
		"combo_name" varchar(64) not null,
		"entrypoint_name" varchar(50) not null,
		"envname" varchar(50) not null default '',
		"cpu_quota" numeric(12, 3) not null,
		"memory" bigint not null,
		"zone" varchar(50) not null,
		"podname" varchar(50) not null,
		"nodename" varchar(50) not null,
		"override_status" int not null default 0,
		"initialized" boolean not null default false,
		"health" jsonb not null default '{}',
		"revision" int not null default 1
	);`,
	`create index if not exists "container_app_commit" on "container" ("app_name", "commit");`,
	`
	create table if not exists "oplog" (
		"id" serial primary key,
		"actor" varchar(64) not null,
		"op_type" varchar(32) not null,
		"app_name" varchar(64) not null,
		"commit" varchar(40) not null default '',
		"detail" jsonb not null default '{}',
		"at" timestamp with time zone not null default now()
	);`,
	`
	create table if not exists "cooldown" (
		"key" varchar(255) primary key,
		"expires_at" timestamp with time zone not null
	);`,
	`
	create table if not exists "health_sample" (
		"container_id" varchar(64) not null,
		"at" timestamp with time zone not null default now(),
		"alive" boolean not null,
		"healthy" boolean not null
	);`,
	`create index if not exists "health_sample_container" on "health_sample" ("container_id", "at");`,
}

// Apply creates missing tables and indexes. Idempotent.
func Apply(ctx context.Context, pool kpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, stmt := range ddl {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
