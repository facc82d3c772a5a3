// Copyright (c) 2025 The Arke Institute developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chunkdb

// batch_state holds the singleton chunk row; id is pinned to 0.
const batchStateSchema = `
create table if not exists batch_state (
	id integer primary key check (id = 0),
	batch_id text not null,
	chunk_id text not null,
	prefix text not null default '',
	custom_prompt text not null default '',
	institution text not null default '',
	phase text not null,
	started_at integer not null,
	completed_at integer,
	callback_retry_count integer not null default 0,
	global_error text
);
`

// pi_list preserves the admission order of the chunk's identifiers.
const piListSchema = `
create table if not exists pi_list (
	idx integer primary key,
	pi text not null unique
);
`

const piStateSchema = `
create table if not exists pi_state (
	pi text primary key,
	status text not null default 'pending',
	retry_count integer not null default 0,
	pinax_record text,
	pinax_cid text,
	new_tip text,
	new_version integer,
	error text
);

create index if not exists piStatusIndex on pi_state(status);
`

const contextFilesSchema = `
create table if not exists context_files (
	pi text not null,
	idx integer not null,
	filename text not null,
	content text not null,
	primary key (pi, idx)
);
`

const contextMetaSchema = `
create table if not exists context_meta (
	pi text primary key,
	directory_name text not null,
	existing_pinax_json text
);
`
