// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pgxdriver opens PostgreSQL database handles for the connection
// provider.
//
// Unlike the sqlitedriver package (which registers a database/sql driver),
// pgxdriver builds a pgx ConnConfig and hands it to pgx's stdlib adapter, so the
// provider gets a *sql.DB without going through a registered driver name. The
// lib/pq driver is offered as an alternative for deployments that need it.
//
// Usage:
//
//	db, err := pgxdriver.Open(backend)
//	defer db.Close()
package pgxdriver
