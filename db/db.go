// Package db embeds the SQL schema applied by the migrate command.
package db

import _ "embed"

// Schema is the full DDL for the pipeline's tables and indexes.
//
//go:embed schema.sql
var Schema string
