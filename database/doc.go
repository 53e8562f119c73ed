// Package database builds pgx connection pools for quote persistence.
package database
