/*
dbpulse - Database Operations & Performance Management CLI

dbpulse instruments query execution on an embedded SQLite database,
produces heuristic optimization suggestions, manages full and incremental
backups with checksum-verified restore, and aggregates database, backup
and performance signals into a single health status.
*/
package main

import "github.com/dbpulse/dbpulse/cmd"

func main() {
	cmd.Execute()
}
