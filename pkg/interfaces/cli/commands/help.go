package commands

import (
	"fmt"
	"io"
)

// PrintHelp writes the CLI usage
func PrintHelp(w io.Writer) {
	fmt.Fprint(w, `tandas - production batch composition and lifecycle

USAGE:
    tandas <command> [options]

COMMANDS:
    lines       List active production lines and their waiting orders
    compose     Select orders on a line and create a batch
    batches     Show the batches of one state grouped by line
    advance     Move every batch of a line to the next state
    serve       Start the HTTP API

COMMON OPTIONS:
    -config <file>      Configuration file (default: ./tandas.yaml if present)
    -scenario <dir>     Use an in-memory backend seeded from CSV files
    -backend <url>      Production backend base URL
    -verbose            Enable verbose output

COMMAND OPTIONS:
    compose  -line <id> -orders <id,id,...> [-yes]
    batches  -state <state> [-format text|json|csv|xlsx] [-output <dir>]
    advance  -state <state> -line <id> [-yes]
    serve    [-addr <host:port>]

STATES:
    planificada -> en_progreso -> completada

SCENARIO DIRECTORY STRUCTURE:
    scenario_name/
    ├── lines.csv       # Production lines and capacity
    ├── orders.csv      # Accepted production orders
    ├── materials.csv   # Reserved raw-material lots (optional)
    └── batches.csv     # Existing batches (optional)

ENVIRONMENT:
    TANDAS_BACKEND_URL, TANDAS_BACKEND_TIMEOUT, TANDAS_BACKEND_SCENARIO,
    TANDAS_HTTP_ADDR, TANDAS_HTTP_CORS_ORIGINS, TANDAS_REDIS_ADDRESS,
    TANDAS_REDIS_LOCK_TTL, TANDAS_LOG_LEVEL

EXAMPLES:
    tandas lines -scenario example/scenarios/drying_plant
    tandas compose -scenario example/scenarios/drying_plant -line 1 -orders 1,3
    tandas batches -scenario example/scenarios/drying_plant -state planificada -format xlsx -output out/
    tandas advance -backend http://localhost:5000 -state planificada -line 2
    tandas serve -scenario example/scenarios/drying_plant -addr :8080
`)
}
