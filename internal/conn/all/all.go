// Package all wires every built-in connector kind into the conn registry.
// Import it for side effects only.
package all

import (
	_ "extimport/internal/conn/duckdb"
	_ "extimport/internal/conn/netezza"
	_ "extimport/internal/conn/postgres"
)
