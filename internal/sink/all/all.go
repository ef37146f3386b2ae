// Package all registers every sink kind.
package all

import (
	_ "extimport/internal/sink/amqp"
	_ "extimport/internal/sink/file"
	_ "extimport/internal/sink/kafka"
	_ "extimport/internal/sink/table"
)
