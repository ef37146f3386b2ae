// Command extimport unloads database tables through named pipes into a
// configurable sink, one partition per importer session.
//
//	extimport --config job.json validate
//	extimport --config job.json sql --partition 0
//	extimport --config job.json run [--partition 0 --partition 3]
//	extimport --config job.json history --limit 50
package main

import (
	"os"

	// register every connector, sink and storage backend.
	// the job config picks one of each, but the binary carries them all.
	_ "extimport/internal/conn/all"
	_ "extimport/internal/sink/all"
	_ "extimport/internal/storage/all"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
