// Package metrics provides Prometheus instrumentation for transcribrr.
//
// All collectors are registered with the default registry through promauto
// and prefixed with "transcribrr_".
//
// # Database worker
//
//   - DBOperationsTotal: operations by name and status (success, error kind)
//   - DBOperationDuration: time spent executing an operation on the worker
//   - DBQueueDepth: operations waiting in the worker queue
//   - DBWorkerRunning: 1 while a worker owns the connection
//   - DataChangedTotal: change notifications by entity
//
// # Folders
//
//   - FoldersTotal: folders in the cache after the last rebuild
//   - FolderCacheRebuilds: cache rebuilds
//
// # Importer
//
//   - ImportFilesTotal: imported files by result (imported, duplicate, error)
//   - ImportProbeDuration: ffprobe duration per file
//
// The CLI has no metrics endpoint; --stats prints a [Snapshot] of the
// default gatherer after a command finishes:
//
//	snap, err := metrics.Gather()
//	fmt.Print(snap.Format())
package metrics
