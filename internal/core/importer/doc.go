// Package importer reconciles bulk inventory rows into the
// House → Room → Item hierarchy.
//
// An import has two phases:
//
//	preview := importer.BuildPreview(rows, normalizer)  // pure, no I/O
//	// caller shows preview.Errors / preview.Warnings and stops on errors
//	result, err := importer.NewExecutor(store).Commit(ctx, ownerID, preview, opts)
//
// Houses and rooms are matched on natural keys and reused or created.
// Items go through the conflict policy in Decide. Commit is best effort:
// each row is written on its own and a failed row never stops the run,
// so Result is the record of what was actually persisted.
package importer
