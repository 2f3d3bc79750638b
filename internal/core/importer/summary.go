package importer

import "fmt"

// Summary renders the one-line recap of a commit, e.g.
// "Import completed: 2 houses, 5 rooms, 40 items created. 3 items updated, 1 item skipped."
func Summary(r *Result) string {
	return fmt.Sprintf("Import completed: %s, %s, %s created. %s updated, %s skipped.",
		plural(r.Created.Houses, "house"),
		plural(r.Created.Rooms, "room"),
		plural(r.Created.Items, "item"),
		plural(r.Updated.Items, "item"),
		plural(r.Skipped.Items, "item"),
	)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
