// replay reads a recorded session's cycle log and re-runs every merge,
// verifying offline that the reconciliation invariants held: local-newer
// positions survive, re-merging is a fixed point, and absent ids are
// dropped.
package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"

	"gridtown/internal/recorder"
	"gridtown/internal/state"
)

func main() {
	var (
		cyclesPath = flag.String("cycles", "", "path to a cycles-*.jsonl.zst file")
	)
	flag.Parse()

	if *cyclesPath == "" {
		fmt.Fprintln(os.Stderr, "missing -cycles")
		os.Exit(2)
	}

	entries, err := recorder.ReadCycles(*cyclesPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read cycles:", err)
		os.Exit(1)
	}
	fmt.Printf("cycles=%d\n", len(entries))

	violations := 0
	for i, e := range entries {
		persons := state.MergeAll(e.Local.Persons, e.Server.Persons)
		cars := state.MergeAll(e.Local.Cars, e.Server.Cars)
		objects := state.MergeAll(e.Local.Objects, e.Server.Objects)

		violations += checkAntiRegression(i, e.Local.Persons, e.Server.Persons, persons)
		violations += checkFixedPoint(i, persons, e.Server.Persons)
		violations += checkDeletion(i, persons, e.Server.Persons)

		fmt.Printf("cycle %d at=%s merged persons=%d cars=%d objects=%d\n",
			i, e.At, len(persons), len(cars), len(objects))
	}

	if violations > 0 {
		fmt.Fprintf(os.Stderr, "FAIL: %d invariant violations\n", violations)
		os.Exit(1)
	}
	fmt.Println("OK")
}

// checkAntiRegression: a local copy newer than the server's keeps its
// position through the merge.
func checkAntiRegression(cycle int, local, server, merged []state.Person) int {
	bad := 0
	for _, lc := range local {
		sv, onServer := state.FindPerson(server, lc.ID)
		mg, ok := state.FindPerson(merged, lc.ID)
		if !onServer || !ok {
			continue
		}
		if lc.UpdatedAt().After(sv.UpdatedAt()) && (mg.X != lc.X || mg.Y != lc.Y) {
			fmt.Fprintf(os.Stderr, "cycle %d: %s regressed to (%d,%d), local was (%d,%d)\n",
				cycle, lc.ID, mg.X, mg.Y, lc.X, lc.Y)
			bad++
		}
	}
	return bad
}

// checkFixedPoint: merging the server list again changes nothing.
func checkFixedPoint(cycle int, merged, server []state.Person) int {
	again := state.MergeAll(merged, server)
	if len(again) != len(merged) {
		fmt.Fprintf(os.Stderr, "cycle %d: re-merge changed length %d -> %d\n", cycle, len(merged), len(again))
		return 1
	}
	for i := range merged {
		if !reflect.DeepEqual(merged[i], again[i]) {
			fmt.Fprintf(os.Stderr, "cycle %d: re-merge changed %s\n", cycle, merged[i].ID)
			return 1
		}
	}
	return 0
}

// checkDeletion: every merged id exists on the server.
func checkDeletion(cycle int, merged, server []state.Person) int {
	bad := 0
	for _, m := range merged {
		if _, ok := state.FindPerson(server, m.ID); !ok {
			fmt.Fprintf(os.Stderr, "cycle %d: %s survived deletion\n", cycle, m.ID)
			bad++
		}
	}
	return bad
}
