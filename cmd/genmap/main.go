// genmap runs the world generator over grammar files and reports (or dumps)
// what it produced. Useful for authoring maps without a running session.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gridtown/internal/geom"
	"gridtown/internal/worldgen"
)

func main() {
	var (
		planPath = flag.String("plan", "", "building floor-plan file (O/H/E grammar)")
		cityPath = flag.String("city", "", "city map file (|,- roads and R/C zones)")
		asJSON   = flag.Bool("json", false, "dump generated structures as JSON")
	)
	flag.Parse()

	if *planPath == "" && *cityPath == "" {
		fmt.Fprintln(os.Stderr, "need -plan and/or -city")
		os.Exit(2)
	}

	out := map[string]any{}

	if *planPath != "" {
		raw, err := os.ReadFile(*planPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read plan:", err)
			os.Exit(1)
		}
		rooms := worldgen.GenerateRooms(string(raw), geom.Point{})
		fmt.Printf("plan %s: rooms=%d\n", *planPath, len(rooms))
		out["rooms"] = rooms
	}

	if *cityPath != "" {
		raw, err := os.ReadFile(*cityPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read city:", err)
			os.Exit(1)
		}
		city := worldgen.GenerateCity(string(raw), geom.Point{})
		lots, rooms, fixtures := worldgen.DefaultRegistry().Fill(city.Lots)
		city.Lots = lots
		fmt.Printf("city %s: roads=%d lots=%d interior_rooms=%d fixtures=%d\n",
			*cityPath, len(city.Roads), len(city.Lots), len(rooms), len(fixtures))
		for _, l := range city.Lots {
			fmt.Printf("  lot %s zone=%s %dx%d at (%d,%d) format=%q\n",
				l.ID, l.Zone, l.W, l.H, l.X, l.Y, l.Format)
		}
		out["roads"] = city.Roads
		out["lots"] = city.Lots
		out["interiorRooms"] = rooms
		out["fixtures"] = fixtures
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintln(os.Stderr, "encode:", err)
			os.Exit(1)
		}
	}
}
