// Profiling harness for the ecs package.
//
// Build and run:
//
//	go build ./cmd/ecsprofile
//	./ecsprofile -mode cpu -entities 10000 -iters 1000
//	go tool pprof -http=":8000" ./ecsprofile cpu.pprof
package main

import (
	"flag"
	"log"
	"os"

	"github.com/felixge/fgprof"
	"github.com/pkg/profile"

	"github.com/codehz/ecs"
)

type position struct {
	X, Y float64
}

type velocity struct {
	X, Y float64
}

type health struct {
	Current, Max int
}

func main() {
	mode := flag.String("mode", "cpu", "profile mode: cpu, mem, or fgprof")
	entities := flag.Int("entities", 10000, "entity count")
	iters := flag.Int("iters", 1000, "sync+iterate rounds")
	flag.Parse()

	switch *mode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "fgprof":
		f, err := os.Create("fgprof.pprof")
		if err != nil {
			log.Fatal(err)
		}
		stop := fgprof.Start(f, fgprof.FormatPprof)
		defer func() {
			if err := stop(); err != nil {
				log.Fatal(err)
			}
			f.Close()
		}()
	default:
		log.Fatalf("unknown mode %q", *mode)
	}

	if err := run(*entities, *iters); err != nil {
		log.Fatal(err)
	}
}

func run(numEntities, iters int) error {
	w := ecs.Factory.NewWorld()

	pos, err := w.RegisterComponent(ecs.ComponentDesc{Name: "Position"})
	if err != nil {
		return err
	}
	vel, err := w.RegisterComponent(ecs.ComponentDesc{Name: "Velocity"})
	if err != nil {
		return err
	}
	hp, err := w.RegisterComponent(ecs.ComponentDesc{Name: "Health"})
	if err != nil {
		return err
	}
	childOf, err := w.RegisterComponent(ecs.ComponentDesc{Name: "ChildOf", Exclusive: true})
	if err != nil {
		return err
	}

	parent, err := w.New()
	if err != nil {
		return err
	}

	ids := make([]ecs.ID, numEntities)
	for i := range ids {
		e, err := w.New()
		if err != nil {
			return err
		}
		ids[i] = e
		if err := w.Set(e, pos, &position{X: float64(i)}); err != nil {
			return err
		}
		if err := w.Set(e, vel, &velocity{X: 1, Y: 2}); err != nil {
			return err
		}
		if i%2 == 0 {
			rel, err := w.Relation(childOf, parent)
			if err != nil {
				return err
			}
			if err := w.Set(e, rel, nil); err != nil {
				return err
			}
		}
	}
	if err := w.Sync(); err != nil {
		return err
	}

	moving := w.CreateQuery([]ecs.ID{pos, vel}, nil)
	defer moving.Dispose()

	for round := 0; round < iters; round++ {
		if err := moving.Iterate([]ecs.ID{pos, vel}, func(e ecs.ID, vals []any) bool {
			p := vals[0].(*position)
			v := vals[1].(*velocity)
			p.X += v.X
			p.Y += v.Y
			return true
		}); err != nil {
			return err
		}

		// Oscillate a component on a slice of the population so every
		// round exercises archetype moves, not just column reads.
		for i := 0; i < len(ids); i += 100 {
			if round%2 == 0 {
				if err := w.Set(ids[i], hp, &health{Current: 100, Max: 100}); err != nil {
					return err
				}
			} else {
				if err := w.Delete(ids[i], hp); err != nil {
					return err
				}
			}
		}
		if err := w.Sync(); err != nil {
			return err
		}
	}
	return nil
}
