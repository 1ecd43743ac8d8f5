package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mghro/radcollide/collision"
	"github.com/mghro/radcollide/core"
	"github.com/mghro/radcollide/internal/logging"
	"github.com/mghro/radcollide/internal/observability"
	"github.com/mghro/radcollide/internal/solids"
	"github.com/mghro/radcollide/model"
	"github.com/mghro/radcollide/registry"
)

func main() {
	catalogPath := flag.String("catalog", "", "machine catalog YAML (empty: built-in catalog)")
	headName := flag.String("head", "", "treatment head to select (empty: first head in catalog)")
	couchName := flag.String("couch", "", "couch to select (empty: first couch in catalog)")
	orientation := flag.String("orientation", "HFS", "patient orientation (HFS, FFS, HFP, FFP)")
	workers := flag.Int("workers", 0, "collision worker count (0: derive from CPU count)")
	debounceDelay := flag.Duration("debounce", 15*time.Millisecond, "dispatch debounce window (0: immediate)")
	metricsAddr := flag.String("metrics-addr", "", "address for the Prometheus /metrics endpoint (empty: disabled)")
	sweep := flag.Bool("sweep", false, "evaluate a full gantry arc instead of the interactive demo")
	couchDeg := flag.Float64("couch-deg", 0, "couch angle in degrees for the sweep")
	resolution := flag.Int("resolution", 0, "overlap sampling grid resolution per axis (0: default)")

	flag.Parse()

	ctx, log := logging.WithSessionLogger(context.Background(), logging.NewFromEnv())

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		panic(fmt.Errorf("init tracing: %w", err))
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	metrics, err := observability.NewCollisionCollector(nil)
	if err != nil {
		panic(fmt.Errorf("register metrics: %w", err))
	}
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()
		fmt.Printf("Serving metrics on %s/metrics\n", *metricsAddr)
	}

	// ==== Machine catalog ====

	machines := registry.DefaultCatalog()
	if *catalogPath != "" {
		machines, err = registry.LoadCatalog(*catalogPath)
		if err != nil {
			panic(err)
		}
	}

	reg := registry.NewRegistry()
	for _, m := range machines {
		if err := reg.AddMachine(m); err != nil {
			panic(err)
		}
	}
	if err := selectMachines(reg, *headName, *couchName); err != nil {
		panic(err)
	}
	head, couch := reg.Selected()
	fmt.Printf("Selected head %q (%d active parts), couch %q (%d active parts)\n",
		head.Name, len(head.ActiveParts()), couch.Name, len(couch.ActiveParts()))

	// ==== Geometry proxies + collision pool ====

	store := solids.NewStore()
	if *resolution > 0 {
		store.SetResolution(*resolution)
	}
	if err := registerSolids(store, head); err != nil {
		panic(err)
	}
	if err := registerSolids(store, couch); err != nil {
		panic(err)
	}

	opts := []collision.Option{
		collision.WithLogger(log),
		collision.WithMetrics(metrics),
		collision.WithDebounce(*debounceDelay),
	}
	if *workers > 0 {
		opts = append(opts, collision.WithWorkers(*workers))
	}
	scheduler := collision.NewScheduler(store, opts...)

	engine, err := core.NewEngine(core.Config{
		Isocenter:   core.Vec3{},
		Orientation: model.PatientOrientation(*orientation),
		Head:        head,
		Couch:       couch,
		Sink:        store,
		Scheduler:   scheduler,
		Logger:      log,
		Metrics:     metrics,
	})
	if err != nil {
		panic(err)
	}
	engine.SetPairs(crossPairs(head, couch))

	scheduler.Start(ctx)
	defer scheduler.Stop()

	if err := engine.PlaceModels(ctx); err != nil {
		panic(err)
	}

	if *sweep {
		runSweep(ctx, engine, *couchDeg)
		return
	}
	runDemo(ctx, engine, scheduler)
}

// selectMachines picks the named machines, falling back to the first of each
// kind when no name was given.
func selectMachines(reg *registry.Registry, head, couch string) error {
	if head == "" {
		heads := reg.MachinesOfKind(model.MachineKindTreatmentHead)
		if len(heads) == 0 {
			return fmt.Errorf("catalog contains no treatment head")
		}
		head = heads[0].Name
	}
	if couch == "" {
		couches := reg.MachinesOfKind(model.MachineKindCouch)
		if len(couches) == 0 {
			return fmt.Errorf("catalog contains no couch")
		}
		couch = couches[0].Name
	}
	if err := reg.Select(head); err != nil {
		return err
	}
	return reg.Select(couch)
}

// crossPairs monitors every active head part against every active couch part.
func crossPairs(head, couch *model.Machine) []collision.Pair {
	var pairs []collision.Pair
	for _, h := range head.ActiveParts() {
		for _, c := range couch.ActiveParts() {
			pairs = append(pairs, collision.Pair{A: h.Name, B: c.Name, Enabled: true})
		}
	}
	return pairs
}

// registerSolids creates a stand-in solid per active part. Retractable parts
// become cylinders (snouts), everything else a box sized by its role.
// Dimensions are in centimetres, eyeballed from the modelled machines.
func registerSolids(store *solids.Store, m *model.Machine) error {
	for _, p := range m.ActiveParts() {
		var err error
		switch {
		case p.Retractable:
			err = store.AddCylinder(p.Name, 60, 18)
		case p.Scissor:
			err = store.AddBox(p.Name, core.Vec3{X: 30, Y: 25, Z: 110})
		case m.Kind == model.MachineKindCouch:
			err = store.AddBox(p.Name, core.Vec3{X: 55, Y: 8, Z: 220})
		default:
			err = store.AddBox(p.Name, core.Vec3{X: 90, Y: 120, Z: 90})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// runDemo drags the gantry through half a rotation, reporting the verdicts
// after every step, the way an interactive tuning session would.
func runDemo(ctx context.Context, engine *core.Engine, scheduler *collision.Scheduler) {
	fmt.Println("Dragging gantry 0° → 180° in 5° steps")
	for g := 0.0; g <= 180; g += 5 {
		rep, err := engine.Apply(ctx, core.Input{GantryDeg: g, CouchYMm: -120})
		if err != nil {
			panic(err)
		}
		if err := scheduler.WaitIdle(ctx); err != nil {
			panic(err)
		}
		if rep.Unreachable {
			fmt.Printf("  couch anchor out of scissor reach at gantry=%.1f°, parked\n", g)
		}
		for _, r := range engine.Results() {
			fmt.Printf("↳ gantry=%5.1f° %-12s × %-12s %-13s dice=%.5f\n",
				g, r.A, r.B, r.Verdict, r.Metric)
		}
	}
	fmt.Println("Demo complete.")
}

// runSweep evaluates one full clockwise arc and prints the colliding
// positions.
func runSweep(ctx context.Context, engine *core.Engine, couchDeg float64) {
	fmt.Printf("Sweeping full arc at couch=%.1f°\n", couchDeg)
	findings, err := engine.EvaluateArc(ctx, []core.Beam{
		{GantryStartDeg: 0, GantryStopDeg: 359, CouchDeg: couchDeg},
	})
	if err != nil {
		panic(err)
	}
	if len(findings) == 0 {
		fmt.Println("Arc is clear.")
		return
	}
	for _, f := range findings {
		for _, r := range f.Results {
			if r.Verdict != collision.VerdictColliding {
				continue
			}
			fmt.Printf("↳ COLLISION gantry=%5.1f° couch=%5.1f° %s × %s dice=%.5f\n",
				f.GantryDeg, f.CouchDeg, r.A, r.B, r.Metric)
		}
	}
	fmt.Printf("%d colliding positions found.\n", len(findings))
}
