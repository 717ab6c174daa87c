package sim

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/danmuck/catalogsync/internal/config"
	"github.com/danmuck/catalogsync/internal/testutil/testlog"
)

func gameCatalog(t *testing.T) config.CatalogConfig {
	t.Helper()
	tmpl, err := config.Template("catalog")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	cfg, err := config.ParseCatalogConfig([]byte(tmpl))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return cfg
}

func TestRunConvergesWithReorderedConsumer(t *testing.T) {
	testlog.Start(t)
	lb, err := New(gameCatalog(t), Options{ConsumerOrder: []string{"decals", "sounds", "precache"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	reports, err := lb.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(reports) != 4 {
		t.Fatalf("expected 4 ticks, got %d", len(reports))
	}
	if reports[0].FullUpdates != 3 || reports[0].Additions != 2 {
		t.Fatalf("join tick: %+v", reports[0])
	}
	if reports[1].Updates != 1 || reports[1].Additions != 1 {
		t.Fatalf("tick 1: %+v", reports[1])
	}
	if reports[3].Updates != 1 || reports[3].Changes != 1 || reports[3].Additions != 0 {
		t.Fatalf("tick 3: %+v", reports[3])
	}

	pre, _ := lb.Consumer().Lists().List("precache")
	if pre.Handle() != 2 {
		t.Fatalf("consumer precache handle: %d", pre.Handle())
	}
	if got := pre.Values(); !slices.Equal(got, []string{"models/x.mdl", "models/y.mdl", "models/z.mdl"}) {
		t.Fatalf("consumer precache: %v", got)
	}
	sounds, _ := lb.Consumer().Lists().List("sounds")
	e, err := sounds.Entry(0)
	if err != nil {
		t.Fatalf("sound entry: %v", err)
	}
	if v, _ := e.Payload().Get("loop"); !v.Bool() {
		t.Fatal("payload change did not reach the consumer")
	}
}

func TestLateJoinGetsSnapshot(t *testing.T) {
	testlog.Start(t)
	lb, err := New(gameCatalog(t), Options{JoinTick: 2, Ticks: 5})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	reports, err := lb.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if reports[0].Bytes != 0 || reports[1].Bytes != 0 {
		t.Fatalf("nothing should be sent before join: %+v %+v", reports[0], reports[1])
	}
	if reports[2].FullUpdates != 3 || reports[2].Additions != 4 {
		t.Fatalf("join snapshot: %+v", reports[2])
	}
	if reports[4].Bytes != 0 {
		t.Fatalf("idle tick sent data: %+v", reports[4])
	}
	if err := lb.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestStepPastEndFails(t *testing.T) {
	testlog.Start(t)
	lb, err := New(gameCatalog(t), Options{Ticks: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := lb.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if !lb.Done() {
		t.Fatal("expected done after last tick")
	}
	if _, err := lb.Step(); err == nil {
		t.Fatal("expected error stepping past the last tick")
	}
}

func TestRunHonorsCancel(t *testing.T) {
	testlog.Start(t)
	lb, err := New(gameCatalog(t), Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := lb.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewRejectsJoinOutsideRun(t *testing.T) {
	testlog.Start(t)
	if _, err := New(gameCatalog(t), Options{Ticks: 2, JoinTick: 2}); err == nil {
		t.Fatal("expected join tick error")
	}
}

func TestVerifyDetectsDivergence(t *testing.T) {
	testlog.Start(t)
	lb, err := New(gameCatalog(t), Options{Ticks: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := lb.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	decals, _ := lb.Consumer().Lists().List("decals")
	if _, err := decals.Add("stray", nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := lb.Verify(); !errors.Is(err, ErrDiverged) {
		t.Fatalf("expected ErrDiverged, got %v", err)
	}
}
