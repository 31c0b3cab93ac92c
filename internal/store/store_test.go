package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fpang/minipaint/internal/plan"
)

func openTest(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "minipaint.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type doc struct {
	Provider string `json:"provider"`
	Count    int    `json:"count"`
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	var got doc
	found, err := s.Get(ctx, KeySettings, &got)
	if err != nil || found {
		t.Fatalf("Get() on empty store = %v, %v", found, err)
	}

	if err := s.Put(ctx, KeySettings, doc{Provider: "gemini", Count: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, KeySettings, doc{Provider: "local", Count: 2}); err != nil {
		t.Fatal(err)
	}
	found, err = s.Get(ctx, KeySettings, &got)
	if err != nil || !found {
		t.Fatalf("Get() = %v, %v", found, err)
	}
	if got != (doc{Provider: "local", Count: 2}) {
		t.Errorf("Get() = %+v, want the last Put", got)
	}

	if err := s.Delete(ctx, KeySettings); err != nil {
		t.Fatal(err)
	}
	if found, _ := s.Get(ctx, KeySettings, &got); found {
		t.Error("document still present after Delete")
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "minipaint.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, KeyInventory, doc{Count: 7}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	var got doc
	if found, err := s.Get(ctx, KeyInventory, &got); err != nil || !found || got.Count != 7 {
		t.Errorf("after reopen Get() = %+v, %v, %v", got, found, err)
	}
}

func TestPlanArchive(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	t.Cleanup(func() { now = time.Now })

	image := strings.Repeat("iVBORw0KGgo", 2000)
	first := &plan.ProjectPlan{
		ProjectName: "Paladino",
		Source:      "Warhammer",
		Steps: []plan.ProjectStep{
			{StepNumber: 1, PartName: "Capa"},
			{StepNumber: 2, PartName: plan.VarnishPartName},
		},
		Warnings:       []string{plan.LowQualityWarning},
		ReferenceImage: plan.ReferenceImage{Data: image, Type: "image/png"},
	}
	second := &plan.ProjectPlan{ProjectName: "Elfa", Steps: []plan.ProjectStep{{StepNumber: 1, PartName: plan.VarnishPartName}}}

	id1, err := s.SavePlan(ctx, first)
	if err != nil {
		t.Fatalf("SavePlan() error = %v", err)
	}
	id2, err := s.SavePlan(ctx, second)
	if err != nil {
		t.Fatalf("SavePlan() error = %v", err)
	}
	if id1 == id2 || id1 == "" {
		t.Fatalf("ids not unique: %q %q", id1, id2)
	}

	got, err := s.GetPlan(ctx, id1)
	if err != nil {
		t.Fatalf("GetPlan() error = %v", err)
	}
	if got.ProjectName != "Paladino" || len(got.Steps) != 2 || got.ReferenceImage.Data != image {
		t.Errorf("GetPlan() returned a different plan: %s, %d steps", got.ProjectName, len(got.Steps))
	}

	list, err := s.ListPlans(ctx, 0)
	if err != nil {
		t.Fatalf("ListPlans() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != id2 || list[1].ID != id1 {
		t.Fatalf("ListPlans() = %+v, want newest first", list)
	}
	if list[1].Steps != 2 || list[1].Warnings != 1 || list[1].Source != "Warhammer" {
		t.Errorf("summary = %+v", list[1])
	}
	if !list[1].CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("CreatedAt = %v", list[1].CreatedAt)
	}

	if limited, _ := s.ListPlans(ctx, 1); len(limited) != 1 {
		t.Errorf("ListPlans(1) returned %d", len(limited))
	}

	if err := s.DeletePlan(ctx, id1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPlan(ctx, id1); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPlan() after delete = %v, want ErrNotFound", err)
	}
	if err := s.DeletePlan(ctx, id1); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeletePlan() = %v, want ErrNotFound", err)
	}
}

func TestSavePlanNil(t *testing.T) {
	if _, err := openTest(t).SavePlan(context.Background(), nil); err == nil {
		t.Error("expected an error for a nil plan")
	}
}
